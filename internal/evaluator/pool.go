package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

// Job is one trial execution handed to a Runner.
type Job struct {
	Trial models.Trial
	Slot  int
	// Dir is the trial's private working directory, empty when the pool has no work dir.
	Dir string
}

// Runner executes a single trial synchronously. It must return promptly once
// ctx is done.
type Runner interface {
	Name() string
	Run(ctx context.Context, job Job) (map[string]float64, error)
}

// Provisioner is implemented by runners that need backend setup before
// slots can be used.
type Provisioner interface {
	Provision(requested int) (int, error)
}

// Closer is implemented by runners holding backend resources.
type Closer interface {
	Close() error
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Timeout is the per-trial wall-clock limit; zero disables it.
	Timeout time.Duration
	// MaxParallel caps the slots granted by Provision; zero means no cap.
	MaxParallel int
	// WorkDir is the parent of the per-trial directories; empty disables them.
	WorkDir string
	// KeepWorkDirs keeps directories of completed trials. Directories of
	// failed trials are always kept.
	KeepWorkDirs bool
	Logger       *slog.Logger
}

// Pool runs each dispatched trial on its own goroutine through a Runner and
// queues completions for Poll. It implements Evaluator.
type Pool struct {
	runner Runner
	space  *models.Space
	opts   PoolOptions
	log    *slog.Logger

	mu        sync.Mutex
	cancels   map[int]context.CancelFunc
	cancelled map[int]bool
	done      []Completion
	closed    bool
	wg        sync.WaitGroup
}

// NewPool creates a pool for runner over space.
func NewPool(runner Runner, space *models.Space, opts PoolOptions) *Pool {
	return &Pool{
		runner:    runner,
		space:     space,
		opts:      opts,
		log:       logger.OrDefault(opts.Logger).With("evaluator", runner.Name()),
		cancels:   make(map[int]context.CancelFunc),
		cancelled: make(map[int]bool),
	}
}

func (p *Pool) Name() string { return p.runner.Name() }

func (p *Pool) Provision(requested int) (int, error) {
	if requested <= 0 {
		return 0, fmt.Errorf("requested slots must be positive, got %d", requested)
	}
	granted := requested
	if p.opts.MaxParallel > 0 && granted > p.opts.MaxParallel {
		granted = p.opts.MaxParallel
	}
	if prov, ok := p.runner.(Provisioner); ok {
		n, err := prov.Provision(granted)
		if err != nil {
			return 0, err
		}
		granted = n
	}
	if p.opts.WorkDir != "" {
		if err := os.MkdirAll(p.opts.WorkDir, 0o755); err != nil {
			return 0, fmt.Errorf("%w: create work dir: %v", ErrUnavailable, err)
		}
	}
	return granted, nil
}

func (p *Pool) Dispatch(trial models.Trial, slot int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%w: pool closed", ErrUnavailable)
	}
	if _, exists := p.cancels[trial.ID]; exists {
		p.mu.Unlock()
		return fmt.Errorf("trial %d: %w", trial.ID, ErrDuplicateTrial)
	}
	p.mu.Unlock()

	dir := ""
	if p.opts.WorkDir != "" {
		dir = filepath.Join(p.opts.WorkDir, utils.TrialDirName(trial.ID))
		if err := os.RemoveAll(dir); err != nil {
			return &TrialError{TrialID: trial.ID, Op: "prepare work dir", Err: err}
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &TrialError{TrialID: trial.ID, Op: "prepare work dir", Err: err}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	if p.opts.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, p.opts.Timeout)
		parent := cancel
		cancel = func() {
			timeoutCancel()
			parent()
		}
	}

	p.mu.Lock()
	p.cancels[trial.ID] = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	job := Job{Trial: trial.Clone(), Slot: slot, Dir: dir}
	go p.run(ctx, job)
	return nil
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer p.wg.Done()
	id := job.Trial.ID
	start := time.Now()

	outputs, err := p.runner.Run(ctx, job)

	p.mu.Lock()
	cancel := p.cancels[id]
	delete(p.cancels, id)
	wasCancelled := p.cancelled[id]
	delete(p.cancelled, id)
	p.mu.Unlock()
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	if cancel != nil {
		cancel()
	}

	if wasCancelled {
		p.log.Debug("trial cancelled", "trial_id", id, "duration", utils.FormatDuration(time.Since(start)))
		return
	}

	c := Completion{TrialID: id}
	switch {
	case timedOut:
		c.TimedOut = true
		c.Err = &TrialError{TrialID: id, Op: "run", Err: fmt.Errorf("%w after %s", ErrTrialTimeout, p.opts.Timeout)}
	case err != nil:
		c.Err = &TrialError{TrialID: id, Op: "run", Err: err}
	default:
		valid, verr := ValidateOutputs(p.space, outputs)
		if verr != nil {
			c.Err = &TrialError{TrialID: id, Op: "analyze", Err: verr}
		} else {
			c.Outputs = valid
		}
	}

	if c.Err == nil && job.Dir != "" && !p.opts.KeepWorkDirs {
		if rmErr := os.RemoveAll(job.Dir); rmErr != nil {
			p.log.Warn("failed to remove trial dir", "trial_id", id, "dir", job.Dir, "error", rmErr)
		}
	}

	p.log.Debug("trial finished", "trial_id", id, "slot", job.Slot, "duration", utils.FormatDuration(time.Since(start)), "error", c.Err)

	p.mu.Lock()
	p.done = append(p.done, c)
	p.mu.Unlock()
}

func (p *Pool) Poll() []Completion {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.done) == 0 {
		return nil
	}
	out := p.done
	p.done = nil
	return out
}

func (p *Pool) Cancel(trialID int) {
	p.mu.Lock()
	cancel, ok := p.cancels[trialID]
	if ok {
		p.cancelled[trialID] = true
	}
	p.mu.Unlock()

	if ok {
		cancel()
	}
}

// InFlight returns the number of trials still executing.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cancels)
}

func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for id, cancel := range p.cancels {
		p.cancelled[id] = true
		cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
	if c, ok := p.runner.(Closer); ok {
		return c.Close()
	}
	return nil
}
