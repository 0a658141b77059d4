// Package exploration drives a campaign: it pulls points from a generator,
// runs them on an evaluator's worker slots, feeds results back and persists
// the history so an interrupted campaign can resume.
package exploration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/internal/evaluator"
	"github.com/GoSim-25-26J-441/exploration-core/internal/generator"
	"github.com/GoSim-25-26J-441/exploration-core/internal/history"
	"github.com/GoSim-25-26J-441/exploration-core/internal/metrics"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

const defaultPollInterval = 100 * time.Millisecond

// Options configures an Orchestrator.
type Options struct {
	CampaignID string
	Space      *models.Space
	Workers    int
	RunMode    RunMode
	// MaxEvals caps dispatched trials (running, completed and failed). Zero
	// means unbounded. Trials still running when the cap is reached are
	// allowed to finish.
	MaxEvals int
	Deadline time.Duration
	// DrainTimeout bounds how long outstanding trials may run once a
	// deadline or stop request starts draining. Zero cancels them
	// immediately. Drains started by the evaluation cap or an exhausted
	// generator always wait for outstanding trials.
	DrainTimeout time.Duration
	PollInterval time.Duration
	// CheckpointPath is rewritten after every iteration that changed the
	// history; empty disables checkpoints.
	CheckpointPath string
	// Resume continues the campaign stored in a loaded checkpoint.
	Resume *history.Checkpoint
	// StopFile requests a graceful stop when the file appears.
	StopFile  string
	Logger    *slog.Logger
	Bus       *Bus
	Collector *metrics.Collector
}

// Orchestrator runs one campaign. Run drives everything from a single
// goroutine; Stop, Snapshot, Reader and Metrics are safe from any goroutine.
type Orchestrator struct {
	opts       Options
	campaignID string
	space      *models.Space
	gen        generator.Generator
	eval       evaluator.Evaluator
	log        *slog.Logger
	bus        *Bus
	collector  *metrics.Collector

	// Owned by the control goroutine.
	hist       *history.History
	slots      slotTable
	state      State
	reason     StopReason
	fatal      error
	iteration  int64
	startedAt  time.Time
	deadlineAt time.Time
	drainAt    time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	snap     atomic.Pointer[Snapshot]

	afterIteration func(o *Orchestrator)
}

// New validates opts and prepares a campaign. Nothing runs until Run.
func New(gen generator.Generator, eval evaluator.Evaluator, opts Options) (*Orchestrator, error) {
	if gen == nil || eval == nil {
		return nil, fmt.Errorf("generator and evaluator are required")
	}
	if opts.Space == nil {
		return nil, fmt.Errorf("parameter space is required")
	}
	if err := opts.Space.Validate(); err != nil {
		return nil, fmt.Errorf("space validation failed: %w", err)
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", opts.Workers)
	}
	switch opts.RunMode {
	case "":
		opts.RunMode = RunModeAsync
	case RunModeAsync, RunModeSync:
	default:
		return nil, fmt.Errorf("run mode must be async or sync, got %q", opts.RunMode)
	}
	if opts.MaxEvals < 0 {
		return nil, fmt.Errorf("max_evals cannot be negative, got %d", opts.MaxEvals)
	}
	if opts.Deadline < 0 || opts.DrainTimeout < 0 {
		return nil, fmt.Errorf("deadline and drain timeout cannot be negative")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	id := opts.CampaignID
	if id == "" && opts.Resume != nil {
		id = opts.Resume.CampaignID
	}
	if id == "" {
		id = utils.GenerateCampaignID()
	}

	collector := opts.Collector
	if collector == nil {
		collector = metrics.NewCollector()
	}

	o := &Orchestrator{
		opts:       opts,
		campaignID: id,
		space:      opts.Space,
		gen:        gen,
		eval:       eval,
		log:        logger.OrDefault(opts.Logger).With("campaign_id", id),
		bus:        opts.Bus,
		collector:  collector,
		hist:       history.New(),
		state:      StateInitializing,
		stopCh:     make(chan struct{}),
	}
	o.publish(time.Now())
	return o, nil
}

// CampaignID returns the campaign identifier.
func (o *Orchestrator) CampaignID() string { return o.campaignID }

// Space returns the campaign's parameter space.
func (o *Orchestrator) Space() *models.Space { return o.space }

// Bus returns the event bus, nil if none was configured.
func (o *Orchestrator) Bus() *Bus { return o.bus }

// Stop requests a graceful stop: no new dispatches, outstanding trials drain.
// Repeated calls have no further effect.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.log.Info("stop requested")
		close(o.stopCh)
	})
}

// Snapshot returns the latest published view of the campaign.
func (o *Orchestrator) Snapshot() *Snapshot {
	return o.snap.Load()
}

// Reader returns a query view over the latest snapshot.
func (o *Orchestrator) Reader() *history.Reader {
	return history.NewReader(o.space, o.snap.Load().Trials)
}

// Metrics summarizes the campaign metrics collected so far.
func (o *Orchestrator) Metrics() *models.CampaignMetrics {
	return metrics.ConvertToCampaignMetrics(o.collector, len(o.snap.Load().Slots))
}

// Collector exposes the raw time series behind Metrics.
func (o *Orchestrator) Collector() *metrics.Collector {
	return o.collector
}

// Run executes the campaign until it stops. It returns a non-nil error only
// for fatal conditions; the checkpoint is written before returning either way.
// Cancelling ctx interrupts the campaign: outstanding trials are cancelled
// without waiting for the drain timeout.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	o.startedAt = time.Now()
	o.collector.Start()
	defer o.collector.Stop()

	if err := o.initialize(o.startedAt); err != nil {
		o.fatal = err
		o.setState(StateStopped, time.Now())
		o.publish(time.Now())
		o.log.Error("campaign failed to start", "error", err)
		return o.result(), err
	}

	if o.opts.StopFile != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := WatchStopFile(watchCtx, o.opts.StopFile, o.Stop, o.log); err != nil {
				o.log.Warn("stop file watcher failed", "path", o.opts.StopFile, "error", err)
			}
		}()
	}

	err := o.loop(ctx)
	now := time.Now()
	o.checkpoint(now)
	o.publish(now)

	res := o.result()
	o.log.Info("campaign stopped",
		"stop_reason", o.reason,
		"completed", res.Counts[models.TrialStatusCompleted],
		"failed", res.Counts[models.TrialStatusFailed],
		"cancelled", res.Counts[models.TrialStatusCancelled],
		"elapsed", utils.FormatDuration(res.Elapsed))
	return res, err
}

func (o *Orchestrator) initialize(now time.Time) error {
	if cp := o.opts.Resume; cp != nil {
		h, cancelled, err := history.Resume(cp, o.space, now)
		if err != nil {
			return err
		}
		o.hist = h
		for _, id := range cancelled {
			tr, _ := h.Get(id)
			metrics.RecordTrialFinished(o.collector, tr)
			o.emitTrial(EventTrialCancelled, tr, now)
		}
		if err := o.replay(); err != nil {
			return err
		}
		if r, ok := o.gen.(generator.Resumer); ok {
			r.Resume(h.NextID())
		}
		counts := h.Counts()
		o.log.Info("campaign resumed",
			"trials", h.Len(),
			"completed", counts[models.TrialStatusCompleted],
			"failed", counts[models.TrialStatusFailed],
			"interrupted", len(cancelled))
	}

	requested := o.opts.Workers
	granted, err := o.eval.Provision(requested)
	if err != nil {
		if errors.Is(err, evaluator.ErrUnavailable) {
			o.reason = StopEvaluatorFailure
			return fmt.Errorf("%w: provision: %w", ErrEvaluatorFailure, err)
		}
		return fmt.Errorf("provision %d workers: %w", requested, err)
	}
	if granted <= 0 {
		return fmt.Errorf("%w: requested %d", ErrNoWorkers, requested)
	}
	if granted > requested {
		granted = requested
	}
	if granted < requested {
		o.log.Warn("evaluator granted fewer workers than requested", "requested", requested, "granted", granted)
	}
	o.slots = newSlotTable(granted)

	if o.opts.Deadline > 0 {
		o.deadlineAt = now.Add(o.opts.Deadline)
	}
	o.log.Info("campaign started",
		"workers", granted,
		"run_mode", o.opts.RunMode,
		"max_evals", o.opts.MaxEvals,
		"generator", o.gen.Name(),
		"evaluator", o.eval.Name())
	o.setState(StateRunning, now)
	o.checkpoint(now)
	o.publish(now)
	return nil
}

// replay observes every finished trial of a resumed history so the
// generator rebuilds its state, in the order the trials finished.
func (o *Orchestrator) replay() error {
	var finished []models.Trial
	for _, tr := range o.hist.Trials() {
		if tr.Status == models.TrialStatusCompleted || tr.Status == models.TrialStatusFailed {
			finished = append(finished, tr)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].FinishedAt.Before(finished[j].FinishedAt)
	})
	for _, tr := range finished {
		if err := o.gen.Observe(tr); err != nil {
			o.reason = StopGeneratorFailure
			return fmt.Errorf("%w: replay trial %d: %w", ErrGeneratorFailure, tr.ID, err)
		}
	}
	return nil
}

func (o *Orchestrator) loop(ctx context.Context) error {
	base := o.opts.PollInterval / 32
	if base < time.Millisecond {
		base = time.Millisecond
	}
	idle := utils.NewExponentialBackoff(base, o.opts.PollInterval, 2, false)
	attempt := 0

	stopC := o.stopCh
	doneC := ctx.Done()
	for {
		o.iteration++
		prevState := o.state
		progressed := false

		select {
		case <-doneC:
			doneC = nil
			o.interrupt(time.Now())
		default:
		}
		select {
		case <-stopC:
			stopC = nil
			o.beginDrain(StopRequested, time.Now())
		default:
		}

		if o.state == StateRunning {
			n, err := o.fill(time.Now())
			if err != nil {
				return o.abort(err, time.Now())
			}
			progressed = n > 0
		}

		n, err := o.collect(time.Now())
		if err != nil {
			return o.abort(err, time.Now())
		}
		if n > 0 {
			progressed = true
		}

		now := time.Now()
		if o.state == StateRunning {
			if reason, ok := o.stopCondition(now); ok {
				o.beginDrain(reason, now)
			}
		}
		if o.state == StateDraining {
			if o.drainStep(now) {
				progressed = true
			}
		}

		if progressed || o.state != prevState {
			o.checkpoint(now)
			metrics.RecordBusySlots(o.collector, o.slots.busy(), now)
			o.publish(now)
		}
		if o.afterIteration != nil {
			o.afterIteration(o)
		}
		if o.state == StateStopped {
			return nil
		}

		if progressed {
			attempt = 0
			continue
		}
		timer := time.NewTimer(idle.NextDelay(attempt))
		attempt++
		select {
		case <-timer.C:
		case <-stopC:
		case <-doneC:
		}
		timer.Stop()
	}
}

// fill proposes points for the free slots and dispatches them. It returns
// how many trials were created.
func (o *Orchestrator) fill(now time.Time) (int, error) {
	free := o.slots.free()
	if len(free) == 0 {
		return 0, nil
	}
	if o.opts.RunMode == RunModeSync && o.slots.busy() > 0 {
		return 0, nil
	}
	n := len(free)
	if o.opts.MaxEvals > 0 {
		if remaining := o.opts.MaxEvals - o.hist.Dispatched(); remaining < n {
			n = remaining
		}
	}
	if n <= 0 || o.gen.Starved() {
		return 0, nil
	}

	props, err := generator.ProposeTasks(o.gen, n)
	if err != nil {
		return 0, fmt.Errorf("%w: propose: %w", ErrGeneratorFailure, err)
	}
	if len(props) > n {
		return 0, fmt.Errorf("%w: proposed %d points for %d slots", ErrGeneratorFailure, len(props), n)
	}
	o.collector.Add(metrics.MetricTrialsProposed, float64(len(props)))

	for i, p := range props {
		if err := o.space.Contains(p.Point); err != nil {
			return i, fmt.Errorf("%w: proposed point: %w", ErrGeneratorFailure, err)
		}
		if err := o.dispatch(p, free[i], now); err != nil {
			return i + 1, err
		}
	}
	return len(props), nil
}

// dispatch creates a trial for p and hands it to the evaluator on slot. A
// trial the evaluator refuses is failed without ever running.
func (o *Orchestrator) dispatch(p generator.Proposal, slot int, now time.Time) error {
	tr := o.hist.Append(p.Point, now)
	tr.Task = p.Task
	running := tr.Clone()
	if err := running.Start(slot, now); err != nil {
		return err
	}

	if err := o.eval.Dispatch(running, slot); err != nil {
		if ferr := tr.Fail(fmt.Sprintf("dispatch: %v", err), now); ferr != nil {
			return ferr
		}
		if uerr := o.hist.Update(tr); uerr != nil {
			return uerr
		}
		metrics.RecordTrialFinished(o.collector, tr)
		o.emitTrial(EventTrialFailed, tr, now)
		if errors.Is(err, evaluator.ErrUnavailable) {
			return fmt.Errorf("%w: dispatch trial %d: %w", ErrEvaluatorFailure, tr.ID, err)
		}
		o.log.Warn("trial dispatch failed", "trial_id", tr.ID, "worker", slot, "error", err)
		if oerr := o.gen.Observe(tr); oerr != nil {
			return fmt.Errorf("%w: observe trial %d: %w", ErrGeneratorFailure, tr.ID, oerr)
		}
		return nil
	}

	if err := o.hist.Update(running); err != nil {
		return err
	}
	o.slots.bind(slot, running.ID)
	o.collector.Add(metrics.MetricDispatched, 1)
	o.emitTrial(EventTrialDispatched, running, now)
	o.log.Debug("trial dispatched", "trial_id", running.ID, "worker", slot, "task", running.Task, "parameters", running.Parameters)
	return nil
}

// collect applies every completion the evaluator reports and observes it.
func (o *Orchestrator) collect(now time.Time) (int, error) {
	n := 0
	for _, c := range o.eval.Poll() {
		tr, ok := o.hist.Get(c.TrialID)
		if !ok || tr.Status != models.TrialStatusRunning {
			o.log.Warn("ignoring completion for a trial that is not running", "trial_id", c.TrialID)
			continue
		}
		slot := *tr.WorkerID

		outcome := c.Err
		var outputs map[string]float64
		if outcome == nil {
			outputs, outcome = evaluator.ValidateOutputs(o.space, c.Outputs)
		}

		evType := EventTrialCompleted
		if outcome != nil {
			evType = EventTrialFailed
			if err := tr.Fail(outcome.Error(), now); err != nil {
				return n, err
			}
			if c.TimedOut {
				o.collector.Add(metrics.MetricTimedOut, 1)
			}
			o.log.Warn("trial failed", "trial_id", tr.ID, "worker", slot, "timed_out", c.TimedOut, "error", outcome)
		} else {
			if err := tr.Complete(o.space, outputs, now); err != nil {
				return n, err
			}
			o.log.Debug("trial completed", "trial_id", tr.ID, "worker", slot, "objectives", tr.Objectives)
		}
		if err := o.hist.Update(tr); err != nil {
			return n, err
		}
		o.slots.release(slot)
		metrics.RecordTrialFinished(o.collector, tr)
		o.emitTrial(evType, tr, now)
		n++

		if err := o.gen.Observe(tr); err != nil {
			return n, fmt.Errorf("%w: observe trial %d: %w", ErrGeneratorFailure, tr.ID, err)
		}
	}
	return n, nil
}

func (o *Orchestrator) stopCondition(now time.Time) (StopReason, bool) {
	if o.opts.MaxEvals > 0 && o.hist.Dispatched() >= o.opts.MaxEvals {
		return StopMaxEvals, true
	}
	if !o.deadlineAt.IsZero() && !now.Before(o.deadlineAt) {
		return StopDeadline, true
	}
	if ex, ok := o.gen.(generator.Exhaustible); ok && ex.Exhausted() && o.slots.busy() == 0 {
		if r, ok := o.gen.(interface{ Reason() string }); ok && r.Reason() != "" {
			o.log.Info("generator exhausted", "generator", o.gen.Name(), "reason", r.Reason())
		}
		return StopGeneratorExhausted, true
	}
	return "", false
}

func (o *Orchestrator) beginDrain(reason StopReason, now time.Time) {
	if o.state != StateRunning {
		return
	}
	o.reason = reason
	o.drainAt = time.Time{}
	if reason.boundedDrain() {
		o.drainAt = now.Add(o.opts.DrainTimeout)
	}
	o.setState(StateDraining, now)
}

// interrupt drains without waiting: outstanding trials are cancelled on the
// next drain step.
func (o *Orchestrator) interrupt(now time.Time) {
	o.beginDrain(StopInterrupted, now)
	o.drainAt = now
}

// drainStep stops the campaign once nothing is running or the drain timeout
// elapsed. A drain without a timeout becomes bounded once the campaign
// deadline passes. It reports whether trials were cancelled.
func (o *Orchestrator) drainStep(now time.Time) bool {
	if o.slots.busy() == 0 {
		o.setState(StateStopped, now)
		return false
	}
	if o.drainAt.IsZero() && !o.deadlineAt.IsZero() && !now.Before(o.deadlineAt) {
		o.drainAt = now.Add(o.opts.DrainTimeout)
	}
	if o.drainAt.IsZero() || now.Before(o.drainAt) {
		return false
	}
	n := o.cancelOutstanding("cancelled: drain timeout elapsed", now)
	o.log.Warn("drain timeout elapsed, cancelled outstanding trials", "cancelled", n)
	o.setState(StateStopped, now)
	return n > 0
}

// cancelOutstanding terminates every running trial. Cancelled trials are
// never observed.
func (o *Orchestrator) cancelOutstanding(reason string, now time.Time) int {
	n := 0
	for _, tr := range o.hist.Running() {
		slot := *tr.WorkerID
		o.eval.Cancel(tr.ID)
		if err := tr.Cancel(reason, now); err != nil {
			o.log.Error("failed to cancel trial", "trial_id", tr.ID, "error", err)
			continue
		}
		if err := o.hist.Update(tr); err != nil {
			o.log.Error("failed to record cancelled trial", "trial_id", tr.ID, "error", err)
			continue
		}
		o.slots.release(slot)
		metrics.RecordTrialFinished(o.collector, tr)
		o.emitTrial(EventTrialCancelled, tr, now)
		n++
	}
	return n
}

// abort stops the campaign on a fatal error.
func (o *Orchestrator) abort(err error, now time.Time) error {
	o.fatal = err
	switch {
	case errors.Is(err, ErrEvaluatorFailure):
		o.reason = StopEvaluatorFailure
	case errors.Is(err, ErrGeneratorFailure):
		o.reason = StopGeneratorFailure
	}
	o.log.Error("campaign aborted", "error", err)
	o.cancelOutstanding("cancelled: campaign aborted", now)
	o.setState(StateStopped, now)
	return err
}

func (o *Orchestrator) setState(s State, now time.Time) {
	if o.state == s {
		return
	}
	o.state = s
	o.log.Info("campaign state changed", "state", s, "stop_reason", o.reason)
	o.bus.Publish(Event{
		Type:       EventStateChanged,
		Time:       now,
		CampaignID: o.campaignID,
		State:      s,
		StopReason: o.reason,
	})
}

func (o *Orchestrator) emitTrial(t EventType, tr models.Trial, now time.Time) {
	if o.bus == nil {
		return
	}
	c := tr.Clone()
	o.bus.Publish(Event{Type: t, Time: now, CampaignID: o.campaignID, Trial: &c})
}

func (o *Orchestrator) checkpoint(now time.Time) {
	if o.opts.CheckpointPath == "" {
		return
	}
	cp := &history.Checkpoint{
		Version:     history.CheckpointVersion,
		CampaignID:  o.campaignID,
		Space:       *o.space,
		RunMode:     string(o.opts.RunMode),
		NextTrialID: o.hist.NextID(),
		Trials:      o.hist.Trials(),
		Slots:       o.slots.snapshot(),
		State:       string(o.state),
		StopReason:  string(o.reason),
		SavedAt:     now,
	}
	if o.fatal != nil {
		cp.Error = o.fatal.Error()
	}
	if err := history.SaveCheckpoint(o.opts.CheckpointPath, cp); err != nil {
		o.log.Error("failed to write checkpoint", "path", o.opts.CheckpointPath, "error", err)
		return
	}
	o.collector.Add(metrics.MetricCheckpoints, 1)
}

func (o *Orchestrator) publish(now time.Time) {
	snap := &Snapshot{
		CampaignID: o.campaignID,
		State:      o.state,
		StopReason: o.reason,
		RunMode:    o.opts.RunMode,
		Iteration:  o.iteration,
		MaxEvals:   o.opts.MaxEvals,
		Dispatched: o.hist.Dispatched(),
		Counts:     o.hist.Counts(),
		Slots:      o.slots.snapshot(),
		Trials:     o.hist.Trials(),
		StartedAt:  o.startedAt,
		UpdatedAt:  now,
	}
	if o.fatal != nil {
		snap.Error = o.fatal.Error()
	}
	o.snap.Store(snap)
}

func (o *Orchestrator) result() *Result {
	res := &Result{
		CampaignID: o.campaignID,
		State:      o.state,
		StopReason: o.reason,
		Counts:     o.hist.Counts(),
		Elapsed:    time.Since(o.startedAt),
		Metrics:    metrics.ConvertToCampaignMetrics(o.collector, len(o.slots)),
	}
	if best, err := o.hist.Reader(o.space).Best(""); err == nil {
		res.Best = &best
	}
	return res
}
