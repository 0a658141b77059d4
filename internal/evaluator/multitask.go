package evaluator

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// ErrUnknownTask is returned when a trial names a task with no evaluator.
var ErrUnknownTask = errors.New("no evaluator for task")

// Multitask routes each trial to the evaluator of its task. Every task
// evaluator is provisioned for the full slot count since the schedule can
// send a whole batch to one task.
type Multitask struct {
	tasks map[string]Evaluator
	order []string

	mu       sync.Mutex
	inflight map[int]string
}

// NewMultitask creates a router over the per-task evaluators.
func NewMultitask(tasks map[string]Evaluator) (*Multitask, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("multitask evaluator needs at least one task")
	}
	m := &Multitask{
		tasks:    make(map[string]Evaluator, len(tasks)),
		inflight: make(map[int]string),
	}
	for name, ev := range tasks {
		if ev == nil {
			return nil, fmt.Errorf("task %s has no evaluator", name)
		}
		m.tasks[name] = ev
		m.order = append(m.order, name)
	}
	sort.Strings(m.order)
	return m, nil
}

func (m *Multitask) Name() string { return "multitask" }

// Tasks returns the task names in a stable order.
func (m *Multitask) Tasks() []string {
	return append([]string(nil), m.order...)
}

// Provision grants the smallest slot count any task evaluator can serve.
func (m *Multitask) Provision(requested int) (int, error) {
	granted := requested
	for _, name := range m.order {
		n, err := m.tasks[name].Provision(requested)
		if err != nil {
			return 0, fmt.Errorf("task %s: %w", name, err)
		}
		if n < granted {
			granted = n
		}
	}
	return granted, nil
}

func (m *Multitask) Dispatch(trial models.Trial, slot int) error {
	ev, ok := m.tasks[trial.Task]
	if !ok {
		return &TrialError{TrialID: trial.ID, Op: "route task", Err: fmt.Errorf("%w: %q", ErrUnknownTask, trial.Task)}
	}
	if err := ev.Dispatch(trial, slot); err != nil {
		return err
	}
	m.mu.Lock()
	m.inflight[trial.ID] = trial.Task
	m.mu.Unlock()
	return nil
}

func (m *Multitask) Poll() []Completion {
	var out []Completion
	for _, name := range m.order {
		out = append(out, m.tasks[name].Poll()...)
	}
	if len(out) == 0 {
		return nil
	}
	m.mu.Lock()
	for _, c := range out {
		delete(m.inflight, c.TrialID)
	}
	m.mu.Unlock()
	return out
}

func (m *Multitask) Cancel(trialID int) {
	m.mu.Lock()
	name, ok := m.inflight[trialID]
	delete(m.inflight, trialID)
	m.mu.Unlock()
	if ok {
		m.tasks[name].Cancel(trialID)
	}
}

// Close closes every task evaluator and joins their errors.
func (m *Multitask) Close() error {
	var errs []error
	for _, name := range m.order {
		if err := m.tasks[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
