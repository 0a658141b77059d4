package generator

import (
	"fmt"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Multitask assigns the points of a base strategy to tasks. Trial k of the
// campaign goes to the task at position k of the schedule: first n_init
// trials of every task in order, then repeated blocks of n_opt trials per task.
type Multitask struct {
	base    Generator
	tasks   []models.Task
	initLen int
	cycle   int
	next    int
}

// NewMultitask wraps base with a task schedule.
func NewMultitask(base Generator, tasks []models.Task) (*Multitask, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("multitask generator needs at least one task")
	}
	if err := models.ValidateTasks(tasks); err != nil {
		return nil, err
	}
	m := &Multitask{base: base, tasks: append([]models.Task(nil), tasks...)}
	for _, t := range tasks {
		m.initLen += t.NInit
		m.cycle += t.NOpt
	}
	return m, nil
}

func (m *Multitask) Name() string { return fmt.Sprintf("multitask(%s)", m.base.Name()) }

// TaskAt returns the task scheduled for the k-th trial.
func (m *Multitask) TaskAt(k int) string {
	if k < m.initLen {
		for _, t := range m.tasks {
			if k < t.NInit {
				return t.Name
			}
			k -= t.NInit
		}
	}
	k = (k - m.initLen) % m.cycle
	for _, t := range m.tasks {
		if k < t.NOpt {
			return t.Name
		}
		k -= t.NOpt
	}
	return m.tasks[len(m.tasks)-1].Name
}

func (m *Multitask) Propose(n int) ([]models.Point, error) {
	props, err := m.ProposeTasks(n)
	if err != nil {
		return nil, err
	}
	out := make([]models.Point, len(props))
	for i, p := range props {
		out[i] = p.Point
	}
	return out, nil
}

// ProposeTasks tags each base proposal with the next scheduled task.
func (m *Multitask) ProposeTasks(n int) ([]Proposal, error) {
	points, err := m.base.Propose(n)
	if err != nil {
		return nil, err
	}
	out := make([]Proposal, len(points))
	for i, p := range points {
		out[i] = Proposal{Task: m.TaskAt(m.next), Point: p}
		m.next++
	}
	return out, nil
}

// Observe forwards to the base strategy. Replayed trials move the schedule
// past their id so a resumed campaign continues where it stopped.
func (m *Multitask) Observe(trial models.Trial) error {
	if trial.ID+1 > m.next {
		m.next = trial.ID + 1
	}
	return m.base.Observe(trial)
}

// Resume moves the schedule to nextID, covering trials that were cancelled
// and therefore never observed.
func (m *Multitask) Resume(nextID int) {
	if nextID > m.next {
		m.next = nextID
	}
}

func (m *Multitask) Starved() bool { return m.base.Starved() }

// Exhausted reports whether the base strategy ran out of points.
func (m *Multitask) Exhausted() bool {
	ex, ok := m.base.(Exhaustible)
	return ok && ex.Exhausted()
}

// Reason explains why the base strategy is exhausted.
func (m *Multitask) Reason() string {
	if r, ok := m.base.(interface{ Reason() string }); ok {
		return r.Reason()
	}
	return ""
}

// Base returns the wrapped strategy.
func (m *Multitask) Base() Generator { return m.base }
