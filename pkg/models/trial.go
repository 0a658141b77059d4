package models

import (
	"fmt"
	"time"
)

// TrialStatus represents the lifecycle state of a trial
type TrialStatus string

const (
	TrialStatusPending   TrialStatus = "pending"
	TrialStatusRunning   TrialStatus = "running"
	TrialStatusCompleted TrialStatus = "completed"
	TrialStatusFailed    TrialStatus = "failed"
	TrialStatusCancelled TrialStatus = "cancelled"
)

var trialTransitions = map[TrialStatus]map[TrialStatus]struct{}{
	TrialStatusPending: {
		TrialStatusRunning:   {},
		TrialStatusFailed:    {},
		TrialStatusCancelled: {},
	},
	TrialStatusRunning: {
		TrialStatusCompleted: {},
		TrialStatusFailed:    {},
		TrialStatusCancelled: {},
	},
	TrialStatusCompleted: {},
	TrialStatusFailed:    {},
	TrialStatusCancelled: {},
}

// Valid reports whether s is a known status.
func (s TrialStatus) Valid() bool {
	_, ok := trialTransitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed from s.
func (s TrialStatus) Terminal() bool {
	return s == TrialStatusCompleted || s == TrialStatusFailed || s == TrialStatusCancelled
}

// ValidateTrialTransition checks a status change against the lifecycle table.
func ValidateTrialTransition(from, to TrialStatus) error {
	if !from.Valid() {
		return fmt.Errorf("invalid trial status: %q", from)
	}
	if !to.Valid() {
		return fmt.Errorf("invalid trial status: %q", to)
	}
	if _, ok := trialTransitions[from][to]; !ok {
		return fmt.Errorf("invalid trial transition: %s -> %s", from, to)
	}
	return nil
}

// Trial is one proposed parameter assignment and its evaluation lifecycle.
type Trial struct {
	ID              int                `json:"id"`
	Parameters      Point              `json:"parameters"`
	Task            string             `json:"task,omitempty"` // set when the campaign defines tasks
	Status          TrialStatus        `json:"status"`
	WorkerID        *int               `json:"worker_id,omitempty"`
	RanOn           *int               `json:"ran_on,omitempty"` // worker that ran the trial, kept after it ends
	Objectives      map[string]float64 `json:"objectives,omitempty"`
	AnalyzedOutputs map[string]float64 `json:"analyzed_outputs,omitempty"`
	Error           string             `json:"error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       time.Time          `json:"started_at,omitempty"`
	FinishedAt      time.Time          `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of the trial.
func (t Trial) Clone() Trial {
	out := t
	out.Parameters = t.Parameters.Clone()
	if t.WorkerID != nil {
		w := *t.WorkerID
		out.WorkerID = &w
	}
	if t.RanOn != nil {
		w := *t.RanOn
		out.RanOn = &w
	}
	out.Objectives = cloneValues(t.Objectives)
	out.AnalyzedOutputs = cloneValues(t.AnalyzedOutputs)
	return out
}

// Duration is the wall-clock time spent running, or zero if never started or
// not finished.
func (t Trial) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// Output returns an objective or analyzed output value by name.
func (t Trial) Output(name string) (float64, bool) {
	if v, ok := t.Objectives[name]; ok {
		return v, true
	}
	v, ok := t.AnalyzedOutputs[name]
	return v, ok
}

// Start binds the trial to a worker and moves it to running.
func (t *Trial) Start(worker int, now time.Time) error {
	if err := ValidateTrialTransition(t.Status, TrialStatusRunning); err != nil {
		return fmt.Errorf("trial %d: %w", t.ID, err)
	}
	t.Status = TrialStatusRunning
	w := worker
	t.WorkerID = &worker
	t.RanOn = &w
	t.StartedAt = now
	return nil
}

// Complete records outputs split between objectives and analyzed outputs.
func (t *Trial) Complete(space *Space, outputs map[string]float64, now time.Time) error {
	if err := ValidateTrialTransition(t.Status, TrialStatusCompleted); err != nil {
		return fmt.Errorf("trial %d: %w", t.ID, err)
	}
	t.Objectives = make(map[string]float64, len(space.Objectives))
	for _, obj := range space.Objectives {
		t.Objectives[obj.Name] = outputs[obj.Name]
	}
	if len(space.Analyzed) > 0 {
		t.AnalyzedOutputs = make(map[string]float64, len(space.Analyzed))
		for _, ap := range space.Analyzed {
			t.AnalyzedOutputs[ap.Name] = outputs[ap.Name]
		}
	}
	t.finish(TrialStatusCompleted, now)
	return nil
}

// Fail marks the trial failed with a reason.
func (t *Trial) Fail(reason string, now time.Time) error {
	if err := ValidateTrialTransition(t.Status, TrialStatusFailed); err != nil {
		return fmt.Errorf("trial %d: %w", t.ID, err)
	}
	t.Error = reason
	t.finish(TrialStatusFailed, now)
	return nil
}

// Cancel marks the trial cancelled. Its outcome is unknown.
func (t *Trial) Cancel(reason string, now time.Time) error {
	if err := ValidateTrialTransition(t.Status, TrialStatusCancelled); err != nil {
		return fmt.Errorf("trial %d: %w", t.ID, err)
	}
	t.Error = reason
	t.finish(TrialStatusCancelled, now)
	return nil
}

func (t *Trial) finish(status TrialStatus, now time.Time) {
	t.Status = status
	t.WorkerID = nil
	t.FinishedAt = now
}

func cloneValues(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
