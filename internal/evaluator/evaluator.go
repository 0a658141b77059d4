// Package evaluator runs trials on an execution backend and reports their
// outputs asynchronously.
package evaluator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

var (
	// ErrUnavailable marks a backend-level failure; the campaign cannot continue.
	ErrUnavailable = errors.New("evaluator unavailable")
	// ErrTrialTimeout is reported when a trial exceeds its wall-clock limit.
	ErrTrialTimeout = errors.New("trial timed out")
	// ErrUnreadableOutput is reported when a finished trial's outputs are missing or not finite.
	ErrUnreadableOutput = errors.New("unreadable output")
	// ErrDuplicateTrial is returned when dispatching a trial that is already in flight.
	ErrDuplicateTrial = errors.New("trial already dispatched")
)

// Evaluator executes trials. Dispatch, Poll and Cancel never block on trial
// execution; completions are collected with Poll.
type Evaluator interface {
	// Name returns the backend name
	Name() string
	// Provision reserves up to requested concurrent slots and returns how
	// many the backend can serve.
	Provision(requested int) (int, error)
	// Dispatch hands a running trial to the backend. An error wrapping
	// ErrUnavailable is fatal; any other error fails only this trial.
	Dispatch(trial models.Trial, slot int) error
	// Poll drains the completions discovered since the last call.
	Poll() []Completion
	// Cancel terminates an in-flight trial. Cancelled trials are never reported.
	Cancel(trialID int)
	// Close cancels everything in flight and releases backend resources.
	Close() error
}

// Completion is the outcome of one dispatched trial.
type Completion struct {
	TrialID  int
	Outputs  map[string]float64
	Err      error
	TimedOut bool
}

// Failed reports whether the trial did not produce usable outputs.
func (c Completion) Failed() bool { return c.Err != nil }

// TrialError describes a per-trial execution failure.
type TrialError struct {
	TrialID int
	Op      string
	Err     error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("trial %d: %s: %v", e.TrialID, e.Op, e.Err)
}

func (e *TrialError) Unwrap() error { return e.Err }

// UnknownFunctionError indicates an unknown built-in function name
type UnknownFunctionError struct {
	Name      string
	Available []string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}
