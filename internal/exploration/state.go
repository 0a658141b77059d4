package exploration

import (
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// State is the lifecycle state of a campaign.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateDraining     State = "draining"
	StateStopped      State = "stopped"
)

// StopReason records why a campaign left the running state.
type StopReason string

const (
	StopMaxEvals           StopReason = "max_evals"
	StopDeadline           StopReason = "deadline"
	StopRequested          StopReason = "stop_requested"
	StopGeneratorExhausted StopReason = "generator_exhausted"
	StopInterrupted        StopReason = "interrupted"
	StopGeneratorFailure   StopReason = "generator_failure"
	StopEvaluatorFailure   StopReason = "evaluator_failure"
)

// boundedDrain reports whether the drain timeout applies to a drain started
// for this reason.
func (r StopReason) boundedDrain() bool {
	switch r {
	case StopDeadline, StopRequested, StopInterrupted:
		return true
	}
	return false
}

// RunMode selects how proposals are paced.
type RunMode string

const (
	// RunModeAsync backfills every free slot as soon as it frees.
	RunModeAsync RunMode = "async"
	// RunModeSync proposes a new batch only once the previous batch is terminal.
	RunModeSync RunMode = "sync"
)

var (
	// ErrGeneratorFailure wraps any error raised by the generator. It is fatal.
	ErrGeneratorFailure = errors.New("generator failure")
	// ErrEvaluatorFailure wraps backend-level evaluator errors. It is fatal.
	ErrEvaluatorFailure = errors.New("evaluator failure")
	// ErrNoWorkers is returned when the evaluator grants no slots.
	ErrNoWorkers = errors.New("no worker slots available")
	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("campaign already started")
)

// Snapshot is an immutable view of a campaign, published after each
// iteration that changed something.
type Snapshot struct {
	CampaignID string                     `json:"campaign_id"`
	State      State                      `json:"state"`
	StopReason StopReason                 `json:"stop_reason,omitempty"`
	Error      string                     `json:"error,omitempty"`
	RunMode    RunMode                    `json:"run_mode"`
	Iteration  int64                      `json:"iteration"`
	MaxEvals   int                        `json:"max_evals,omitempty"`
	Dispatched int                        `json:"dispatched"`
	Counts     map[models.TrialStatus]int `json:"counts"`
	Slots      []models.WorkerSlot        `json:"slots"`
	Trials     []models.Trial             `json:"-"`
	StartedAt  time.Time                  `json:"started_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// Busy counts busy slots in the snapshot.
func (s *Snapshot) Busy() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Busy {
			n++
		}
	}
	return n
}

// Result summarizes a finished campaign.
type Result struct {
	CampaignID string
	State      State
	StopReason StopReason
	Counts     map[models.TrialStatus]int
	// Best is the best completed trial on the first objective, nil when none completed.
	Best    *models.Trial
	Elapsed time.Duration
	Metrics *models.CampaignMetrics
}
