package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

var (
	// ErrTrialNotFound is returned for ids outside the history.
	ErrTrialNotFound = errors.New("trial not found")
	// ErrTrialImmutable is returned when updating a trial that already reached a terminal status.
	ErrTrialImmutable = errors.New("trial is terminal and cannot change")
)

// History is the ordered record of every trial of a campaign. Trial ids are
// contiguous from 0 and equal to the trial's index.
//
// A History is not safe for concurrent use; it is owned by the orchestrator's
// control goroutine. Readers get a Reader snapshot instead.
type History struct {
	trials []models.Trial
}

// New returns an empty history.
func New() *History {
	return &History{}
}

// FromTrials rebuilds a history from persisted trials, checking id contiguity
// and status validity.
func FromTrials(trials []models.Trial) (*History, error) {
	h := &History{trials: make([]models.Trial, 0, len(trials))}
	for i, tr := range trials {
		if tr.ID != i {
			return nil, fmt.Errorf("trial at position %d has id %d", i, tr.ID)
		}
		if !tr.Status.Valid() {
			return nil, fmt.Errorf("trial %d: invalid status %q", tr.ID, tr.Status)
		}
		h.trials = append(h.trials, tr.Clone())
	}
	return h, nil
}

// Len returns the number of trials.
func (h *History) Len() int { return len(h.trials) }

// NextID is the id the next appended trial receives.
func (h *History) NextID() int { return len(h.trials) }

// Append records a new pending trial for params and returns it.
func (h *History) Append(params models.Point, now time.Time) models.Trial {
	tr := models.Trial{
		ID:         len(h.trials),
		Parameters: params.Clone(),
		Status:     models.TrialStatusPending,
		CreatedAt:  now,
	}
	h.trials = append(h.trials, tr)
	return tr.Clone()
}

// Get returns a copy of the trial with the given id.
func (h *History) Get(id int) (models.Trial, bool) {
	if id < 0 || id >= len(h.trials) {
		return models.Trial{}, false
	}
	return h.trials[id].Clone(), true
}

// Update replaces the stored trial with tr. The status change, if any, must be
// an allowed transition and terminal trials never change.
func (h *History) Update(tr models.Trial) error {
	if tr.ID < 0 || tr.ID >= len(h.trials) {
		return fmt.Errorf("trial %d: %w", tr.ID, ErrTrialNotFound)
	}
	cur := h.trials[tr.ID]
	if cur.Status.Terminal() {
		return fmt.Errorf("trial %d (%s): %w", tr.ID, cur.Status, ErrTrialImmutable)
	}
	if cur.Status != tr.Status {
		if err := models.ValidateTrialTransition(cur.Status, tr.Status); err != nil {
			return fmt.Errorf("trial %d: %w", tr.ID, err)
		}
	}
	h.trials[tr.ID] = tr.Clone()
	return nil
}

// Trials returns copies of all trials in id order.
func (h *History) Trials() []models.Trial {
	out := make([]models.Trial, len(h.trials))
	for i, tr := range h.trials {
		out[i] = tr.Clone()
	}
	return out
}

// Filter returns copies of the trials with the given status.
func (h *History) Filter(status models.TrialStatus) []models.Trial {
	var out []models.Trial
	for _, tr := range h.trials {
		if tr.Status == status {
			out = append(out, tr.Clone())
		}
	}
	return out
}

// Running returns the trials currently bound to a worker.
func (h *History) Running() []models.Trial {
	return h.Filter(models.TrialStatusRunning)
}

// Counts tallies trials by status.
func (h *History) Counts() map[models.TrialStatus]int {
	counts := make(map[models.TrialStatus]int, 5)
	for _, tr := range h.trials {
		counts[tr.Status]++
	}
	return counts
}

// Dispatched counts trials that consumed evaluation budget: running, completed or failed.
func (h *History) Dispatched() int {
	n := 0
	for _, tr := range h.trials {
		switch tr.Status {
		case models.TrialStatusRunning, models.TrialStatusCompleted, models.TrialStatusFailed:
			n++
		}
	}
	return n
}

// Reader returns an immutable snapshot of the history for post-processing.
func (h *History) Reader(space *models.Space) *Reader {
	return NewReader(space, h.trials)
}
