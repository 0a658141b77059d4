package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// CheckpointVersion is the current on-disk format version.
const CheckpointVersion = 1

// ErrCheckpointCorruption marks a checkpoint that cannot be trusted for resume.
var ErrCheckpointCorruption = errors.New("checkpoint corruption")

// Checkpoint is the persisted state of a campaign.
type Checkpoint struct {
	Version     int                 `json:"version"`
	CampaignID  string              `json:"campaign_id"`
	Space       models.Space        `json:"space"`
	RunMode     string              `json:"run_mode"`
	NextTrialID int                 `json:"next_trial_id"`
	Trials      []models.Trial      `json:"trials"`
	Slots       []models.WorkerSlot `json:"slots"`
	State       string              `json:"state"`
	StopReason  string              `json:"stop_reason,omitempty"`
	Error       string              `json:"error,omitempty"`
	SavedAt     time.Time           `json:"saved_at"`
}

// SaveCheckpoint writes cp to path atomically: a reader never observes a
// partially written file.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	if path == "" {
		return fmt.Errorf("checkpoint path is empty")
	}
	if cp.Version == 0 {
		cp.Version = CheckpointVersion
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads and validates a checkpoint. A missing file is reported
// with os.ErrNotExist; anything unreadable or inconsistent wraps
// ErrCheckpointCorruption.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCheckpointCorruption, path, err)
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Validate checks the structural invariants of the checkpoint.
func (cp *Checkpoint) Validate() error {
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrCheckpointCorruption, fmt.Sprintf(format, args...))
	}

	if cp.Version != CheckpointVersion {
		return corrupt("unsupported version %d", cp.Version)
	}
	if err := cp.Space.Validate(); err != nil {
		return corrupt("space: %v", err)
	}
	if cp.NextTrialID != len(cp.Trials) {
		return corrupt("next_trial_id %d does not match %d recorded trials", cp.NextTrialID, len(cp.Trials))
	}

	running := make(map[int]int) // trial id -> worker
	for i, tr := range cp.Trials {
		if tr.ID != i {
			return corrupt("trial at position %d has id %d", i, tr.ID)
		}
		if !tr.Status.Valid() {
			return corrupt("trial %d has invalid status %q", tr.ID, tr.Status)
		}
		if tr.Status == models.TrialStatusRunning {
			if tr.WorkerID == nil {
				return corrupt("running trial %d has no worker", tr.ID)
			}
			running[tr.ID] = *tr.WorkerID
		} else if tr.WorkerID != nil {
			return corrupt("%s trial %d is bound to worker %d", tr.Status, tr.ID, *tr.WorkerID)
		}
		if tr.Status == models.TrialStatusCompleted {
			for _, obj := range cp.Space.Objectives {
				if _, ok := tr.Objectives[obj.Name]; !ok {
					return corrupt("completed trial %d is missing objective %s", tr.ID, obj.Name)
				}
			}
		}
	}

	busy := 0
	for i, slot := range cp.Slots {
		if slot.ID != i {
			return corrupt("slot at position %d has id %d", i, slot.ID)
		}
		if !slot.Busy {
			if slot.TrialID != nil {
				return corrupt("idle slot %d references trial %d", slot.ID, *slot.TrialID)
			}
			continue
		}
		busy++
		if slot.TrialID == nil {
			return corrupt("busy slot %d has no trial", slot.ID)
		}
		worker, ok := running[*slot.TrialID]
		if !ok {
			return corrupt("busy slot %d references trial %d which is not running", slot.ID, *slot.TrialID)
		}
		if worker != slot.ID {
			return corrupt("trial %d runs on worker %d but slot %d claims it", *slot.TrialID, worker, slot.ID)
		}
	}
	if busy != len(running) {
		return corrupt("%d running trials but %d busy slots", len(running), busy)
	}
	return nil
}

// Resume prepares a loaded checkpoint for continuation under space. Trials
// that were running when the checkpoint was written have an unknown outcome
// and are marked cancelled; their ids are returned. The caller releases all
// slots.
func Resume(cp *Checkpoint, space *models.Space, now time.Time) (*History, []int, error) {
	if !cp.Space.Equal(space) {
		return nil, nil, fmt.Errorf("%w: parameter space differs from the configured campaign", ErrCheckpointCorruption)
	}
	h, err := FromTrials(cp.Trials)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCheckpointCorruption, err)
	}

	var cancelled []int
	for _, tr := range h.Running() {
		if err := tr.Cancel("interrupted: campaign stopped while trial was running", now); err != nil {
			return nil, nil, err
		}
		if err := h.Update(tr); err != nil {
			return nil, nil, err
		}
		cancelled = append(cancelled, tr.ID)
	}
	return h, cancelled, nil
}
