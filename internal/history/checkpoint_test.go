package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// buildCheckpoint returns a checkpoint with n completed trials followed by k
// running ones, each running trial on its own slot.
func buildCheckpoint(t *testing.T, n, k int) *Checkpoint {
	t.Helper()
	space := testSpace()
	h := New()
	now := time.Now()
	slots := make([]models.WorkerSlot, k)
	for i := range slots {
		slots[i] = models.WorkerSlot{ID: i}
	}
	for i := 0; i < n; i++ {
		tr := h.Append(models.Point{"x0": float64(i), "x1": 1}, now)
		_ = tr.Start(0, now)
		_ = tr.Complete(space, map[string]float64{"f": float64(i)}, now)
		if err := h.Update(tr); err != nil {
			t.Fatal(err)
		}
	}
	for w := 0; w < k; w++ {
		tr := h.Append(models.Point{"x0": 1, "x1": float64(w)}, now)
		_ = tr.Start(w, now)
		if err := h.Update(tr); err != nil {
			t.Fatal(err)
		}
		id := tr.ID
		slots[w] = models.WorkerSlot{ID: w, Busy: true, TrialID: &id}
	}
	return &Checkpoint{
		Version:     CheckpointVersion,
		CampaignID:  "campaign-test",
		Space:       *space,
		RunMode:     "async",
		NextTrialID: h.NextID(),
		Trials:      h.Trials(),
		Slots:       slots,
		State:       "running",
		SavedAt:     now,
	}
}

func TestSaveLoadCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint.json")
	cp := buildCheckpoint(t, 3, 2)
	if err := SaveCheckpoint(path, cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file must not remain after save")
	}

	loaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CampaignID != "campaign-test" || len(loaded.Trials) != 5 || loaded.NextTrialID != 5 {
		t.Fatalf("unexpected checkpoint %+v", loaded)
	}
	if !loaded.Space.Equal(testSpace()) {
		t.Fatalf("space did not round trip")
	}
}

func TestLoadCheckpointMissing(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "none.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if errors.Is(err, ErrCheckpointCorruption) {
		t.Fatalf("missing file is not corruption")
	}
}

func TestLoadCheckpointCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte(`{"version": 1, "trials": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCheckpoint(path); !errors.Is(err, ErrCheckpointCorruption) {
		t.Fatalf("expected ErrCheckpointCorruption, got %v", err)
	}
}

func TestCheckpointValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cp *Checkpoint)
	}{
		{"version", func(cp *Checkpoint) { cp.Version = 99 }},
		{"next id", func(cp *Checkpoint) { cp.NextTrialID = 2 }},
		{"id gap", func(cp *Checkpoint) { cp.Trials[1].ID = 7 }},
		{"bad status", func(cp *Checkpoint) { cp.Trials[0].Status = "lost" }},
		{"running without slot", func(cp *Checkpoint) { cp.Slots[0] = models.WorkerSlot{ID: 0} }},
		{"slot on finished trial", func(cp *Checkpoint) {
			id := 0
			cp.Slots[0].TrialID = &id
		}},
		{"completed without objective", func(cp *Checkpoint) { cp.Trials[0].Objectives = nil }},
		{"worker on terminal trial", func(cp *Checkpoint) {
			w := 1
			cp.Trials[0].WorkerID = &w
		}},
		{"bad space", func(cp *Checkpoint) { cp.Space.Objectives = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := buildCheckpoint(t, 3, 2)
			tt.mutate(cp)
			if err := cp.Validate(); !errors.Is(err, ErrCheckpointCorruption) {
				t.Fatalf("expected ErrCheckpointCorruption, got %v", err)
			}
		})
	}
	if err := buildCheckpoint(t, 3, 2).Validate(); err != nil {
		t.Fatalf("expected valid checkpoint, got %v", err)
	}
}

func TestResumeCancelsRunningTrials(t *testing.T) {
	const n, k = 6, 3
	cp := buildCheckpoint(t, n, k)
	h, cancelled, err := Resume(cp, testSpace(), time.Now())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(cancelled) != k {
		t.Fatalf("expected %d cancelled trials, got %v", k, cancelled)
	}
	if h.NextID() != n+k {
		t.Fatalf("expected next id %d, got %d", n+k, h.NextID())
	}
	for _, tr := range h.Trials() {
		want := models.TrialStatusCompleted
		if tr.ID >= n {
			want = models.TrialStatusCancelled
		}
		if tr.Status != want {
			t.Fatalf("trial %d: expected %s, got %s", tr.ID, want, tr.Status)
		}
		if tr.WorkerID != nil {
			t.Fatalf("trial %d must not hold a worker after resume", tr.ID)
		}
	}
	if tr, _ := h.Get(0); tr.Objectives["f"] != 0 {
		t.Fatalf("completed trials must be unchanged")
	}
}

func TestResumeRejectsDifferentSpace(t *testing.T) {
	cp := buildCheckpoint(t, 2, 0)
	other := testSpace()
	other.Varying[0].UpperBound = 20
	if _, _, err := Resume(cp, other, time.Now()); !errors.Is(err, ErrCheckpointCorruption) {
		t.Fatalf("expected ErrCheckpointCorruption, got %v", err)
	}
}
