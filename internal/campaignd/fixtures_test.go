package campaignd

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/internal/exploration"
	"github.com/GoSim-25-26J-441/exploration-core/internal/history"
	"github.com/GoSim-25-26J-441/exploration-core/internal/metrics"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

type fakeCampaign struct {
	space     *models.Space
	trials    []models.Trial
	snap      *exploration.Snapshot
	bus       *exploration.Bus
	collector *metrics.Collector
	stops     atomic.Int32
}

func (f *fakeCampaign) CampaignID() string { return f.snap.CampaignID }
func (f *fakeCampaign) Snapshot() *exploration.Snapshot { return f.snap }
func (f *fakeCampaign) Reader() *history.Reader { return history.NewReader(f.space, f.trials) }
func (f *fakeCampaign) Bus() *exploration.Bus { return f.bus }
func (f *fakeCampaign) Collector() *metrics.Collector { return f.collector }
func (f *fakeCampaign) Stop() { f.stops.Add(1) }
func (f *fakeCampaign) Metrics() *models.CampaignMetrics {
	return &models.CampaignMetrics{Dispatched: int64(len(f.trials)), Workers: len(f.snap.Slots)}
}

func testSpace() *models.Space {
	return &models.Space{
		Varying: []models.VaryingParameter{{Name: "x0", LowerBound: 0, UpperBound: 15}},
		Objectives: []models.Objective{
			{Name: "f", Minimize: true},
			{Name: "g", Minimize: false},
		},
	}
}

// newFakeCampaign builds five trials: 0, 1 and 4 completed (finishing in that
// order), 2 failed and 3 still running on worker 0.
func newFakeCampaign(t *testing.T) *fakeCampaign {
	t.Helper()
	space := testSpace()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	completed := map[int][3]float64{ // f, g, finish offset in seconds
		0: {3, 1, 1},
		1: {1, 0, 2},
		4: {2, 5, 3},
	}
	var trials []models.Trial
	for id := 0; id < 5; id++ {
		tr := models.Trial{ID: id, Parameters: models.Point{"x0": float64(id)}, Status: models.TrialStatusPending, CreatedAt: base}
		if err := tr.Start(id%2, base); err != nil {
			t.Fatalf("start trial %d: %v", id, err)
		}
		if v, ok := completed[id]; ok {
			finished := base.Add(time.Duration(v[2]) * time.Second)
			if err := tr.Complete(space, map[string]float64{"f": v[0], "g": v[1]}, finished); err != nil {
				t.Fatalf("complete trial %d: %v", id, err)
			}
		} else if id == 2 {
			if err := tr.Fail("exit status 1", base.Add(time.Second)); err != nil {
				t.Fatalf("fail trial %d: %v", id, err)
			}
		}
		trials = append(trials, tr)
	}

	running := 3
	snap := &exploration.Snapshot{
		CampaignID: "campaign-test",
		State:      exploration.StateRunning,
		RunMode:    exploration.RunModeAsync,
		Iteration:  12,
		MaxEvals:   10,
		Dispatched: 5,
		Counts: map[models.TrialStatus]int{
			models.TrialStatusCompleted: 3,
			models.TrialStatusFailed:    1,
			models.TrialStatusRunning:   1,
		},
		Slots: []models.WorkerSlot{
			{ID: 0, Busy: false},
			{ID: 1, Busy: true, TrialID: &running},
		},
		Trials:    trials,
		StartedAt: base,
		UpdatedAt: base.Add(3 * time.Second),
	}
	collector := metrics.NewCollector()
	for _, tr := range trials {
		metrics.RecordTrialFinished(collector, tr)
	}
	metrics.RecordBusySlots(collector, 1, base.Add(3*time.Second))
	return &fakeCampaign{space: space, trials: trials, snap: snap, bus: exploration.NewBus(8), collector: collector}
}
