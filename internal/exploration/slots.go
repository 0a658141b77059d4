package exploration

import "github.com/GoSim-25-26J-441/exploration-core/pkg/models"

// slotTable is only touched by the control goroutine.
type slotTable []models.WorkerSlot

func newSlotTable(n int) slotTable {
	t := make(slotTable, n)
	for i := range t {
		t[i].ID = i
	}
	return t
}

func (t slotTable) free() []int {
	var out []int
	for _, s := range t {
		if !s.Busy {
			out = append(out, s.ID)
		}
	}
	return out
}

func (t slotTable) busy() int {
	n := 0
	for _, s := range t {
		if s.Busy {
			n++
		}
	}
	return n
}

func (t slotTable) bind(slot, trialID int) {
	id := trialID
	t[slot].Busy = true
	t[slot].TrialID = &id
}

func (t slotTable) release(slot int) {
	t[slot].Busy = false
	t[slot].TrialID = nil
}

func (t slotTable) snapshot() []models.WorkerSlot {
	out := make([]models.WorkerSlot, len(t))
	for i, s := range t {
		out[i] = models.WorkerSlot{ID: s.ID, Busy: s.Busy}
		if s.TrialID != nil {
			id := *s.TrialID
			out[i].TrialID = &id
		}
	}
	return out
}
