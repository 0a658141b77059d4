package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

var (
	// ErrNoCompletedTrials is returned by queries that need at least one completed trial.
	ErrNoCompletedTrials = errors.New("no completed trials")
	// ErrUnknownObjective is returned for objective names not in the space.
	ErrUnknownObjective = errors.New("unknown objective")
)

// Reader is a read-only snapshot of a campaign's trials. It is safe for
// concurrent use.
type Reader struct {
	space  models.Space
	trials []models.Trial
}

// TracePoint is the objective value of one completed trial and the best value
// seen up to and including it.
type TracePoint struct {
	TrialID    int       `json:"trial_id"`
	FinishedAt time.Time `json:"finished_at"`
	Value      float64   `json:"value"`
	Best       float64   `json:"best"`
}

// WorkerSpan is one trial execution on a worker.
type WorkerSpan struct {
	Worker     int                `json:"worker"`
	TrialID    int                `json:"trial_id"`
	Status     models.TrialStatus `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at,omitempty"`
}

// NewReader copies trials into a new snapshot.
func NewReader(space *models.Space, trials []models.Trial) *Reader {
	r := &Reader{trials: make([]models.Trial, len(trials))}
	if space != nil {
		r.space = *space
	}
	for i, tr := range trials {
		r.trials[i] = tr.Clone()
	}
	return r
}

// ReaderFromCheckpoint builds a reader over a checkpoint file's trials.
func ReaderFromCheckpoint(cp *Checkpoint) *Reader {
	return NewReader(&cp.Space, cp.Trials)
}

// Space returns the parameter space the trials belong to.
func (r *Reader) Space() models.Space { return r.space }

// Len returns the number of trials.
func (r *Reader) Len() int { return len(r.trials) }

// Trials returns all trials in id order.
func (r *Reader) Trials() []models.Trial {
	out := make([]models.Trial, len(r.trials))
	for i, tr := range r.trials {
		out[i] = tr.Clone()
	}
	return out
}

// Trial returns the trial with the given id.
func (r *Reader) Trial(id int) (models.Trial, bool) {
	if id >= 0 && id < len(r.trials) && r.trials[id].ID == id {
		return r.trials[id].Clone(), true
	}
	i := sort.Search(len(r.trials), func(i int) bool { return r.trials[i].ID >= id })
	if i < len(r.trials) && r.trials[i].ID == id {
		return r.trials[i].Clone(), true
	}
	return models.Trial{}, false
}

// Select returns a reader over the trials keep accepts.
func (r *Reader) Select(keep func(models.Trial) bool) *Reader {
	out := &Reader{space: r.space}
	for _, tr := range r.trials {
		if keep(tr) {
			out.trials = append(out.trials, tr.Clone())
		}
	}
	return out
}

// AtTargetFidelity restricts the reader to trials evaluated at the target
// fidelity. Without a fidelity parameter every trial is kept.
func (r *Reader) AtTargetFidelity() *Reader {
	return r.Select(func(tr models.Trial) bool {
		return r.space.AtTargetFidelity(tr.Parameters)
	})
}

// ForTask restricts the reader to the trials of one task.
func (r *Reader) ForTask(task string) *Reader {
	return r.Select(func(tr models.Trial) bool { return tr.Task == task })
}

// Filter returns the trials with the given status, in id order.
func (r *Reader) Filter(status models.TrialStatus) []models.Trial {
	var out []models.Trial
	for _, tr := range r.trials {
		if tr.Status == status {
			out = append(out, tr.Clone())
		}
	}
	return out
}

// Counts tallies trials by status.
func (r *Reader) Counts() map[models.TrialStatus]int {
	counts := make(map[models.TrialStatus]int, 5)
	for _, tr := range r.trials {
		counts[tr.Status]++
	}
	return counts
}

// Best returns the completed trial with the best value of objective. An empty
// name selects the first objective. Ties go to the lower id.
func (r *Reader) Best(objective string) (models.Trial, error) {
	obj, err := r.objective(objective)
	if err != nil {
		return models.Trial{}, err
	}
	best := -1
	for i, tr := range r.trials {
		if tr.Status != models.TrialStatusCompleted {
			continue
		}
		if best < 0 || obj.Better(tr.Objectives[obj.Name], r.trials[best].Objectives[obj.Name]) {
			best = i
		}
	}
	if best < 0 {
		return models.Trial{}, ErrNoCompletedTrials
	}
	return r.trials[best].Clone(), nil
}

// Trace returns the objective value of each completed trial in completion
// order, with the running best.
func (r *Reader) Trace(objective string) ([]TracePoint, error) {
	obj, err := r.objective(objective)
	if err != nil {
		return nil, err
	}
	completed := r.Filter(models.TrialStatusCompleted)
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].FinishedAt.Before(completed[j].FinishedAt)
	})

	out := make([]TracePoint, 0, len(completed))
	for i, tr := range completed {
		v := tr.Objectives[obj.Name]
		best := v
		if i > 0 && !obj.Better(v, out[i-1].Best) {
			best = out[i-1].Best
		}
		out = append(out, TracePoint{TrialID: tr.ID, FinishedAt: tr.FinishedAt, Value: v, Best: best})
	}
	return out, nil
}

// ParetoFront returns the completed trials not dominated on the given
// objectives (all objectives when none are named), in id order.
func (r *Reader) ParetoFront(objectives ...string) ([]models.Trial, error) {
	var objs []models.Objective
	if len(objectives) == 0 {
		objs = r.space.Objectives
	}
	for _, name := range objectives {
		obj, err := r.objective(name)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}

	completed := r.Filter(models.TrialStatusCompleted)
	var front []models.Trial
	for i, a := range completed {
		dominated := false
		for j, b := range completed {
			if i != j && dominates(objs, b, a) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, a)
		}
	}
	return front, nil
}

// WorkerTimeline lists every trial execution by worker, ordered by worker then
// start time.
func (r *Reader) WorkerTimeline() []WorkerSpan {
	var spans []WorkerSpan
	for _, tr := range r.trials {
		if tr.RanOn == nil || tr.StartedAt.IsZero() {
			continue
		}
		spans = append(spans, WorkerSpan{
			Worker:     *tr.RanOn,
			TrialID:    tr.ID,
			Status:     tr.Status,
			StartedAt:  tr.StartedAt,
			FinishedAt: tr.FinishedAt,
		})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Worker != spans[j].Worker {
			return spans[i].Worker < spans[j].Worker
		}
		return spans[i].StartedAt.Before(spans[j].StartedAt)
	})
	return spans
}

func (r *Reader) objective(name string) (models.Objective, error) {
	if name == "" {
		if len(r.space.Objectives) == 0 {
			return models.Objective{}, fmt.Errorf("%w: space has no objectives", ErrUnknownObjective)
		}
		return r.space.Objectives[0], nil
	}
	obj, ok := r.space.Objective(name)
	if !ok {
		return models.Objective{}, fmt.Errorf("%w: %s", ErrUnknownObjective, name)
	}
	return obj, nil
}

// dominates reports whether a is at least as good as b on every objective and
// strictly better on one.
func dominates(objs []models.Objective, a, b models.Trial) bool {
	strict := false
	for _, obj := range objs {
		va, vb := a.Objectives[obj.Name], b.Objectives[obj.Name]
		if obj.Better(vb, va) {
			return false
		}
		if obj.Better(va, vb) {
			strict = true
		}
	}
	return strict
}
