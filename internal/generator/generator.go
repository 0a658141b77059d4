// Package generator holds the proposal strategies that decide which parameter
// points a campaign evaluates next.
package generator

import (
	"errors"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

var (
	// ErrAlreadyObserved is returned when a trial id is observed a second time.
	ErrAlreadyObserved = errors.New("trial already observed")
	// ErrNotObservable is returned for trials that are not completed or failed.
	ErrNotObservable = errors.New("only completed or failed trials can be observed")
)

// Generator proposes parameter points and learns from finished trials.
// Implementations are driven from a single goroutine and need no locking.
type Generator interface {
	// Name returns the strategy name
	Name() string
	// Propose returns at most n points inside the space. It never blocks; an
	// empty result means nothing is available right now.
	Propose(n int) ([]models.Point, error)
	// Observe feeds back a completed or failed trial, exactly once per id.
	Observe(trial models.Trial) error
	// Starved reports that the strategy is waiting for outstanding results
	// before it can propose again.
	Starved() bool
}

// Exhaustible is implemented by strategies with a finite design.
type Exhaustible interface {
	Exhausted() bool
}

// Resumer is implemented by strategies that track trial ids. Resume is called
// after a restored history was replayed, with the id the next trial receives.
type Resumer interface {
	Resume(nextID int)
}

// Proposal is a point tagged with the task that should evaluate it. Task is
// empty for single-task campaigns.
type Proposal struct {
	Task  string
	Point models.Point
}

// TaskProposer is implemented by strategies that assign a task to each point.
type TaskProposer interface {
	ProposeTasks(n int) ([]Proposal, error)
}

// ProposeTasks asks g for at most n proposals, tagging plain points with no task.
func ProposeTasks(g Generator, n int) ([]Proposal, error) {
	if tp, ok := g.(TaskProposer); ok {
		return tp.ProposeTasks(n)
	}
	points, err := g.Propose(n)
	if err != nil {
		return nil, err
	}
	out := make([]Proposal, len(points))
	for i, p := range points {
		out[i] = Proposal{Point: p}
	}
	return out, nil
}

// ledger tracks which trial ids were observed.
type ledger struct {
	observed map[int]struct{}
}

func (l *ledger) record(trial models.Trial) error {
	if trial.Status != models.TrialStatusCompleted && trial.Status != models.TrialStatusFailed {
		return fmt.Errorf("trial %d is %s: %w", trial.ID, trial.Status, ErrNotObservable)
	}
	if l.observed == nil {
		l.observed = make(map[int]struct{})
	}
	if _, ok := l.observed[trial.ID]; ok {
		return fmt.Errorf("trial %d: %w", trial.ID, ErrAlreadyObserved)
	}
	l.observed[trial.ID] = struct{}{}
	return nil
}

// Observed returns how many distinct trials were observed.
func (l *ledger) Observed() int { return len(l.observed) }

// samplePoint draws a uniform point from the space.
func samplePoint(space *models.Space, rng *utils.RandSource) models.Point {
	p := make(models.Point, len(space.Varying))
	for _, vp := range space.Varying {
		if vp.Type == models.ParameterTypeInt {
			lo, hi := ceilInt(vp.LowerBound), floorInt(vp.UpperBound)
			if hi >= lo {
				p[vp.Name] = float64(lo + rng.Intn(hi-lo+1))
				continue
			}
		}
		p[vp.Name] = rng.UniformFloat64(vp.LowerBound, vp.UpperBound)
	}
	return space.Normalize(p)
}

// loss converts an objective value so that lower is always better.
func loss(obj models.Objective, v float64) float64 {
	if obj.Minimize {
		return v
	}
	return -v
}

// pointKey is a stable identity for deduplicating points.
func pointKey(space *models.Space, p models.Point) string {
	key := ""
	for _, vp := range space.Varying {
		key += fmt.Sprintf("%s=%.12g;", vp.Name, p[vp.Name])
	}
	return key
}

func ceilInt(v float64) int  { return int(math.Ceil(v)) }
func floorInt(v float64) int { return int(math.Floor(v)) }
