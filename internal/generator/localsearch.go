package generator

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

// LocalSearchOptions configures a LocalSearch.
type LocalSearchOptions struct {
	// NInit is the size of the initial design; the first point is the space default.
	NInit int
	Seed  int64
	// Explorer generates neighbours of the incumbent. Defaults to NewDefaultExplorer.
	Explorer ParameterExplorer
	// Convergence is optional; without it the search runs until no unvisited
	// neighbour is left at the smallest step.
	Convergence ConvergenceStrategy
	// MinStepScale is the smallest step multiplier tried before giving up.
	MinStepScale float64
}

// LocalSearch is a synchronous hill climber over the first objective. After
// the initial design it sweeps the neighbourhood of the best point, waits for
// every neighbour to finish, moves to the best one and halves the step when a
// sweep brings no improvement. A fidelity parameter is held at its target and
// only results at the target fidelity can become the incumbent.
type LocalSearch struct {
	ledger
	space       *models.Space
	objective   models.Objective
	rng         *utils.RandSource
	explorer    ParameterExplorer
	convergence ConvergenceStrategy

	nInit        int
	initProposed int
	outstanding  int
	visited      map[string]bool
	queue        []models.Point

	best            models.Point
	bestScore       float64
	sweepActive     bool
	sweepStartScore float64
	iteration       int
	stepScale       float64
	minStepScale    float64
	history         []Step

	exhausted bool
	reason    string
}

// NewLocalSearch creates a hill-climbing generator.
func NewLocalSearch(space *models.Space, opts LocalSearchOptions) *LocalSearch {
	if opts.NInit <= 0 {
		opts.NInit = 1
	}
	if opts.Explorer == nil {
		opts.Explorer = NewDefaultExplorer()
	}
	if opts.MinStepScale <= 0 {
		opts.MinStepScale = 1.0 / 64
	}
	return &LocalSearch{
		space:        space,
		objective:    space.Objectives[0],
		rng:          utils.NewRandSource(opts.Seed),
		explorer:     opts.Explorer,
		convergence:  opts.Convergence,
		nInit:        opts.NInit,
		visited:      make(map[string]bool),
		bestScore:    math.Inf(1),
		stepScale:    1.0,
		minStepScale: opts.MinStepScale,
	}
}

func (g *LocalSearch) Name() string { return "local_search" }

func (g *LocalSearch) Propose(n int) ([]models.Point, error) {
	if g.exhausted || n <= 0 {
		return nil, nil
	}

	out := make([]models.Point, 0, n)
	for len(out) < n && g.initProposed < g.nInit {
		var p models.Point
		if g.initProposed == 0 {
			p = g.space.DefaultPoint()
		} else {
			p = samplePoint(g.space, g.rng)
		}
		g.initProposed++
		out = append(out, g.take(p))
	}
	if len(out) > 0 || g.initProposed < g.nInit {
		return out, nil
	}

	if len(g.queue) == 0 {
		if g.outstanding > 0 {
			return nil, nil
		}
		if err := g.planSweep(); err != nil {
			return nil, err
		}
	}
	for len(out) < n && len(g.queue) > 0 {
		p := g.queue[0]
		g.queue = g.queue[1:]
		out = append(out, g.take(p))
	}
	return out, nil
}

func (g *LocalSearch) take(p models.Point) models.Point {
	if vp, ok := g.space.Fidelity(); ok {
		p[vp.Name] = vp.Target()
	}
	g.visited[pointKey(g.space, p)] = true
	g.outstanding++
	return p
}

// planSweep closes the finished sweep and queues the next neighbourhood.
func (g *LocalSearch) planSweep() error {
	if g.best == nil {
		// Every evaluation so far failed: keep sampling.
		g.queue = append(g.queue, samplePoint(g.space, g.rng))
		return nil
	}

	if g.sweepActive {
		if g.bestScore >= g.sweepStartScore {
			g.stepScale /= 2
		}
	}
	g.history = append(g.history, Step{Iteration: g.iteration, Score: g.bestScore, Point: g.best.Clone()})
	if g.convergence != nil {
		if converged, reason := g.convergence.CheckConvergence(g.history); converged {
			g.exhaust(fmt.Sprintf("%s: %s", g.convergence.Name(), reason))
			return nil
		}
	}

	for g.stepScale >= g.minStepScale {
		for _, p := range g.explorer.GenerateNeighbors(g.best, g.space, g.stepScale) {
			if !g.visited[pointKey(g.space, p)] {
				g.queue = append(g.queue, p)
			}
		}
		if len(g.queue) > 0 {
			break
		}
		g.stepScale /= 2
	}
	if len(g.queue) == 0 {
		g.exhaust("no unvisited neighbours")
		return nil
	}

	g.sweepActive = true
	g.sweepStartScore = g.bestScore
	g.iteration++
	return nil
}

func (g *LocalSearch) exhaust(reason string) {
	g.exhausted = true
	g.reason = reason
	g.queue = nil
}

func (g *LocalSearch) Observe(trial models.Trial) error {
	if err := g.record(trial); err != nil {
		return err
	}
	if g.outstanding > 0 {
		g.outstanding--
	} else if g.initProposed < g.nInit {
		// Replayed result from a previous run counts toward the initial design.
		g.initProposed++
	}
	g.visited[pointKey(g.space, trial.Parameters)] = true

	if trial.Status != models.TrialStatusCompleted || !g.space.AtTargetFidelity(trial.Parameters) {
		return nil
	}
	v, ok := trial.Objectives[g.objective.Name]
	if !ok {
		return fmt.Errorf("trial %d has no value for objective %s", trial.ID, g.objective.Name)
	}
	if s := loss(g.objective, v); s < g.bestScore {
		g.bestScore = s
		g.best = trial.Parameters.Clone()
	}
	return nil
}

// Starved reports that proposed neighbours are still running.
func (g *LocalSearch) Starved() bool {
	return !g.exhausted && g.initProposed >= g.nInit && len(g.queue) == 0 && g.outstanding > 0
}

// Exhausted reports that the search converged or ran out of neighbours.
func (g *LocalSearch) Exhausted() bool { return g.exhausted }

// Reason explains why the search is exhausted.
func (g *LocalSearch) Reason() string { return g.reason }

// Best returns the incumbent point and its objective value.
func (g *LocalSearch) Best() (models.Point, float64, bool) {
	if g.best == nil {
		return nil, 0, false
	}
	return g.best.Clone(), loss(g.objective, g.bestScore), true
}

// Iteration returns the number of neighbourhood sweeps started.
func (g *LocalSearch) Iteration() int { return g.iteration }

// History returns the incumbent score after each closed sweep.
func (g *LocalSearch) History() []Step {
	out := make([]Step, len(g.history))
	copy(out, g.history)
	return out
}
