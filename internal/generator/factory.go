package generator

import (
	"fmt"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// New builds the generator described by cfg for space. A configured task list
// wraps the strategy in a Multitask schedule.
func New(cfg config.Generator, space *models.Space) (Generator, error) {
	base, err := newBase(cfg, space)
	if err != nil {
		return nil, err
	}
	if len(cfg.Tasks) == 0 {
		return base, nil
	}
	m, err := NewMultitask(base, cfg.Tasks)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newBase(cfg config.Generator, space *models.Space) (Generator, error) {
	switch cfg.Type {
	case "", "random":
		return NewRandom(space, cfg.Seed), nil
	case "grid":
		g, err := NewGrid(space, cfg.PointsPerDim)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "local_search":
		explorer, ok := ExplorerByName(cfg.Explorer)
		if !ok {
			return nil, fmt.Errorf("unknown explorer %q", cfg.Explorer)
		}
		opts := LocalSearchOptions{NInit: cfg.NInit, Seed: cfg.Seed, Explorer: explorer}
		if cfg.Convergence != nil {
			cc := DefaultConvergenceConfig()
			if cfg.Convergence.Patience > 0 {
				cc.NoImprovementIterations = cfg.Convergence.Patience
			}
			if cfg.Convergence.Window > 0 {
				cc.WindowIterations = cfg.Convergence.Window
			}
			if cfg.Convergence.Threshold > 0 {
				cc.ScoreTolerance = cfg.Convergence.Threshold
				cc.ImprovementThreshold = cfg.Convergence.Threshold
			}
			strategy, err := ConvergenceByName(cfg.Convergence.Type, cc)
			if err != nil {
				return nil, err
			}
			opts.Convergence = strategy
		}
		return NewLocalSearch(space, opts), nil
	}
	return nil, fmt.Errorf("unknown generator type %q", cfg.Type)
}
