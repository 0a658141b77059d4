package generator

import (
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

// Random samples points uniformly within the bounds of the space.
type Random struct {
	ledger
	space *models.Space
	rng   *utils.RandSource
}

// NewRandom creates a random sampler. A zero seed is time based.
func NewRandom(space *models.Space, seed int64) *Random {
	return &Random{space: space, rng: utils.NewRandSource(seed)}
}

func (g *Random) Name() string { return "random" }

func (g *Random) Propose(n int) ([]models.Point, error) {
	points := make([]models.Point, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, samplePoint(g.space, g.rng))
	}
	return points, nil
}

func (g *Random) Observe(trial models.Trial) error {
	return g.record(trial)
}

func (g *Random) Starved() bool { return false }
