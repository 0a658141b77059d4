package generator

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Grid walks a full-factorial design over the space.
type Grid struct {
	ledger
	space  *models.Space
	points []models.Point
	next   int
	done   map[string]bool
}

// NewGrid builds the design with pointsPerDim evenly spaced values per
// parameter, bounds included. Integer parameters keep only distinct values.
func NewGrid(space *models.Space, pointsPerDim int) (*Grid, error) {
	if pointsPerDim < 2 {
		return nil, fmt.Errorf("points_per_dim must be at least 2, got %d", pointsPerDim)
	}

	axes := make([][]float64, len(space.Varying))
	for i, vp := range space.Varying {
		axes[i] = axisValues(vp, pointsPerDim)
	}

	points := []models.Point{{}}
	for i, vp := range space.Varying {
		expanded := make([]models.Point, 0, len(points)*len(axes[i]))
		for _, p := range points {
			for _, v := range axes[i] {
				q := p.Clone()
				q[vp.Name] = v
				expanded = append(expanded, q)
			}
		}
		points = expanded
	}
	return &Grid{space: space, points: points, done: make(map[string]bool)}, nil
}

func axisValues(vp models.VaryingParameter, n int) []float64 {
	values := make([]float64, 0, n)
	seen := make(map[float64]bool, n)
	step := (vp.UpperBound - vp.LowerBound) / float64(n-1)
	for i := 0; i < n; i++ {
		v := vp.LowerBound + float64(i)*step
		if i == n-1 {
			v = vp.UpperBound
		}
		if vp.Type == models.ParameterTypeInt {
			v = math.Min(math.Max(math.Round(v), vp.LowerBound), vp.UpperBound)
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

func (g *Grid) Name() string { return "grid" }

// Size is the total number of points in the design.
func (g *Grid) Size() int { return len(g.points) }

func (g *Grid) Propose(n int) ([]models.Point, error) {
	out := make([]models.Point, 0, n)
	for len(out) < n && g.next < len(g.points) {
		p := g.points[g.next]
		g.next++
		if g.done[pointKey(g.space, p)] {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

// Observe records the trial; points observed before they were proposed
// (a rebuilt grid after resume) are skipped later.
func (g *Grid) Observe(trial models.Trial) error {
	if err := g.record(trial); err != nil {
		return err
	}
	g.done[pointKey(g.space, trial.Parameters)] = true
	return nil
}

func (g *Grid) Starved() bool { return false }

// Exhausted reports that every grid point has been proposed or observed.
func (g *Grid) Exhausted() bool {
	for _, p := range g.points[g.next:] {
		if !g.done[pointKey(g.space, p)] {
			return false
		}
	}
	return true
}
