package generator

import (
	"math"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// ParameterExplorer defines strategies for exploring the parameter space
type ParameterExplorer interface {
	// GenerateNeighbors creates neighboring points by adjusting one parameter at a time.
	// stepScale shrinks the step as the search refines (1.0 is the full step).
	GenerateNeighbors(base models.Point, space *models.Space, stepScale float64) []models.Point
	// Name returns the name of the exploration strategy
	Name() string
}

// DefaultExplorer moves each parameter up and down by a fraction of its range
type DefaultExplorer struct {
	stepFraction float64
	intStep      int
}

// NewDefaultExplorer creates a new default parameter explorer
func NewDefaultExplorer() *DefaultExplorer {
	return &DefaultExplorer{
		stepFraction: 0.1,
		intStep:      1,
	}
}

func (e *DefaultExplorer) Name() string {
	return "default"
}

// GenerateNeighbors returns up to two neighbors per parameter, clamped into
// bounds. Neighbors that collapse onto base are dropped. The fidelity
// parameter is never moved.
func (e *DefaultExplorer) GenerateNeighbors(base models.Point, space *models.Space, stepScale float64) []models.Point {
	neighbors := make([]models.Point, 0, 2*len(space.Varying))

	for _, vp := range space.Varying {
		if vp.IsFidelity {
			continue
		}
		step := e.stepFraction * stepScale * (vp.UpperBound - vp.LowerBound)
		if vp.Type == models.ParameterTypeInt {
			step = math.Max(math.Round(step), float64(e.intStep))
		}
		current := base[vp.Name]

		for _, candidate := range []float64{current + step, current - step} {
			neighbor := base.Clone()
			neighbor[vp.Name] = candidate
			neighbor = space.Normalize(neighbor)
			if neighbor[vp.Name] == current {
				continue
			}
			neighbors = append(neighbors, neighbor)
		}
	}

	return neighbors
}

// ConservativeExplorer implements a conservative exploration strategy
// that makes smaller, more cautious adjustments
type ConservativeExplorer struct {
	*DefaultExplorer
}

// NewConservativeExplorer creates a new conservative explorer
func NewConservativeExplorer() *ConservativeExplorer {
	base := NewDefaultExplorer()
	base.stepFraction = 0.05
	base.intStep = 1
	return &ConservativeExplorer{DefaultExplorer: base}
}

func (e *ConservativeExplorer) Name() string {
	return "conservative"
}

// AggressiveExplorer implements an aggressive exploration strategy
// that makes larger adjustments to explore the space more quickly
type AggressiveExplorer struct {
	*DefaultExplorer
}

// NewAggressiveExplorer creates a new aggressive explorer
func NewAggressiveExplorer() *AggressiveExplorer {
	base := NewDefaultExplorer()
	base.stepFraction = 0.2
	base.intStep = 2
	return &AggressiveExplorer{DefaultExplorer: base}
}

func (e *AggressiveExplorer) Name() string {
	return "aggressive"
}

// ExplorerByName returns the explorer registered under name
func ExplorerByName(name string) (ParameterExplorer, bool) {
	switch name {
	case "", "default":
		return NewDefaultExplorer(), true
	case "conservative":
		return NewConservativeExplorer(), true
	case "aggressive":
		return NewAggressiveExplorer(), true
	}
	return nil, false
}
