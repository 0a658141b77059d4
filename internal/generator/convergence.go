package generator

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Step is one neighbourhood sweep of the local search. Score is the incumbent
// loss after the sweep (lower is better).
type Step struct {
	Iteration int
	Score     float64
	Point     models.Point
}

// ConvergenceStrategy defines how to detect convergence
type ConvergenceStrategy interface {
	// CheckConvergence checks if the search has converged based on history
	CheckConvergence(history []Step) (bool, string)
	// Name returns the name of the convergence strategy
	Name() string
}

// ConvergenceConfig holds configuration for convergence detection
type ConvergenceConfig struct {
	// NoImprovementIterations is the number of sweeps without improvement before stopping
	NoImprovementIterations int
	// ImprovementThreshold is the minimum relative improvement to consider significant
	ImprovementThreshold float64
	// ScoreTolerance is the absolute tolerance for score changes to be considered equal
	ScoreTolerance float64
	// MinIterations is the minimum number of sweeps before convergence can be detected
	MinIterations int
	// WindowIterations is the number of recent sweeps inspected by plateau and threshold checks
	WindowIterations int
}

// DefaultConvergenceConfig returns a default convergence configuration
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		NoImprovementIterations: 5,
		ImprovementThreshold:    0.01, // 1% improvement
		ScoreTolerance:          0.001,
		MinIterations:           3,
		WindowIterations:        5,
	}
}

// NoImprovementStrategy detects convergence when there's no improvement for N sweeps
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

// NewNoImprovementStrategy creates a new no-improvement convergence strategy
func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: config}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(history []Step) (converged bool, reason string) {
	if len(history) < s.config.MinIterations {
		return false, ""
	}

	// Find the first sweep that reached the best score
	bestScore := math.Inf(1)
	bestIteration := -1
	for i, step := range history {
		if step.Score < bestScore {
			bestScore = step.Score
			bestIteration = i
		}
	}

	if bestIteration < 0 {
		return false, ""
	}

	iterationsSinceBest := len(history) - 1 - bestIteration
	if iterationsSinceBest >= s.config.NoImprovementIterations {
		return true, fmt.Sprintf("no improvement for %d iterations (best at iteration %d)", iterationsSinceBest, history[bestIteration].Iteration)
	}

	return false, ""
}

// PlateauStrategy detects convergence when scores have plateaued (similar scores)
type PlateauStrategy struct {
	config *ConvergenceConfig
}

// NewPlateauStrategy creates a new plateau convergence strategy
func NewPlateauStrategy(config *ConvergenceConfig) *PlateauStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: config}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) CheckConvergence(history []Step) (converged bool, reason string) {
	window := s.config.WindowIterations
	if len(history) < s.config.MinIterations || window < 2 || len(history) < window {
		return false, ""
	}

	recent := history[len(history)-window:]
	minScore, maxScore := recent[0].Score, recent[0].Score
	for _, step := range recent {
		minScore = math.Min(minScore, step.Score)
		maxScore = math.Max(maxScore, step.Score)
	}

	scoreRange := maxScore - minScore
	if scoreRange <= s.config.ScoreTolerance {
		return true, fmt.Sprintf("score plateaued for %d iterations (range: %.6f)", window, scoreRange)
	}

	return false, ""
}

// ThresholdStrategy detects convergence when relative improvements stay below threshold
type ThresholdStrategy struct {
	config *ConvergenceConfig
}

// NewThresholdStrategy creates a new improvement threshold convergence strategy
func NewThresholdStrategy(config *ConvergenceConfig) *ThresholdStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &ThresholdStrategy{config: config}
}

func (s *ThresholdStrategy) Name() string {
	return "relative_improvement"
}

func (s *ThresholdStrategy) CheckConvergence(history []Step) (converged bool, reason string) {
	window := s.config.WindowIterations
	if len(history) < s.config.MinIterations+1 || window < 2 || len(history) < window {
		return false, ""
	}

	recent := history[len(history)-window:]
	maxImprovement := math.Inf(-1)
	for i := 1; i < len(recent); i++ {
		prev := recent[i-1].Score
		denom := math.Abs(prev)
		if denom < 1e-12 {
			denom = 1e-12
		}
		improvement := (prev - recent[i].Score) / denom
		if improvement > s.config.ImprovementThreshold {
			return false, ""
		}
		maxImprovement = math.Max(maxImprovement, improvement)
	}

	return true, fmt.Sprintf("improvements below threshold (max: %.4f%%, threshold: %.4f%%)", maxImprovement*100, s.config.ImprovementThreshold*100)
}

// ConvergenceByName builds the named strategy from cfg
func ConvergenceByName(name string, cfg *ConvergenceConfig) (ConvergenceStrategy, error) {
	switch name {
	case "no_improvement":
		return NewNoImprovementStrategy(cfg), nil
	case "plateau":
		return NewPlateauStrategy(cfg), nil
	case "relative_improvement":
		return NewThresholdStrategy(cfg), nil
	}
	return nil, fmt.Errorf("unknown convergence strategy %q", name)
}
