package config

import (
	"fmt"
	"os"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// LoadCampaign loads and parses a campaign file
func LoadCampaign(path string) (*Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign file %s: %w", path, err)
	}
	cfg, err := ParseCampaignYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse campaign file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset optional fields
func ApplyDefaults(c *Campaign) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}

	e := &c.Exploration
	if e.Workers == 0 {
		e.Workers = 1
	}
	if e.RunMode == "" {
		e.RunMode = "async"
	}
	if e.DrainTimeout == "" {
		e.DrainTimeout = "30s"
	}
	if e.PollInterval == "" {
		e.PollInterval = "100ms"
	}
	if e.CampaignDir == "" {
		e.CampaignDir = "exploration"
	}

	g := &c.Generator
	if g.Type == "" {
		g.Type = "random"
	}
	if g.PointsPerDim == 0 {
		g.PointsPerDim = 5
	}
	if g.Explorer == "" {
		g.Explorer = "default"
	}

	applyEvaluatorDefaults(&c.Evaluator)
	for _, sub := range c.Evaluator.Tasks {
		if sub != nil {
			applyEvaluatorDefaults(sub)
		}
	}

	if c.Notify != nil {
		if c.Notify.Backoff == "" {
			c.Notify.Backoff = "exponential"
		}
		if c.Notify.BaseMs == 0 {
			c.Notify.BaseMs = 500
		}
	}
}

func applyEvaluatorDefaults(ev *Evaluator) {
	if ev.Type == "template" {
		if ev.ScriptName == "" {
			ev.ScriptName = "run.sh"
		}
		if len(ev.Command) == 0 {
			ev.Command = []string{"sh", ev.ScriptName}
		}
	}
}

// validateCampaign performs validation on the campaign configuration
func validateCampaign(c *Campaign) error {
	// Validate log settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", c.LogFormat)
	}

	if err := c.Space.Validate(); err != nil {
		return fmt.Errorf("space validation failed: %w", err)
	}
	if err := validateExploration(&c.Exploration); err != nil {
		return fmt.Errorf("exploration validation failed: %w", err)
	}
	if err := validateGenerator(&c.Generator); err != nil {
		return fmt.Errorf("generator validation failed: %w", err)
	}
	if err := validateEvaluator(&c.Evaluator); err != nil {
		return fmt.Errorf("evaluator validation failed: %w", err)
	}
	if err := validateTasks(&c.Generator, &c.Evaluator); err != nil {
		return fmt.Errorf("task validation failed: %w", err)
	}

	if c.Notify != nil {
		if c.Notify.CallbackURL == "" {
			return fmt.Errorf("notify callback_url cannot be empty")
		}
		if c.Notify.MaxRetries < 0 {
			return fmt.Errorf("notify max_retries cannot be negative, got %d", c.Notify.MaxRetries)
		}
		if c.Notify.Backoff != "exponential" && c.Notify.Backoff != "constant" {
			return fmt.Errorf("invalid backoff type: %s (must be exponential or constant)", c.Notify.Backoff)
		}
	}

	return nil
}

// validateExploration validates orchestrator limits
func validateExploration(e *Exploration) error {
	if e.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", e.Workers)
	}
	if e.RunMode != "async" && e.RunMode != "sync" {
		return fmt.Errorf("run_mode must be 'async' or 'sync', got %s", e.RunMode)
	}
	if e.MaxEvals < 0 {
		return fmt.Errorf("max_evals cannot be negative, got %d", e.MaxEvals)
	}
	if d, err := e.GetDeadline(); err != nil || d < 0 {
		return fmt.Errorf("invalid deadline %q", e.Deadline)
	}
	if d, err := e.GetDrainTimeout(); err != nil || d < 0 {
		return fmt.Errorf("invalid drain_timeout %q", e.DrainTimeout)
	}
	if d, err := e.GetPollInterval(); err != nil || d <= 0 {
		return fmt.Errorf("invalid poll_interval %q (must be a positive duration)", e.PollInterval)
	}
	if e.CampaignDir == "" && e.Checkpoint == "" {
		return fmt.Errorf("campaign_dir or checkpoint must be set")
	}
	return nil
}

// validateGenerator validates the proposal strategy settings
func validateGenerator(g *Generator) error {
	switch g.Type {
	case "random":
	case "grid":
		if g.PointsPerDim < 2 {
			return fmt.Errorf("grid points_per_dim must be at least 2, got %d", g.PointsPerDim)
		}
	case "local_search":
		validExplorers := map[string]bool{
			"default":      true,
			"conservative": true,
			"aggressive":   true,
		}
		if !validExplorers[g.Explorer] {
			return fmt.Errorf("invalid explorer: %s (must be default, conservative, or aggressive)", g.Explorer)
		}
		if g.NInit < 0 {
			return fmt.Errorf("n_init cannot be negative, got %d", g.NInit)
		}
		if g.Convergence != nil {
			if err := validateConvergence(g.Convergence); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("invalid generator type: %s (must be random, grid, or local_search)", g.Type)
	}
	return models.ValidateTasks(g.Tasks)
}

// validateTasks checks the generator schedule and the multitask evaluator
// name the same tasks
func validateTasks(g *Generator, e *Evaluator) error {
	multitask := e.Type == "multitask"
	switch {
	case len(g.Tasks) == 0 && !multitask:
		return nil
	case len(g.Tasks) == 0:
		return fmt.Errorf("multitask evaluator requires generator tasks")
	case !multitask:
		return fmt.Errorf("generator tasks require a multitask evaluator, got %q", e.Type)
	}
	if len(g.Tasks) != len(e.Tasks) {
		return fmt.Errorf("generator defines %d tasks, evaluator %d", len(g.Tasks), len(e.Tasks))
	}
	for _, t := range g.Tasks {
		if _, ok := e.Tasks[t.Name]; !ok {
			return fmt.Errorf("task %s has no evaluator", t.Name)
		}
	}
	return nil
}

func validateConvergence(c *Convergence) error {
	switch c.Type {
	case "no_improvement":
		if c.Patience <= 0 {
			return fmt.Errorf("convergence patience must be positive, got %d", c.Patience)
		}
	case "plateau", "relative_improvement":
		if c.Window <= 1 {
			return fmt.Errorf("convergence window must be greater than 1, got %d", c.Window)
		}
		if c.Threshold < 0 {
			return fmt.Errorf("convergence threshold cannot be negative, got %f", c.Threshold)
		}
	default:
		return fmt.Errorf("invalid convergence type: %s (must be no_improvement, plateau, or relative_improvement)", c.Type)
	}
	return nil
}

// validateEvaluator validates the execution backend settings
func validateEvaluator(e *Evaluator) error {
	switch e.Type {
	case "multitask":
		if len(e.Tasks) == 0 {
			return fmt.Errorf("multitask evaluator requires tasks")
		}
		for name, sub := range e.Tasks {
			if sub == nil {
				return fmt.Errorf("task %s: evaluator is empty", name)
			}
			if sub.Type == "multitask" {
				return fmt.Errorf("task %s: multitask evaluators cannot be nested", name)
			}
			if err := validateEvaluator(sub); err != nil {
				return fmt.Errorf("task %s: %w", name, err)
			}
		}
	case "function":
		if e.Function == "" {
			return fmt.Errorf("function evaluator requires a function name")
		}
	case "template":
		if e.Template == "" {
			return fmt.Errorf("template evaluator requires a template path")
		}
	case "docker":
		if e.Image == "" {
			return fmt.Errorf("docker evaluator requires an image")
		}
	default:
		return fmt.Errorf("invalid evaluator type: %q (must be function, template, docker, or multitask)", e.Type)
	}
	if d, err := e.GetTimeout(); err != nil || d < 0 {
		return fmt.Errorf("invalid timeout %q", e.Timeout)
	}
	if e.MaxParallel < 0 {
		return fmt.Errorf("max_parallel cannot be negative, got %d", e.MaxParallel)
	}
	return nil
}
