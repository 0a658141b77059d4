package evaluator

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// DefaultWorkDirName is the trial directory parent under the campaign dir.
const DefaultWorkDirName = "evaluations"

// New builds the evaluator selected by cfg. Trial directories of template
// and docker evaluators default to <campaignDir>/evaluations, or to
// <campaignDir>/evaluations/<task> for the evaluators of a multitask campaign.
func New(cfg config.Evaluator, space *models.Space, campaignDir string, log *slog.Logger) (Evaluator, error) {
	if cfg.Type == "multitask" {
		m, err := newMultitask(cfg, space, campaignDir, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	p, err := newPool(cfg, space, campaignDir, log)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newMultitask(cfg config.Evaluator, space *models.Space, campaignDir string, log *slog.Logger) (*Multitask, error) {
	tasks := make(map[string]Evaluator, len(cfg.Tasks))
	closeAll := func() {
		for _, ev := range tasks {
			_ = ev.Close()
		}
	}
	for name, sub := range cfg.Tasks {
		if sub == nil || sub.Type == "multitask" {
			closeAll()
			return nil, fmt.Errorf("task %s: invalid evaluator", name)
		}
		sc := *sub
		if sc.WorkDir == "" {
			sc.WorkDir = filepath.Join(campaignDir, DefaultWorkDirName, name)
		}
		taskLog := log
		if taskLog != nil {
			taskLog = taskLog.With("task", name)
		}
		ev, err := newPool(sc, space, campaignDir, taskLog)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("task %s: %w", name, err)
		}
		tasks[name] = ev
	}
	return NewMultitask(tasks)
}

func newPool(cfg config.Evaluator, space *models.Space, campaignDir string, log *slog.Logger) (*Pool, error) {
	timeout, err := cfg.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	opts := PoolOptions{
		Timeout:      timeout,
		MaxParallel:  cfg.MaxParallel,
		KeepWorkDirs: cfg.KeepWorkDirs,
		Logger:       log,
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(campaignDir, DefaultWorkDirName)
	}

	var runner Runner
	switch cfg.Type {
	case "function":
		fn, err := LookupFunction(cfg.Function, space)
		if err != nil {
			return nil, err
		}
		runner = NewFunctionRunner(cfg.Function, fn)
	case "template":
		tr, err := NewTemplateRunner(cfg.Template, cfg.ScriptName, cfg.Command, cfg.Env, space)
		if err != nil {
			return nil, err
		}
		runner = tr
		opts.WorkDir = workDir
	case "docker":
		runner = NewDockerRunner(cfg.Image, cfg.Command, cfg.Env, space)
		opts.WorkDir = workDir
	default:
		return nil, fmt.Errorf("invalid evaluator type: %q", cfg.Type)
	}
	return NewPool(runner, space, opts), nil
}
