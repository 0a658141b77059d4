package exploration

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/GoSim-25-26J-441/exploration-core/internal/history"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
)

// OptionsFromConfig maps a validated campaign configuration onto Options.
// resume may be nil.
func OptionsFromConfig(cfg *config.Campaign, resume *history.Checkpoint, log *slog.Logger) (Options, error) {
	ex := cfg.Exploration
	deadline, err := ex.GetDeadline()
	if err != nil {
		return Options{}, fmt.Errorf("invalid deadline: %w", err)
	}
	drain, err := ex.GetDrainTimeout()
	if err != nil {
		return Options{}, fmt.Errorf("invalid drain_timeout: %w", err)
	}
	poll, err := ex.GetPollInterval()
	if err != nil {
		return Options{}, fmt.Errorf("invalid poll_interval: %w", err)
	}

	space := cfg.Space
	opts := Options{
		Space:          &space,
		Workers:        ex.Workers,
		RunMode:        RunMode(ex.RunMode),
		MaxEvals:       ex.MaxEvals,
		Deadline:       deadline,
		DrainTimeout:   drain,
		PollInterval:   poll,
		CheckpointPath: ex.CheckpointPath(),
		Resume:         resume,
		Logger:         log,
	}
	if ex.StopFile {
		dir := ex.CampaignDir
		if dir == "" {
			dir = filepath.Dir(opts.CheckpointPath)
		}
		opts.StopFile = filepath.Join(dir, StopFileName)
	}
	return opts, nil
}
