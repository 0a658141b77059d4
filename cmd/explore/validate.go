package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/exploration-core/internal/evaluator"
	"github.com/GoSim-25-26J-441/exploration-core/internal/exploration"
	"github.com/GoSim-25-26J-441/exploration-core/internal/generator"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a campaign config without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return validateCampaign(cfg, cmd.OutOrStdout())
		},
	}
}

// validateCampaign builds every component the run command would, without
// provisioning workers or touching the campaign directory.
func validateCampaign(cfg *config.Campaign, out io.Writer) error {
	if _, err := generator.New(cfg.Generator, &cfg.Space); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	pool, err := evaluator.New(cfg.Evaluator, &cfg.Space, cfg.Exploration.CampaignDir, logger.Discard())
	if err != nil {
		return fmt.Errorf("evaluator: %w", err)
	}
	defer pool.Close()
	if _, err := exploration.OptionsFromConfig(cfg, nil, logger.Discard()); err != nil {
		return err
	}

	printf(out, "campaign %q is valid\n", cfg.Name)
	printf(out, "  space: %d varying parameters, %d objectives, %d analyzed outputs\n",
		len(cfg.Space.Varying), len(cfg.Space.Objectives), len(cfg.Space.Analyzed))
	for _, obj := range cfg.Space.Objectives {
		printf(out, "  objective %s: %s\n", obj.Name, obj.Direction())
	}
	printf(out, "  exploration: %d workers, %s, max_evals=%d\n",
		cfg.Exploration.Workers, cfg.Exploration.RunMode, cfg.Exploration.MaxEvals)
	printf(out, "  generator: %s, evaluator: %s (%s)\n", cfg.Generator.Type, cfg.Evaluator.Type, pool.Name())
	printf(out, "  checkpoint: %s\n", cfg.Exploration.CheckpointPath())
	return nil
}
