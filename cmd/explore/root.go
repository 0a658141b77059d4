package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
)

// logLevelEnv overrides the configured log level when --log-level is unset.
const logLevelEnv = "EXPLORE_LOG_LEVEL"

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "explore",
		Short:         "Run and inspect black-box exploration campaigns",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "campaign.yaml", "campaign config file path")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config and "+logLevelEnv)

	root.AddCommand(newRunCmd(flags, false))
	root.AddCommand(newRunCmd(flags, true))
	root.AddCommand(newTrialsCmd(flags))
	root.AddCommand(newBestCmd(flags))
	root.AddCommand(newValidateCmd(flags))
	return root
}

// loadConfig reads the campaign file and installs the default logger.
func (f *rootFlags) loadConfig(stderr io.Writer) (*config.Campaign, error) {
	cfg, err := config.LoadCampaign(f.configPath)
	if err != nil {
		return nil, err
	}
	logger.SetDefault(logger.NewWithFormat(cfg.LogFormat, f.resolveLogLevel(cfg.LogLevel), stderr))
	return cfg, nil
}

// resolveLogLevel picks the flag, then the environment, then the config value.
func (f *rootFlags) resolveLogLevel(configured string) string {
	if f.logLevel != "" {
		return f.logLevel
	}
	if env := os.Getenv(logLevelEnv); env != "" {
		return env
	}
	if configured != "" {
		return configured
	}
	return "info"
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
