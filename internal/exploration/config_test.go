package exploration

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.LoadCampaign("../../config/campaign.yaml")
	if err != nil {
		t.Fatalf("load campaign: %v", err)
	}
	cfg.Exploration.StopFile = true
	opts, err := OptionsFromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Workers != 4 || opts.MaxEvals != 40 || opts.RunMode != RunModeAsync {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Deadline != 10*time.Minute {
		t.Fatalf("expected 10m deadline, got %v", opts.Deadline)
	}
	if opts.CheckpointPath != cfg.Exploration.CheckpointPath() {
		t.Fatalf("unexpected checkpoint path %s", opts.CheckpointPath)
	}
	if opts.StopFile != filepath.Join(cfg.Exploration.CampaignDir, StopFileName) {
		t.Fatalf("unexpected stop file %s", opts.StopFile)
	}
	if !opts.Space.Equal(&cfg.Space) {
		t.Fatalf("space not carried over")
	}
}
