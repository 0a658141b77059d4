package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateCampaignID returns a sortable campaign id with a short random suffix.
func GenerateCampaignID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	return fmt.Sprintf("campaign-%s-%s", timestamp, uuid.NewString()[:8])
}

// TrialDirName is the per-trial working directory name for a trial id.
func TrialDirName(trialID int) string {
	return fmt.Sprintf("trial_%04d", trialID)
}
