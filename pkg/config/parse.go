package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseCampaignYAML parses a Campaign from YAML bytes, applies defaults and validates it.
// This is used for APIs where the campaign is provided as payload (not via filesystem).
func ParseCampaignYAML(data []byte) (*Campaign, error) {
	var cfg Campaign
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse campaign yaml: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := validateCampaign(&cfg); err != nil {
		return nil, fmt.Errorf("invalid campaign: %w", err)
	}

	return &cfg, nil
}

// ParseCampaignYAMLString parses a Campaign from a YAML string.
func ParseCampaignYAMLString(yamlText string) (*Campaign, error) {
	return ParseCampaignYAML([]byte(yamlText))
}
