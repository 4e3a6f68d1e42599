package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fieldsafe/sentinel/pkg/tracker"
)

// SiteProfile is the per-deployment policy file: remediation deadlines and
// which inspection templates the site runs.
type SiteProfile struct {
	Name      string      `yaml:"name" json:"name"`
	Deadlines tracker.SLA `yaml:"deadlines" json:"deadlines"`
	Templates []string    `yaml:"templates,omitempty" json:"templates,omitempty"`
}

// DefaultProfile returns the profile used when no SITE_PROFILE is set.
func DefaultProfile() *SiteProfile {
	return &SiteProfile{
		Name:      "default",
		Deadlines: tracker.DefaultSLA(),
	}
}

// LoadProfile reads a site profile YAML. Deadline fields left at zero fall
// back to the built-in defaults, so a profile may override just one severity.
func LoadProfile(path string) (*SiteProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load site profile: %w", err)
	}

	var profile SiteProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse site profile %s: %w", path, err)
	}

	defaults := tracker.DefaultSLA()
	if profile.Deadlines.LowDays <= 0 {
		profile.Deadlines.LowDays = defaults.LowDays
	}
	if profile.Deadlines.MediumDays <= 0 {
		profile.Deadlines.MediumDays = defaults.MediumDays
	}
	if profile.Deadlines.HighDays <= 0 {
		profile.Deadlines.HighDays = defaults.HighDays
	}
	return &profile, nil
}
