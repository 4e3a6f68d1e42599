package tracker

import (
	"time"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

// SLA holds the remediation deadline, in days, applied per severity when an
// action is created without an explicit due date. Loaded from the deadline
// profile at startup; DefaultSLA applies when no profile is configured.
type SLA struct {
	LowDays    int `yaml:"low_days" json:"low_days"`
	MediumDays int `yaml:"medium_days" json:"medium_days"`
	HighDays   int `yaml:"high_days" json:"high_days"`
}

// DefaultSLA returns the built-in deadlines: 30/7/1 days.
func DefaultSLA() SLA {
	return SLA{LowDays: 30, MediumDays: 7, HighDays: 1}
}

// Due returns the default due date for a severity relative to now.
func (s SLA) Due(severity contracts.Severity, now time.Time) time.Time {
	days := s.MediumDays
	switch severity {
	case contracts.SeverityLow:
		days = s.LowDays
	case contracts.SeverityHigh:
		days = s.HighDays
	}
	return now.AddDate(0, 0, days)
}
