package models

import "time"

// Severity captures alert impact levels.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one raised condition for a (service, rule) pair. At most one
// alert per pair is active at a time; resolution stamps ResolvedAt on the
// history entry rather than appending a duplicate.
type Alert struct {
	ID             string
	ServiceName    string
	RuleName       string
	Severity       Severity
	Message        string
	StartedAt      time.Time
	LastSeen       time.Time
	ResolvedAt     *time.Time
	HealthSnapshot ServiceHealth
}
