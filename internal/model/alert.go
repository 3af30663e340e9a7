package model

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "new"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusInProgress   AlertStatus = "in_progress"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusDismissed    AlertStatus = "dismissed"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusNew, AlertStatusAcknowledged, AlertStatusInProgress, AlertStatusResolved, AlertStatusDismissed:
		return true
	}
	return false
}

type Alert struct {
	ID          int64       `json:"id"`
	ProfileID   int64       `json:"profile_id"`
	InsightID   int64       `json:"insight_id"`
	Severity    Severity    `json:"severity"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      AlertStatus `json:"status"`
	UserNotes   *string     `json:"user_notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
