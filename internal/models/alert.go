package models

import "time"

// AbsenceAlert is a persisted notice that an athlete crossed the unexcused
// absence threshold. Acknowledgement is a one-way transition.
type AbsenceAlert struct {
	ID             string     `db:"id" json:"id"`
	AthleteID      string     `db:"athlete_id" json:"athlete_id"`
	AbsenceCount   int        `db:"absence_count" json:"absence_count"`
	WindowDays     int        `db:"window_days" json:"window_days"`
	Acknowledged   bool       `db:"acknowledged" json:"acknowledged"`
	AcknowledgedBy *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// AbsenceAlertFilter scopes alert listing.
type AbsenceAlertFilter struct {
	AthleteID    string
	Acknowledged *bool
	Page         int
	PageSize     int
}
