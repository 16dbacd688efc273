package models

import "time"

// ClubSettings is the single mutable settings record. It is loaded once per
// request and passed into services as a value, never read from globals.
type ClubSettings struct {
	ID                          int       `db:"id" json:"-"`
	CancellationDeadlineHours   int       `db:"cancellation_deadline_hours" json:"cancellation_deadline_hours"`
	CancellationReasonMinLength int       `db:"cancellation_reason_min_length" json:"cancellation_reason_min_length"`
	AbsenceAlertThreshold       int       `db:"absence_alert_threshold" json:"absence_alert_threshold"`
	AbsenceAlertWindowDays      int       `db:"absence_alert_window_days" json:"absence_alert_window_days"`
	AbsenceAlertCooldownDays    int       `db:"absence_alert_cooldown_days" json:"absence_alert_cooldown_days"`
	SessionGenerationDaysAhead  int       `db:"session_generation_days_ahead" json:"session_generation_days_ahead"`
	MaxUploadSizeMB             int       `db:"max_upload_size_mb" json:"max_upload_size_mb"`
	UpdatedBy                   *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt                   time.Time `db:"updated_at" json:"updated_at"`
}

// CancellationDeadline returns the latest instant a cancellation for a
// session starting at start may still be created, edited or undone.
func (s ClubSettings) CancellationDeadline(start time.Time) time.Time {
	return start.Add(-time.Duration(s.CancellationDeadlineHours) * time.Hour)
}
