package models

import "time"

// AttendanceStatus is the closed three-value outcome enum.
type AttendanceStatus string

const (
	AttendancePresent         AttendanceStatus = "PRESENT"
	AttendanceAbsentExcused   AttendanceStatus = "ABSENT_EXCUSED"
	AttendanceAbsentUnexcused AttendanceStatus = "ABSENT_UNEXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsentExcused, AttendanceAbsentUnexcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is the trainer-entered ground truth for one athlete and
// one session.
type AttendanceRecord struct {
	ID             string           `db:"id" json:"id"`
	SessionID      string           `db:"session_id" json:"session_id"`
	AthleteID      string           `db:"athlete_id" json:"athlete_id"`
	Status         AttendanceStatus `db:"status" json:"status"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	MarkedBy       string           `db:"marked_by" json:"marked_by"`
	MarkedAt       time.Time        `db:"marked_at" json:"marked_at"`
	LastModifiedBy *string          `db:"last_modified_by" json:"last_modified_by,omitempty"`
	LastModifiedAt *time.Time       `db:"last_modified_at" json:"last_modified_at,omitempty"`
}

// AttendanceRecordDetail extends a record with athlete metadata.
type AttendanceRecordDetail struct {
	AttendanceRecord
	AthleteName string `db:"athlete_name" json:"athlete_name"`
}

// AttendanceHistoryRow captures one session outcome in an athlete's history.
type AttendanceHistoryRow struct {
	SessionID string           `db:"session_id" json:"session_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
}

// AbsenceCount is the live unexcused-absence tally for one athlete within
// the rolling window.
type AbsenceCount struct {
	AthleteID   string `db:"athlete_id" json:"athlete_id"`
	AthleteName string `db:"athlete_name" json:"athlete_name"`
	Count       int    `db:"count" json:"count"`
}
