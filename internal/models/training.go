package models

import (
	"fmt"
	"time"
)

// Recurrence controls the step between materialized sessions.
type Recurrence string

const (
	RecurrenceWeekly   Recurrence = "WEEKLY"
	RecurrenceBiweekly Recurrence = "BIWEEKLY"
	// RecurrenceMonthly is approximated as a fixed four-week step and is
	// deliberately not calendar-month aware.
	RecurrenceMonthly Recurrence = "MONTHLY"
)

// Valid returns true when the recurrence is a supported value.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// IntervalDays returns the day step for the recurrence.
func (r Recurrence) IntervalDays() int {
	switch r {
	case RecurrenceBiweekly:
		return 14
	case RecurrenceMonthly:
		return 28
	default:
		return 7
	}
}

// RecurringTraining is the template a weekly/biweekly/monthly slot is
// materialized from. Times are local wall-clock strings (HH:MM).
type RecurringTraining struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	DayOfWeek   int            `db:"day_of_week" json:"day_of_week"`
	StartTime   string         `db:"start_time" json:"start_time"`
	EndTime     string         `db:"end_time" json:"end_time"`
	Recurrence  Recurrence     `db:"recurrence" json:"recurrence"`
	ActiveFrom  time.Time      `db:"active_from" json:"active_from"`
	ActiveUntil *time.Time     `db:"active_until" json:"active_until,omitempty"`
	State       LifecycleState `db:"state" json:"state"`
	CreatedBy   string         `db:"created_by" json:"created_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// TrainingGroup is a named subdivision of a template used for
// differentiated exercises.
type TrainingGroup struct {
	ID         string    `db:"id" json:"id"`
	TrainingID string    `db:"training_id" json:"training_id"`
	Name       string    `db:"name" json:"name"`
	SortOrder  int       `db:"sort_order" json:"sort_order"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// GroupAthlete links an athlete to a template group.
type GroupAthlete struct {
	ID         string    `db:"id" json:"id"`
	GroupID    string    `db:"group_id" json:"group_id"`
	AthleteID  string    `db:"athlete_id" json:"athlete_id"`
	AssignedBy string    `db:"assigned_by" json:"assigned_by"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// GroupTrainer links a trainer to a template group.
type GroupTrainer struct {
	ID         string    `db:"id" json:"id"`
	GroupID    string    `db:"group_id" json:"group_id"`
	TrainerID  string    `db:"trainer_id" json:"trainer_id"`
	IsPrimary  bool      `db:"is_primary" json:"is_primary"`
	AssignedBy string    `db:"assigned_by" json:"assigned_by"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// TrainingFilter describes query params for listing templates.
type TrainingFilter struct {
	State     *LifecycleState
	DayOfWeek *int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// GroupAssignmentConflict names the group an athlete already belongs to
// within the same template.
type GroupAssignmentConflict struct {
	TrainingID string `db:"training_id" json:"training_id"`
	GroupID    string `db:"group_id" json:"group_id"`
	GroupName  string `db:"group_name" json:"group_name"`
}

// GroupAssignmentConflictError is returned when an athlete is assigned to a
// second group under the same template.
type GroupAssignmentConflictError struct {
	AthleteID string                  `json:"athlete_id"`
	Conflict  GroupAssignmentConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *GroupAssignmentConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("athlete %s already assigned to group %q in the same training", e.AthleteID, e.Conflict.GroupName)
}
