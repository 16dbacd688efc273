package models

import "time"

// Cancellation records a person's opt-out of one session. At most one
// ACTIVE cancellation may exist per (person, session) pair; undone rows are
// RETIRED, never deleted.
type Cancellation struct {
	ID        string         `db:"id" json:"id"`
	SessionID string         `db:"session_id" json:"session_id"`
	PersonID  string         `db:"person_id" json:"person_id"`
	Reason    string         `db:"reason" json:"reason"`
	State     LifecycleState `db:"state" json:"state"`
	UndoneAt  *time.Time     `db:"undone_at" json:"undone_at,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// CancellationFilter scopes listing queries.
type CancellationFilter struct {
	SessionID string
	PersonID  string
	State     *LifecycleState
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
