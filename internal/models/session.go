package models

import "time"

// NormalizeDate collapses any instant to UTC midnight of its calendar day.
// Session dates are stored this way so that date equality never depends on
// the server timezone.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TrainingSession is one concrete dated occurrence, materialized from a
// template or created ad hoc (TrainingID nil).
type TrainingSession struct {
	ID           string     `db:"id" json:"id"`
	TrainingID   *string    `db:"training_id" json:"training_id,omitempty"`
	Date         time.Time  `db:"date" json:"date"`
	StartTime    string     `db:"start_time" json:"start_time"`
	EndTime      string     `db:"end_time" json:"end_time"`
	Cancelled    bool       `db:"cancelled" json:"cancelled"`
	CancelReason *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	Completed    bool       `db:"completed" json:"completed"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// StartInstant combines the session date with its wall-clock start time.
func (s TrainingSession) StartInstant() time.Time {
	return combineDateTime(s.Date, s.StartTime)
}

// EndInstant combines the session date with its wall-clock end time.
func (s TrainingSession) EndInstant() time.Time {
	return combineDateTime(s.Date, s.EndTime)
}

// Duration returns the slot length; zero when the time strings are malformed.
func (s TrainingSession) Duration() time.Duration {
	d := s.EndInstant().Sub(s.StartInstant())
	if d < 0 {
		return 0
	}
	return d
}

func combineDateTime(date time.Time, wallClock string) time.Time {
	parsed, err := time.Parse("15:04", wallClock)
	if err != nil {
		return NormalizeDate(date)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
}

// SessionGroup is the per-session copy of a template group, independently
// editable after materialization.
type SessionGroup struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	GroupID   *string   `db:"group_id" json:"group_id,omitempty"`
	Name      string    `db:"name" json:"name"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	Exercises *string   `db:"exercises" json:"exercises,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SessionTrainer is the trainer roster snapshot on a session group.
type SessionTrainer struct {
	ID             string `db:"id" json:"id"`
	SessionGroupID string `db:"session_group_id" json:"session_group_id"`
	TrainerID      string `db:"trainer_id" json:"trainer_id"`
	IsPrimary      bool   `db:"is_primary" json:"is_primary"`
}

// SessionAthleteMove overrides an athlete's group for exactly one session.
type SessionAthleteMove struct {
	ID             string    `db:"id" json:"id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	AthleteID      string    `db:"athlete_id" json:"athlete_id"`
	SessionGroupID string    `db:"session_group_id" json:"session_group_id"`
	Reason         string    `db:"reason" json:"reason"`
	MovedBy        string    `db:"moved_by" json:"moved_by"`
	MovedAt        time.Time `db:"moved_at" json:"moved_at"`
}

// SessionFilter scopes session listing queries.
type SessionFilter struct {
	TrainingID       string
	AthleteID        string
	TrainerID        string
	DateFrom         *time.Time
	DateTo           *time.Time
	IncludeCancelled bool
	Page             int
	PageSize         int
}

// SessionDetail bundles a session with its groups for schedule views.
type SessionDetail struct {
	TrainingSession
	TrainingName *string        `db:"training_name" json:"training_name,omitempty"`
	Groups       []SessionGroup `db:"-" json:"groups,omitempty"`
}
