package models

import "time"

// TrainerHoursRow aggregates held sessions and hours per trainer and month.
// Hours are derived from the session wall-clock slot, cancelled sessions
// excluded.
type TrainerHoursRow struct {
	TrainerID   string  `db:"trainer_id" json:"trainer_id"`
	TrainerName string  `db:"trainer_name" json:"trainer_name"`
	Month       string  `db:"month" json:"month"`
	Sessions    int     `db:"sessions" json:"sessions"`
	Hours       float64 `db:"hours" json:"hours"`
}

// TrainerHoursFilter scopes the aggregation.
type TrainerHoursFilter struct {
	TrainerID string
	From      *time.Time
	To        *time.Time
}
