package models

import "time"

// TrainingPlanDocument is an uploaded PDF distributed to a group or to the
// whole club (GroupID nil).
type TrainingPlanDocument struct {
	ID         string         `db:"id" json:"id"`
	Title      string         `db:"title" json:"title"`
	Filename   string         `db:"filename" json:"filename"`
	StoredPath string         `db:"stored_path" json:"-"`
	SizeBytes  int64          `db:"size_bytes" json:"size_bytes"`
	MimeType   string         `db:"mime_type" json:"mime_type"`
	GroupID    *string        `db:"group_id" json:"group_id,omitempty"`
	State      LifecycleState `db:"state" json:"state"`
	UploadedBy string         `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentFilter scopes document listing.
type DocumentFilter struct {
	GroupID  string
	State    *LifecycleState
	Page     int
	PageSize int
}
