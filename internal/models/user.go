package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTrainer UserRole = "TRAINER"
	RoleAthlete UserRole = "ATHLETE"
)

// Valid returns true when the role is a supported value.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTrainer, RoleAthlete:
		return true
	default:
		return false
	}
}

// ApprovalState tracks the registration review workflow.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "PENDING"
	ApprovalApproved ApprovalState = "APPROVED"
	ApprovalRejected ApprovalState = "REJECTED"
)

// User represents an application user stored in the users table.
type User struct {
	ID              string        `db:"id" json:"id"`
	Email           string        `db:"email" json:"email"`
	PasswordHash    string        `db:"password_hash" json:"-"`
	FullName        string        `db:"full_name" json:"full_name"`
	Role            UserRole      `db:"role" json:"role"`
	ApprovalState   ApprovalState `db:"approval_state" json:"approval_state"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Approval  *ApprovalState
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
