package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// LifecycleState tags soft-deletable rows instead of an overloaded boolean.
type LifecycleState string

const (
	LifecycleActive  LifecycleState = "ACTIVE"
	LifecycleRetired LifecycleState = "RETIRED"
)

// Valid returns true when the state is a supported value.
func (s LifecycleState) Valid() bool {
	return s == LifecycleActive || s == LifecycleRetired
}
