package tasks

import "time"

// Status tracks a task through its lifecycle.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known task status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Priority orders tasks within a list.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// RelatedKind names the record type a task is attached to.
type RelatedKind string

const (
	RelatedLead      RelatedKind = "lead"
	RelatedCustomer  RelatedKind = "customer"
	RelatedQuotation RelatedKind = "quotation"
)

// Task is a follow-up item owned by a sales user.
type Task struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority"`
	DueAt       *time.Time   `json:"due_at,omitempty"`
	RelatedKind *RelatedKind `json:"related_kind,omitempty"`
	RelatedID   *int64       `json:"related_id,omitempty"`
	AssignedTo  *int64       `json:"assigned_to,omitempty"`
	CreatedBy   int64        `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ListFilter narrows a task listing.
type ListFilter struct {
	Status Status
	DueBy  *time.Time
	Limit  int
	Offset int
}
