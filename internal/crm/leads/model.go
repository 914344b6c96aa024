package leads

import "time"

// Status tracks a lead through the pipeline.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

// Valid reports whether s is a known pipeline status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusLost:
		return true
	}
	return false
}

// Lead is a potential customer being worked by sales.
type Lead struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Company        *string   `json:"company,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Source         *string   `json:"source,omitempty"`
	Status         Status    `json:"status"`
	EstimatedValue float64   `json:"estimated_value"`
	Notes          *string   `json:"notes,omitempty"`
	AssignedTo     *int64    `json:"assigned_to,omitempty"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListFilter narrows a lead listing.
type ListFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}
