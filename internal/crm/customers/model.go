package customers

import "time"

// Customer is a company or person the business sells to.
type Customer struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	TaxID      *string   `json:"tax_id,omitempty"`
	City       *string   `json:"city,omitempty"`
	Country    string    `json:"country"`
	IsActive   bool      `json:"is_active"`
	Notes      *string   `json:"notes,omitempty"`
	AssignedTo *int64    `json:"assigned_to,omitempty"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListFilter narrows a customer listing.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}
