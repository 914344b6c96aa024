package quotations

import "time"

// Status tracks a quotation through its lifecycle.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// CanTransition reports whether moving from s to next is a legal step.
// Accepted, rejected and expired are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusSent
	case StatusSent:
		return next == StatusAccepted || next == StatusRejected || next == StatusExpired
	default:
		return false
	}
}

// Quotation is a priced offer extended to a customer.
type Quotation struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	CustomerID  int64     `json:"customer_id"`
	Status      Status    `json:"status"`
	Currency    string    `json:"currency"`
	Subtotal    float64   `json:"subtotal"`
	TaxAmount   float64   `json:"tax_amount"`
	TotalAmount float64   `json:"total_amount"`
	ValidUntil  time.Time `json:"valid_until"`
	Notes       *string   `json:"notes,omitempty"`
	AssignedTo  *int64    `json:"assigned_to,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Lines       []Line    `json:"lines,omitempty"`
}

// Line is one priced position on a quotation.
type Line struct {
	ID              int64   `json:"id"`
	QuotationID     int64   `json:"quotation_id"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountAmount  float64 `json:"discount_amount"`
	TaxPercent      float64 `json:"tax_percent"`
	TaxAmount       float64 `json:"tax_amount"`
	LineTotal       float64 `json:"line_total"`
	LineOrder       int     `json:"line_order"`
}

// ListFilter narrows a quotation listing.
type ListFilter struct {
	Status     Status
	CustomerID int64
	Limit      int
	Offset     int
}

// CalculateLineTotals derives the monetary amounts of one line. The discount
// applies to the gross amount and tax applies to the discounted net.
func CalculateLineTotals(quantity, unitPrice, discountPercent, taxPercent float64) (discountAmount, taxAmount, lineTotal float64) {
	grossAmount := quantity * unitPrice
	discountAmount = grossAmount * (discountPercent / 100)
	netAmount := grossAmount - discountAmount
	taxAmount = netAmount * (taxPercent / 100)
	lineTotal = netAmount + taxAmount
	return
}
