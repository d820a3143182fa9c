package entity

import "time"

// InvoiceRecord is one record per uploaded billing document. It is created
// by the upload collaborator and afterwards mutated exclusively through the
// workflow engine; it is soft-deleted, never destroyed.
type InvoiceRecord struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`

	InvoiceDate *time.Time `json:"invoice_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	OriginalFileName string `json:"original_file_name"`
	FilePath         string `json:"file_path"`
	FileSize         int64  `json:"file_size"`
	FileType         string `json:"file_type"`
	MimeType         string `json:"mime_type"`

	TripID    string `json:"trip_id"`
	ExpenseID string `json:"expense_id,omitempty"`

	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`

	ParsedData *ParsedData `json:"parsed_data,omitempty"`

	DocumentStatus   string `json:"document_status"`
	ProcessingStatus string `json:"processing_status"`

	Processing ProcessingMetadata `json:"processing_metadata"`

	Verification *Verification `json:"verification,omitempty"`
	Approval     *Approval     `json:"approval,omitempty"`

	LifecycleStatus string `json:"lifecycle_status"`

	CreatedBy string `json:"created_by"`
	UpdatedBy string `json:"updated_by"`

	// Version backs the optimistic-concurrency check on every mutation.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParsedData is the structured extraction result emitted by the external
// pipeline. The record owns it once completeProcessing stores it.
type ParsedData struct {
	Vendor    Party      `json:"vendor"`
	Customer  Party      `json:"customer"`
	Financial Financial  `json:"financial"`
	LineItems []LineItem `json:"line_items,omitempty"`
	// InvoiceDate is the raw date string as extracted, kept verbatim so
	// the validation engine can flag unparseable values.
	InvoiceDate string `json:"invoice_date,omitempty"`
}

// Party identifies a vendor or customer on the parsed invoice.
type Party struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id,omitempty"`
	Address string `json:"address,omitempty"`
}

// Financial holds the parsed monetary totals.
type Financial struct {
	Subtotal       *float64 `json:"subtotal,omitempty"`
	TaxAmount      *float64 `json:"tax_amount,omitempty"`
	TotalAmount    *float64 `json:"total_amount,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	DiscountAmount *float64 `json:"discount_amount,omitempty"`
}

// LineItem is one parsed invoice line.
type LineItem struct {
	Description string   `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
}

// ProcessingMetadata captures the outcome of the last processing run.
type ProcessingMetadata struct {
	ProcessingTime  *float64 `json:"processing_time,omitempty"` // seconds
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	LastError       string   `json:"last_error,omitempty"`
}

// Verification records the human verification step. It is only
// constructible through the verify transition.
type Verification struct {
	VerifiedBy      string    `json:"verified_by"`
	Notes           string    `json:"notes,omitempty"`
	ConfidenceLevel string    `json:"confidence_level,omitempty"`
	VerifiedAt      time.Time `json:"verified_at"`
}

// Approval records the approval decision. IsApproved true implies the
// record's document status is approved.
type Approval struct {
	IsApproved    bool      `json:"is_approved"`
	ApprovedBy    string    `json:"approved_by"`
	ApprovalLevel string    `json:"approval_level,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	DecidedAt     time.Time `json:"decided_at"`
}

// TotalAmount returns the parsed total, or 0 when no parsed data exists.
func (r *InvoiceRecord) TotalAmount() float64 {
	if r.ParsedData == nil || r.ParsedData.Financial.TotalAmount == nil {
		return 0
	}
	return *r.ParsedData.Financial.TotalAmount
}

// IsActive reports whether the record has not been archived.
func (r *InvoiceRecord) IsActive() bool {
	return r.LifecycleStatus == LifecycleActive
}
