package entity

// Document status constants for InvoiceRecord
const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusParsed     = "parsed"
	DocStatusVerified   = "verified"
	DocStatusApproved   = "approved"
	DocStatusRejected   = "rejected"
)

// Processing status constants for InvoiceRecord
const (
	ProcStatusPending    = "pending"
	ProcStatusInProgress = "in_progress"
	ProcStatusRetry      = "retry"
	ProcStatusCompleted  = "completed"
	ProcStatusFailed     = "failed"
)

// Lifecycle status constants (soft-delete axis, orthogonal to workflow)
const (
	LifecycleActive   = "active"
	LifecycleArchived = "archived"
)

// Category constants for InvoiceRecord
const (
	CategoryAccommodation  = "accommodation"
	CategoryTransportation = "transportation"
	CategoryMeal           = "meal"
	CategoryEntertainment  = "entertainment"
	CategoryCommunication  = "communication"
	CategoryOther          = "other"
)

// ValidCategories enumerates the accepted category values.
var ValidCategories = map[string]bool{
	CategoryAccommodation:  true,
	CategoryTransportation: true,
	CategoryMeal:           true,
	CategoryEntertainment:  true,
	CategoryCommunication:  true,
	CategoryOther:          true,
}

// Audit action constants, one per workflow transition or record edit.
const (
	AuditActionCreated             = "created"
	AuditActionUpdated             = "updated"
	AuditActionProcessingStarted   = "processing_started"
	AuditActionProcessingRetried   = "processing_retried"
	AuditActionProcessingCompleted = "processing_completed"
	AuditActionProcessingFailed    = "processing_failed"
	AuditActionVerified            = "verified"
	AuditActionApproved            = "approved"
	AuditActionRejected            = "rejected"
	AuditActionArchived            = "archived"
)
