package entity

import "time"

// AuditEntry is one immutable line of a record's audit trail. Entries are
// append-only; timestamps are assigned when appended, never by the caller.
type AuditEntry struct {
	ID          int64                  `json:"id"`
	InvoiceID   string                 `json:"invoice_id"`
	Action      string                 `json:"action"`
	PerformedBy string                 `json:"performed_by"`
	Timestamp   time.Time              `json:"timestamp"`
	Details     string                 `json:"details,omitempty"`
	Changes     map[string]FieldChange `json:"changes,omitempty"`
}

// FieldChange is the structured old/new pair stored for a record edit.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}
