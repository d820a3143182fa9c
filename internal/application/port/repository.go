package port

import (
	"context"
	"time"

	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

// ListFilter narrows and pages the invoice list query.
type ListFilter struct {
	DocumentStatus   string
	ProcessingStatus string
	Category         string
	TripID           string
	From             *time.Time
	To               *time.Time
	// Search matches invoice number and parsed vendor name.
	Search  string
	SortBy  string // created_at | invoice_date | total_amount
	SortDir string // asc | desc
	// Limit <= 0 disables paging (used by export).
	Limit  int
	Offset int
}

// AnalyticsFilter scopes the read-side rollups.
type AnalyticsFilter struct {
	TripID string
	From   *time.Time
	To     *time.Time
}

// BulkFields is the restricted field set a bulk update may touch. Nil
// pointers leave the column unchanged.
type BulkFields struct {
	Category  *string
	Tags      []string
	ExpenseID *string
}

// Overview is the top-level analytics rollup.
type Overview struct {
	Count             int64   `json:"count"`
	TotalAmount       float64 `json:"total_amount"`
	AvgAmount         float64 `json:"avg_amount"`
	MinAmount         float64 `json:"min_amount"`
	MaxAmount         float64 `json:"max_amount"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
	AvgConfidence     float64 `json:"avg_confidence"`
}

// ProcessingGroup is one per-processing-status metrics row.
type ProcessingGroup struct {
	ProcessingStatus  string  `json:"processing_status"`
	Count             int64   `json:"count"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
	AvgConfidence     float64 `json:"avg_confidence"`
}

// TrendBucket is one (year, month) aggregation bucket.
type TrendBucket struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	AvgAmount   float64 `json:"avg_amount"`
}

// QueueGroup is the per-status summary of the processing queue.
type QueueGroup struct {
	ProcessingStatus string  `json:"processing_status"`
	Count            int64   `json:"count"`
	AvgWaitSeconds   float64 `json:"avg_wait_seconds"`
}

// InvoiceRepository defines persistence operations for InvoiceRecord.
type InvoiceRepository interface {
	// Create inserts a new record. A live duplicate invoice number is a
	// conflict error.
	Create(ctx context.Context, rec *entity.InvoiceRecord) error

	// GetByID retrieves a record, regardless of lifecycle status.
	GetByID(ctx context.Context, id string) (*entity.InvoiceRecord, error)

	// List returns the filtered page plus the unpaged match count.
	List(ctx context.Context, filter ListFilter) ([]*entity.InvoiceRecord, int64, error)

	// Update persists the record if and only if the stored version still
	// equals expectedVersion; the version is incremented on success. A
	// stale version is a conflict error.
	Update(ctx context.Context, rec *entity.InvoiceRecord, expectedVersion int64) error

	// CountActiveByIDs returns how many of the ids reference active records.
	CountActiveByIDs(ctx context.Context, ids []string) (int64, error)

	// BulkUpdate applies the field set to all active records in ids in a
	// single statement and returns the number of rows modified.
	BulkUpdate(ctx context.Context, ids []string, fields BulkFields, actor string) (int64, error)

	// BulkArchive soft-deletes all active records in ids and returns the
	// number of rows modified.
	BulkArchive(ctx context.Context, ids []string, actor string) (int64, error)
}

// AuditRepository defines the append-only audit trail log. Entries are
// never updated or removed.
type AuditRepository interface {
	// Append stores the entry, assigning its timestamp.
	Append(ctx context.Context, entry *entity.AuditEntry) error

	// ListByInvoiceID returns all entries for a record in append order.
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.AuditEntry, error)
}

// AnalyticsRepository computes read-side rollups over active records.
type AnalyticsRepository interface {
	Overview(ctx context.Context, filter AnalyticsFilter) (*Overview, error)
	ProcessingMetrics(ctx context.Context, filter AnalyticsFilter) ([]ProcessingGroup, error)
	// MonthlyTrend returns chronological buckets capped at the most
	// recent `limit` months.
	MonthlyTrend(ctx context.Context, filter AnalyticsFilter, limit int) ([]TrendBucket, error)
}

// QueueRepository exposes the processing-queue read model.
type QueueRepository interface {
	// PendingRecords returns active records still being processed,
	// oldest created first.
	PendingRecords(ctx context.Context) ([]*entity.InvoiceRecord, error)

	// Summary groups the queue by processing status. Wait times are
	// measured against now.
	Summary(ctx context.Context, now time.Time) ([]QueueGroup, error)
}

// TransactionManager executes a function within a storage transaction.
// Nested calls reuse the outer transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
