package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
	"github.com/tripoptimizer/invoice-engine/migrations"
	"github.com/tripoptimizer/invoice-engine/pkg/database"
)

// newTestDB opens an in-memory database with the full schema applied.
// A single connection keeps the memory database alive for the test.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations(migrations.FS))

	return db
}

func testRecord(mutate ...func(*entity.InvoiceRecord)) *entity.InvoiceRecord {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rec := &entity.InvoiceRecord{
		ID:               uuid.NewString(),
		InvoiceNumber:    "INV-" + uuid.NewString()[:8],
		OriginalFileName: "invoice.pdf",
		FilePath:         "uploads/invoice.pdf",
		FileSize:         2048,
		FileType:         "pdf",
		MimeType:         "application/pdf",
		TripID:           uuid.NewString(),
		Category:         entity.CategoryAccommodation,
		Tags:             []string{"hotel"},
		DocumentStatus:   entity.DocStatusUploaded,
		ProcessingStatus: entity.ProcStatusPending,
		LifecycleStatus:  entity.LifecycleActive,
		CreatedBy:        "system",
		UpdatedBy:        "system",
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, fn := range mutate {
		fn(rec)
	}
	return rec
}

func withParsedTotal(total float64) func(*entity.InvoiceRecord) {
	return func(rec *entity.InvoiceRecord) {
		rec.ParsedData = &entity.ParsedData{
			Vendor:   entity.Party{Name: "Grand Hotel"},
			Customer: entity.Party{Name: "Acme Corp"},
			Financial: entity.Financial{
				TotalAmount: &total,
				Currency:    "EUR",
			},
		}
	}
}

func withInvoiceDate(year int, month time.Month, day int) func(*entity.InvoiceRecord) {
	return func(rec *entity.InvoiceRecord) {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		rec.InvoiceDate = &d
	}
}
