package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

func newTestInvoiceService(records ...*entity.InvoiceRecord) (*InvoiceService, *fakeInvoiceRepo, *fakeAuditRepo) {
	invoices := newFakeInvoiceRepo(records...)
	audit := &fakeAuditRepo{}
	svc := NewInvoiceService(invoices, audit, fakeTxManager{}, testLogger())
	return svc, invoices, audit
}

func TestInvoiceService_Create(t *testing.T) {
	svc, _, audit := newTestInvoiceService()

	rec, err := svc.Create(context.Background(), CreateInvoiceInput{
		InvoiceNumber: "INV-2024-001",
		TripID:        uuid.NewString(),
		Category:      entity.CategoryMeal,
		Tags:          []string{"team-dinner"},
	}, "alice")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, entity.DocStatusUploaded, rec.DocumentStatus)
	assert.Equal(t, entity.ProcStatusPending, rec.ProcessingStatus)
	assert.Equal(t, entity.LifecycleActive, rec.LifecycleStatus)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, "alice", rec.CreatedBy)
	assert.Equal(t, []string{entity.AuditActionCreated}, audit.actions())
}

func TestInvoiceService_Create_DefaultsCategory(t *testing.T) {
	svc, _, _ := newTestInvoiceService()

	rec, err := svc.Create(context.Background(), CreateInvoiceInput{
		InvoiceNumber: "INV-2024-001",
		TripID:        uuid.NewString(),
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, entity.CategoryOther, rec.Category)
}

func TestInvoiceService_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateInvoiceInput
	}{
		{"missing invoice number", CreateInvoiceInput{TripID: uuid.NewString()}},
		{"missing trip id", CreateInvoiceInput{InvoiceNumber: "INV-1"}},
		{"malformed trip id", CreateInvoiceInput{InvoiceNumber: "INV-1", TripID: "not-a-uuid"}},
		{"malformed expense id", CreateInvoiceInput{InvoiceNumber: "INV-1", TripID: uuid.NewString(), ExpenseID: "nope"}},
		{"unknown category", CreateInvoiceInput{InvoiceNumber: "INV-1", TripID: uuid.NewString(), Category: "groceries"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, audit := newTestInvoiceService()

			_, err := svc.Create(context.Background(), tt.input, "alice")
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Empty(t, audit.actions())
		})
	}
}

func TestInvoiceService_Create_DuplicateNumberConflict(t *testing.T) {
	existing := recordInState(entity.DocStatusUploaded, entity.ProcStatusPending)
	svc, _, _ := newTestInvoiceService(existing)

	_, err := svc.Create(context.Background(), CreateInvoiceInput{
		InvoiceNumber: existing.InvoiceNumber,
		TripID:        uuid.NewString(),
	}, "alice")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestInvoiceService_Get(t *testing.T) {
	rec := recordInState(entity.DocStatusUploaded, entity.ProcStatusPending)
	svc, _, audit := newTestInvoiceService(rec)
	require.NoError(t, audit.Append(context.Background(), &entity.AuditEntry{
		InvoiceID: rec.ID,
		Action:    entity.AuditActionCreated,
	}))

	detail, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, detail.Record.ID)
	require.Len(t, detail.AuditTrail, 1)
	assert.Equal(t, entity.AuditActionCreated, detail.AuditTrail[0].Action)
}

func TestInvoiceService_Get_Errors(t *testing.T) {
	svc, _, _ := newTestInvoiceService()

	_, err := svc.Get(context.Background(), "not-a-uuid")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.Get(context.Background(), uuid.NewString())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestInvoiceService_List_PagingDefaults(t *testing.T) {
	svc, _, _ := newTestInvoiceService(
		recordInState(entity.DocStatusUploaded, entity.ProcStatusPending))

	_, total, err := svc.List(context.Background(), port.ListFilter{Limit: -5, Offset: -1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestInvoiceService_List_ClampsOversizedLimit(t *testing.T) {
	svc, invoices, _ := newTestInvoiceService(
		recordInState(entity.DocStatusUploaded, entity.ProcStatusPending))

	_, _, err := svc.List(context.Background(), port.ListFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, invoices.lastListFilter.Limit)

	_, _, err = svc.List(context.Background(), port.ListFilter{Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 20, invoices.lastListFilter.Limit)

	_, _, err = svc.List(context.Background(), port.ListFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 100, invoices.lastListFilter.Limit)
}

func TestInvoiceService_Update(t *testing.T) {
	rec := recordInState(entity.DocStatusUploaded, entity.ProcStatusPending)
	svc, invoices, audit := newTestInvoiceService(rec)

	category := entity.CategoryTransportation
	number := "INV-2024-002"
	got, err := svc.Update(context.Background(), rec.ID, UpdateInvoiceFields{
		InvoiceNumber: &number,
		Category:      &category,
		Tags:          []string{"taxi"},
	}, "alice")
	require.NoError(t, err)

	assert.Equal(t, "INV-2024-002", got.InvoiceNumber)
	assert.Equal(t, entity.CategoryTransportation, got.Category)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, entity.AuditActionUpdated, entry.Action)
	require.Contains(t, entry.Changes, "category")
	assert.Equal(t, entity.CategoryAccommodation, entry.Changes["category"].Old)
	assert.Equal(t, entity.CategoryTransportation, entry.Changes["category"].New)
	assert.Contains(t, entry.Changes, "invoice_number")
	assert.Contains(t, entry.Changes, "tags")

	stored, err := invoices.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestInvoiceService_Update_NoChangesNoAudit(t *testing.T) {
	rec := recordInState(entity.DocStatusUploaded, entity.ProcStatusPending)
	svc, invoices, audit := newTestInvoiceService(rec)

	same := rec.Category
	got, err := svc.Update(context.Background(), rec.ID, UpdateInvoiceFields{Category: &same}, "alice")
	require.NoError(t, err)

	assert.Empty(t, audit.actions())

	stored, err := invoices.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Version, stored.Version)
	assert.Equal(t, rec.Category, got.Category)
}

func TestInvoiceService_Update_Validation(t *testing.T) {
	rec := recordInState(entity.DocStatusUploaded, entity.ProcStatusPending)

	empty := ""
	badCategory := "groceries"
	badTrip := "not-a-uuid"

	tests := []struct {
		name   string
		fields UpdateInvoiceFields
	}{
		{"empty invoice number", UpdateInvoiceFields{InvoiceNumber: &empty}},
		{"unknown category", UpdateInvoiceFields{Category: &badCategory}},
		{"malformed trip id", UpdateInvoiceFields{TripID: &badTrip}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestInvoiceService(rec)

			_, err := svc.Update(context.Background(), rec.ID, tt.fields, "alice")
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
}

func TestInvoiceService_Update_ArchivedRejected(t *testing.T) {
	rec := recordInState(entity.DocStatusUploaded, entity.ProcStatusPending)
	rec.LifecycleStatus = entity.LifecycleArchived
	svc, _, _ := newTestInvoiceService(rec)

	number := "INV-2024-002"
	_, err := svc.Update(context.Background(), rec.ID, UpdateInvoiceFields{InvoiceNumber: &number}, "alice")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
