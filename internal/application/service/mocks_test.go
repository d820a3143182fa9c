package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

// fakeInvoiceRepo is a map-backed repository double that enforces the same
// version check as the sqlite implementation.
type fakeInvoiceRepo struct {
	mu      sync.Mutex
	records map[string]*entity.InvoiceRecord
	failOn  string // method name that should return a storage error

	// conflictOnUpdate simulates a concurrent writer sneaking in between
	// the read and the version-checked write.
	conflictOnUpdate bool

	// afterRead, when set, runs after GetByID takes its snapshot. Tests use
	// it to hold several readers at the same version before any write.
	afterRead func()

	// lastListFilter captures the filter List was called with.
	lastListFilter port.ListFilter
}

func newFakeInvoiceRepo(records ...*entity.InvoiceRecord) *fakeInvoiceRepo {
	repo := &fakeInvoiceRepo{records: make(map[string]*entity.InvoiceRecord)}
	for _, rec := range records {
		cp := *rec
		repo.records[rec.ID] = &cp
	}
	return repo
}

func (r *fakeInvoiceRepo) Create(_ context.Context, rec *entity.InvoiceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "Create" {
		return apperr.New(apperr.KindStorage, "create failed")
	}
	for _, existing := range r.records {
		if existing.InvoiceNumber == rec.InvoiceNumber && existing.IsActive() {
			return apperr.New(apperr.KindConflict, "invoice number %q already exists", rec.InvoiceNumber)
		}
	}
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, id string) (*entity.InvoiceRecord, error) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return nil, apperr.New(apperr.KindNotFound, "invoice %s not found", id)
	}
	cp := *rec
	r.mu.Unlock()
	if r.afterRead != nil {
		r.afterRead()
	}
	return &cp, nil
}

func (r *fakeInvoiceRepo) List(_ context.Context, filter port.ListFilter) ([]*entity.InvoiceRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastListFilter = filter
	if r.failOn == "List" {
		return nil, 0, apperr.New(apperr.KindStorage, "list failed")
	}
	out := make([]*entity.InvoiceRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.IsActive() {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeInvoiceRepo) Update(_ context.Context, rec *entity.InvoiceRecord, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "Update" {
		return apperr.New(apperr.KindStorage, "update failed")
	}
	stored, ok := r.records[rec.ID]
	if !ok {
		return apperr.New(apperr.KindNotFound, "invoice %s not found", rec.ID)
	}
	if r.conflictOnUpdate || stored.Version != expectedVersion {
		return apperr.New(apperr.KindConflict, "invoice %s was modified concurrently", rec.ID)
	}
	cp := *rec
	cp.Version = expectedVersion + 1
	r.records[rec.ID] = &cp
	rec.Version = cp.Version
	return nil
}

func (r *fakeInvoiceRepo) CountActiveByIDs(_ context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if rec, ok := r.records[id]; ok && rec.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *fakeInvoiceRepo) BulkUpdate(_ context.Context, ids []string, fields port.BulkFields, actor string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		rec, ok := r.records[id]
		if !ok || !rec.IsActive() {
			continue
		}
		if fields.Category != nil {
			rec.Category = *fields.Category
		}
		if fields.Tags != nil {
			rec.Tags = fields.Tags
		}
		if fields.ExpenseID != nil {
			rec.ExpenseID = *fields.ExpenseID
		}
		rec.UpdatedBy = actor
		rec.Version++
		n++
	}
	return n, nil
}

func (r *fakeInvoiceRepo) BulkArchive(_ context.Context, ids []string, actor string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		rec, ok := r.records[id]
		if !ok || !rec.IsActive() {
			continue
		}
		rec.LifecycleStatus = entity.LifecycleArchived
		rec.UpdatedBy = actor
		rec.Version++
		n++
	}
	return n, nil
}

// fakeAuditRepo records appended entries in order.
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
	failOn  string
}

func (r *fakeAuditRepo) Append(_ context.Context, entry *entity.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "Append" {
		return apperr.New(apperr.KindStorage, "append failed")
	}
	cp := *entry
	cp.ID = int64(len(r.entries) + 1)
	cp.Timestamp = time.Now().UTC()
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakeAuditRepo) ListByInvoiceID(_ context.Context, invoiceID string) ([]*entity.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.AuditEntry
	for _, entry := range r.entries {
		if entry.InvoiceID == invoiceID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Action)
	}
	return out
}

// fakeTxManager runs the function directly; the fakes have no real
// transaction to join.
type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
