package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

// CreateInvoiceInput carries everything the upload collaborator supplies
// at record-creation time. File metadata is opaque to the core.
type CreateInvoiceInput struct {
	InvoiceNumber    string
	InvoiceDate      *time.Time
	DueDate          *time.Time
	OriginalFileName string
	FilePath         string
	FileSize         int64
	FileType         string
	MimeType         string
	TripID           string
	ExpenseID        string
	Category         string
	Tags             []string
}

// UpdateInvoiceFields is the free-form edit surface outside the workflow.
// Nil pointers leave the field untouched.
type UpdateInvoiceFields struct {
	InvoiceNumber *string
	InvoiceDate   *time.Time
	DueDate       *time.Time
	Category      *string
	Tags          []string
	TripID        *string
	ExpenseID     *string
}

// InvoiceDetail is a record together with its audit trail.
type InvoiceDetail struct {
	Record     *entity.InvoiceRecord `json:"record"`
	AuditTrail []*entity.AuditEntry  `json:"audit_trail"`
}

// InvoiceService owns record CRUD. Status fields are off-limits here; all
// workflow movement goes through the WorkflowEngine.
type InvoiceService struct {
	invoices port.InvoiceRepository
	audit    port.AuditRepository
	tx       port.TransactionManager
	logger   *zap.Logger
	now      func() time.Time
}

// NewInvoiceService creates the invoice service.
func NewInvoiceService(
	invoices port.InvoiceRepository,
	audit port.AuditRepository,
	tx port.TransactionManager,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		audit:    audit,
		tx:       tx,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new uploaded document in its initial workflow state.
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput, actor string) (*entity.InvoiceRecord, error) {
	if input.InvoiceNumber == "" {
		return nil, apperr.New(apperr.KindValidation, "invoice number is required")
	}
	if input.TripID == "" {
		return nil, apperr.New(apperr.KindValidation, "trip id is required")
	}
	if _, err := uuid.Parse(input.TripID); err != nil {
		return nil, apperr.New(apperr.KindValidation, "trip id %q is not a valid id", input.TripID)
	}
	if input.ExpenseID != "" {
		if _, err := uuid.Parse(input.ExpenseID); err != nil {
			return nil, apperr.New(apperr.KindValidation, "expense id %q is not a valid id", input.ExpenseID)
		}
	}
	category := input.Category
	if category == "" {
		category = entity.CategoryOther
	}
	if !entity.ValidCategories[category] {
		return nil, apperr.New(apperr.KindValidation, "unknown category %q", category)
	}

	now := s.now()
	rec := &entity.InvoiceRecord{
		ID:               uuid.NewString(),
		InvoiceNumber:    input.InvoiceNumber,
		InvoiceDate:      input.InvoiceDate,
		DueDate:          input.DueDate,
		OriginalFileName: input.OriginalFileName,
		FilePath:         input.FilePath,
		FileSize:         input.FileSize,
		FileType:         input.FileType,
		MimeType:         input.MimeType,
		TripID:           input.TripID,
		ExpenseID:        input.ExpenseID,
		Category:         category,
		Tags:             input.Tags,
		DocumentStatus:   entity.DocStatusUploaded,
		ProcessingStatus: entity.ProcStatusPending,
		LifecycleStatus:  entity.LifecycleActive,
		CreatedBy:        actor,
		UpdatedBy:        actor,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoices.Create(txCtx, rec); err != nil {
			return err
		}
		return s.audit.Append(txCtx, &entity.AuditEntry{
			InvoiceID:   rec.ID,
			Action:      entity.AuditActionCreated,
			PerformedBy: actor,
			Details:     fmt.Sprintf("invoice %s uploaded", rec.InvoiceNumber),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice record created",
		zap.String("id", rec.ID),
		zap.String("invoice_number", rec.InvoiceNumber),
		zap.String("trip_id", rec.TripID))

	return rec, nil
}

// Get returns a record with its full audit trail.
func (s *InvoiceService) Get(ctx context.Context, id string) (*InvoiceDetail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid invoice id %q", id)
	}
	rec, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	trail, err := s.audit.ListByInvoiceID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &InvoiceDetail{Record: rec, AuditTrail: trail}, nil
}

// List returns the filtered page of active records.
func (s *InvoiceService) List(ctx context.Context, filter port.ListFilter) ([]*entity.InvoiceRecord, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	} else if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.invoices.List(ctx, filter)
}

// Update applies a free-form field edit and appends one audit entry
// carrying the structured old/new diff of every changed field.
func (s *InvoiceService) Update(ctx context.Context, id string, fields UpdateInvoiceFields, actor string) (*entity.InvoiceRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid invoice id %q", id)
	}

	rec, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive() {
		return nil, apperr.New(apperr.KindValidation, "invoice %s is archived", id)
	}

	changes := map[string]entity.FieldChange{}

	if fields.InvoiceNumber != nil && *fields.InvoiceNumber != rec.InvoiceNumber {
		if *fields.InvoiceNumber == "" {
			return nil, apperr.New(apperr.KindValidation, "invoice number cannot be empty")
		}
		changes["invoice_number"] = entity.FieldChange{Old: rec.InvoiceNumber, New: *fields.InvoiceNumber}
		rec.InvoiceNumber = *fields.InvoiceNumber
	}
	if fields.InvoiceDate != nil {
		changes["invoice_date"] = entity.FieldChange{Old: formatDate(rec.InvoiceDate), New: formatDate(fields.InvoiceDate)}
		rec.InvoiceDate = fields.InvoiceDate
	}
	if fields.DueDate != nil {
		changes["due_date"] = entity.FieldChange{Old: formatDate(rec.DueDate), New: formatDate(fields.DueDate)}
		rec.DueDate = fields.DueDate
	}
	if fields.Category != nil && *fields.Category != rec.Category {
		if !entity.ValidCategories[*fields.Category] {
			return nil, apperr.New(apperr.KindValidation, "unknown category %q", *fields.Category)
		}
		changes["category"] = entity.FieldChange{Old: rec.Category, New: *fields.Category}
		rec.Category = *fields.Category
	}
	if fields.Tags != nil {
		changes["tags"] = entity.FieldChange{Old: rec.Tags, New: fields.Tags}
		rec.Tags = fields.Tags
	}
	if fields.TripID != nil && *fields.TripID != rec.TripID {
		if _, err := uuid.Parse(*fields.TripID); err != nil {
			return nil, apperr.New(apperr.KindValidation, "trip id %q is not a valid id", *fields.TripID)
		}
		changes["trip_id"] = entity.FieldChange{Old: rec.TripID, New: *fields.TripID}
		rec.TripID = *fields.TripID
	}
	if fields.ExpenseID != nil && *fields.ExpenseID != rec.ExpenseID {
		if *fields.ExpenseID != "" {
			if _, err := uuid.Parse(*fields.ExpenseID); err != nil {
				return nil, apperr.New(apperr.KindValidation, "expense id %q is not a valid id", *fields.ExpenseID)
			}
		}
		changes["expense_id"] = entity.FieldChange{Old: rec.ExpenseID, New: *fields.ExpenseID}
		rec.ExpenseID = *fields.ExpenseID
	}

	if len(changes) == 0 {
		return rec, nil
	}

	expectedVersion := rec.Version
	rec.UpdatedBy = actor
	rec.UpdatedAt = s.now()

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoices.Update(txCtx, rec, expectedVersion); err != nil {
			return err
		}
		return s.audit.Append(txCtx, &entity.AuditEntry{
			InvoiceID:   rec.ID,
			Action:      entity.AuditActionUpdated,
			PerformedBy: actor,
			Details:     fmt.Sprintf("%d field(s) updated", len(changes)),
			Changes:     changes,
		})
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func formatDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}
