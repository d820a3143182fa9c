package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

// BulkResult reports how a batch landed. matched can exceed modified when
// records stopped satisfying the active filter between count and write.
type BulkResult struct {
	MatchedCount  int64 `json:"matched_count"`
	ModifiedCount int64 `json:"modified_count"`
}

// BulkService applies one state-changing or archival operation across a
// caller-supplied id set. Batches bypass the workflow engine and do not
// write per-record audit entries.
type BulkService struct {
	invoices port.InvoiceRepository
	tx       port.TransactionManager
	logger   *zap.Logger
}

// NewBulkService creates the bulk operation executor.
func NewBulkService(invoices port.InvoiceRepository, tx port.TransactionManager, logger *zap.Logger) *BulkService {
	return &BulkService{
		invoices: invoices,
		tx:       tx,
		logger:   logger,
	}
}

// Update applies the restricted field set to every active record in ids.
// Any malformed id rejects the whole batch before anything is written.
func (s *BulkService) Update(ctx context.Context, ids []string, fields port.BulkFields, actor string) (*BulkResult, error) {
	if err := validateIDs(ids); err != nil {
		return nil, err
	}
	if fields.Category != nil && !entity.ValidCategories[*fields.Category] {
		return nil, apperr.New(apperr.KindValidation, "unknown category %q", *fields.Category)
	}

	var result BulkResult
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		matched, err := s.invoices.CountActiveByIDs(txCtx, ids)
		if err != nil {
			return err
		}
		modified, err := s.invoices.BulkUpdate(txCtx, ids, fields, actor)
		if err != nil {
			return err
		}
		result = BulkResult{MatchedCount: matched, ModifiedCount: modified}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bulk update applied",
		zap.Int("ids", len(ids)),
		zap.Int64("matched", result.MatchedCount),
		zap.Int64("modified", result.ModifiedCount),
		zap.String("actor", actor))

	return &result, nil
}

// Delete soft-deletes every active record in ids.
func (s *BulkService) Delete(ctx context.Context, ids []string, actor string) (*BulkResult, error) {
	if err := validateIDs(ids); err != nil {
		return nil, err
	}

	var result BulkResult
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		matched, err := s.invoices.CountActiveByIDs(txCtx, ids)
		if err != nil {
			return err
		}
		modified, err := s.invoices.BulkArchive(txCtx, ids, actor)
		if err != nil {
			return err
		}
		result = BulkResult{MatchedCount: matched, ModifiedCount: modified}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bulk archive applied",
		zap.Int("ids", len(ids)),
		zap.Int64("matched", result.MatchedCount),
		zap.Int64("modified", result.ModifiedCount),
		zap.String("actor", actor))

	return &result, nil
}

func validateIDs(ids []string) error {
	if len(ids) == 0 {
		return apperr.New(apperr.KindValidation, "at least one id is required")
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return apperr.New(apperr.KindValidation, "invalid invoice id %q", id)
		}
	}
	return nil
}
