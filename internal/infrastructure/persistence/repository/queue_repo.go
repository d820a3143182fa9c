package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
	"github.com/tripoptimizer/invoice-engine/internal/infrastructure/persistence/sqlite"
)

// QueueRepository is the read model over records whose processing has not
// reached a terminal status. It never mutates anything.
type QueueRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *sql.DB, logger *zap.Logger) *QueueRepository {
	return &QueueRepository{
		db:     db,
		logger: logger,
	}
}

// PendingRecords returns active records still in flight, FIFO by creation.
func (r *QueueRepository) PendingRecords(ctx context.Context) ([]*entity.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE lifecycle_status = 'active'
		  AND processing_status IN ('pending', 'in_progress', 'retry')
		ORDER BY created_at ASC`

	rows, err := r.executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query processing queue", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to query processing queue")
	}
	defer rows.Close()

	var records []*entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to scan queue record")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summary groups the queue by processing status with average wait time
// measured against now.
func (r *QueueRepository) Summary(ctx context.Context, now time.Time) ([]port.QueueGroup, error) {
	query := `
		SELECT processing_status,
			COUNT(*),
			COALESCE(AVG(strftime('%s', ?) - strftime('%s', created_at)), 0)
		FROM invoices
		WHERE lifecycle_status = 'active'
		  AND processing_status IN ('pending', 'in_progress', 'retry')
		GROUP BY processing_status
		ORDER BY processing_status
	`
	rows, err := r.executor(ctx).QueryContext(ctx, query, now.UTC())
	if err != nil {
		r.logger.Error("Failed to summarize processing queue", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to summarize processing queue")
	}
	defer rows.Close()

	var groups []port.QueueGroup
	for rows.Next() {
		var g port.QueueGroup
		if err := rows.Scan(&g.ProcessingStatus, &g.Count, &g.AvgWaitSeconds); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to scan queue summary")
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *QueueRepository) executor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.QueueRepository = (*QueueRepository)(nil)
