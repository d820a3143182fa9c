package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
	"github.com/tripoptimizer/invoice-engine/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements the append-only audit trail log. The table
// has no update or delete statements anywhere in the codebase; ordering is
// by the autoincrement id, so concurrent appenders stay monotonic.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append stores one entry. The timestamp is assigned here, never taken
// from the caller.
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	var changesJSON interface{}
	if entry.Changes != nil {
		data, err := json.Marshal(entry.Changes)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, err, "failed to encode audit changes")
		}
		changesJSON = string(data)
	}

	entry.Timestamp = r.now()

	query := `
		INSERT INTO audit_entries (invoice_id, action, performed_by, timestamp, details, changes)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.executor(ctx).ExecContext(ctx, query,
		entry.InvoiceID,
		entry.Action,
		entry.PerformedBy,
		entry.Timestamp,
		entry.Details,
		changesJSON,
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("invoice_id", entry.InvoiceID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return apperr.Wrap(apperr.KindStorage, err, "failed to append audit entry")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to get audit entry id")
	}
	entry.ID = id
	return nil
}

// ListByInvoiceID returns all entries for a record in append order.
func (r *AuditRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, invoice_id, action, performed_by, timestamp, details, changes
		FROM audit_entries
		WHERE invoice_id = ?
		ORDER BY id ASC
	`
	rows, err := r.executor(ctx).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var entry entity.AuditEntry
		var changesJSON sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.InvoiceID,
			&entry.Action,
			&entry.PerformedBy,
			&entry.Timestamp,
			&entry.Details,
			&changesJSON,
		); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to scan audit entry")
		}

		if changesJSON.Valid {
			if err := json.Unmarshal([]byte(changesJSON.String), &entry.Changes); err != nil {
				return nil, apperr.Wrap(apperr.KindStorage, err, "failed to decode audit changes")
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (r *AuditRepository) executor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
