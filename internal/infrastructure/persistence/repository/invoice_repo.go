package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
	"github.com/tripoptimizer/invoice-engine/internal/infrastructure/persistence/sqlite"
)

const invoiceColumns = `id, invoice_number, invoice_date, due_date,
	original_file_name, file_path, file_size, file_type, mime_type,
	trip_id, expense_id, category, tags, parsed_data,
	document_status, processing_status,
	processing_time, confidence_score, last_error,
	verification, approval, lifecycle_status,
	created_by, updated_by, version, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository on sqlite.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice record.
func (r *InvoiceRepository) Create(ctx context.Context, rec *entity.InvoiceRecord) error {
	tagsJSON, err := json.Marshal(dedupTags(rec.Tags))
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to encode tags")
	}
	parsedJSON, err := marshalNullable(rec.ParsedData)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to encode parsed data")
	}

	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.executor(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.InvoiceNumber,
		nullTime(rec.InvoiceDate),
		nullTime(rec.DueDate),
		rec.OriginalFileName,
		rec.FilePath,
		rec.FileSize,
		rec.FileType,
		rec.MimeType,
		rec.TripID,
		rec.ExpenseID,
		rec.Category,
		string(tagsJSON),
		parsedJSON,
		rec.DocumentStatus,
		rec.ProcessingStatus,
		rec.Processing.ProcessingTime,
		rec.Processing.ConfidenceScore,
		rec.Processing.LastError,
		nil, // verification
		nil, // approval
		rec.LifecycleStatus,
		rec.CreatedBy,
		rec.UpdatedBy,
		rec.Version,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.KindConflict,
				"invoice number %q already exists", rec.InvoiceNumber)
		}
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return apperr.Wrap(apperr.KindStorage, err, "failed to create invoice")
	}

	return nil
}

// GetByID retrieves an invoice by ID, archived records included.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	rec, err := scanInvoice(r.executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "invoice %s not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.String("id", id), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to get invoice %s", id)
	}
	return rec, nil
}

// List returns the filtered page of active records and the total match count.
func (r *InvoiceRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.InvoiceRecord, int64, error) {
	where, args := buildListWhere(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM invoices ` + where
	if err := r.executor(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count invoices", zap.Error(err))
		return nil, 0, apperr.Wrap(apperr.KindStorage, err, "failed to count invoices")
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices ` + where +
		` ORDER BY ` + sortClause(filter.SortBy, filter.SortDir)
	pageArgs := args
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		pageArgs = append(append([]interface{}{}, args...), filter.Limit, filter.Offset)
	}

	rows, err := r.executor(ctx).QueryContext(ctx, query, pageArgs...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, 0, apperr.Wrap(apperr.KindStorage, err, "failed to list invoices")
	}
	defer rows.Close()

	var records []*entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.KindStorage, err, "failed to scan invoice")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Wrap(apperr.KindStorage, err, "failed to iterate invoices")
	}

	return records, total, nil
}

// Update persists the record under an optimistic-concurrency check: the
// write only applies while the stored version equals expectedVersion.
func (r *InvoiceRepository) Update(ctx context.Context, rec *entity.InvoiceRecord, expectedVersion int64) error {
	tagsJSON, err := json.Marshal(dedupTags(rec.Tags))
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to encode tags")
	}
	parsedJSON, err := marshalNullable(rec.ParsedData)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to encode parsed data")
	}
	verificationJSON, err := marshalNullable(rec.Verification)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to encode verification")
	}
	approvalJSON, err := marshalNullable(rec.Approval)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to encode approval")
	}

	query := `
		UPDATE invoices SET
			invoice_number = ?, invoice_date = ?, due_date = ?,
			original_file_name = ?, file_path = ?, file_size = ?, file_type = ?, mime_type = ?,
			trip_id = ?, expense_id = ?, category = ?, tags = ?, parsed_data = ?,
			document_status = ?, processing_status = ?,
			processing_time = ?, confidence_score = ?, last_error = ?,
			verification = ?, approval = ?, lifecycle_status = ?,
			updated_by = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := r.executor(ctx).ExecContext(ctx, query,
		rec.InvoiceNumber,
		nullTime(rec.InvoiceDate),
		nullTime(rec.DueDate),
		rec.OriginalFileName,
		rec.FilePath,
		rec.FileSize,
		rec.FileType,
		rec.MimeType,
		rec.TripID,
		rec.ExpenseID,
		rec.Category,
		string(tagsJSON),
		parsedJSON,
		rec.DocumentStatus,
		rec.ProcessingStatus,
		rec.Processing.ProcessingTime,
		rec.Processing.ConfidenceScore,
		rec.Processing.LastError,
		verificationJSON,
		approvalJSON,
		rec.LifecycleStatus,
		rec.UpdatedBy,
		rec.UpdatedAt,
		rec.ID,
		expectedVersion,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.KindConflict,
				"invoice number %q already exists", rec.InvoiceNumber)
		}
		r.logger.Error("Failed to update invoice", zap.String("id", rec.ID), zap.Error(err))
		return apperr.Wrap(apperr.KindStorage, err, "failed to update invoice %s", rec.ID)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "failed to read rows affected")
	}
	if affected == 0 {
		// Either the record is gone or a concurrent writer advanced the
		// version first.
		if _, getErr := r.GetByID(ctx, rec.ID); getErr != nil {
			return getErr
		}
		return apperr.New(apperr.KindConflict,
			"invoice %s was modified concurrently", rec.ID)
	}

	rec.Version = expectedVersion + 1
	return nil
}

// CountActiveByIDs returns how many ids reference active records.
func (r *InvoiceRepository) CountActiveByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(*) FROM invoices WHERE lifecycle_status = 'active' AND id IN (` +
		placeholders(len(ids)) + `)`

	var count int64
	if err := r.executor(ctx).QueryRowContext(ctx, query, idArgs(ids)...).Scan(&count); err != nil {
		r.logger.Error("Failed to count invoices by ids", zap.Error(err))
		return 0, apperr.Wrap(apperr.KindStorage, err, "failed to count invoices")
	}
	return count, nil
}

// BulkUpdate applies the restricted field set to all active records in ids
// with a single statement.
func (r *InvoiceRepository) BulkUpdate(ctx context.Context, ids []string, fields port.BulkFields, actor string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var sets []string
	var args []interface{}

	if fields.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *fields.Category)
	}
	if fields.Tags != nil {
		tagsJSON, err := json.Marshal(dedupTags(fields.Tags))
		if err != nil {
			return 0, apperr.Wrap(apperr.KindStorage, err, "failed to encode tags")
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if fields.ExpenseID != nil {
		sets = append(sets, "expense_id = ?")
		args = append(args, *fields.ExpenseID)
	}
	if len(sets) == 0 {
		return 0, nil
	}

	sets = append(sets, "updated_by = ?", "version = version + 1", "updated_at = ?")
	args = append(args, actor, time.Now().UTC())

	query := `UPDATE invoices SET ` + strings.Join(sets, ", ") +
		` WHERE lifecycle_status = 'active' AND id IN (` + placeholders(len(ids)) + `)`
	args = append(args, idArgs(ids)...)

	result, err := r.executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to bulk update invoices", zap.Error(err))
		return 0, apperr.Wrap(apperr.KindStorage, err, "failed to bulk update invoices")
	}
	return result.RowsAffected()
}

// BulkArchive soft-deletes all active records in ids.
func (r *InvoiceRepository) BulkArchive(ctx context.Context, ids []string, actor string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `UPDATE invoices
		SET lifecycle_status = 'archived', updated_by = ?, version = version + 1, updated_at = ?
		WHERE lifecycle_status = 'active' AND id IN (` + placeholders(len(ids)) + `)`

	args := append([]interface{}{actor, time.Now().UTC()}, idArgs(ids)...)

	result, err := r.executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to bulk archive invoices", zap.Error(err))
		return 0, apperr.Wrap(apperr.KindStorage, err, "failed to bulk archive invoices")
	}
	return result.RowsAffected()
}

func buildListWhere(filter port.ListFilter) (string, []interface{}) {
	conds := []string{"lifecycle_status = 'active'"}
	var args []interface{}

	if filter.DocumentStatus != "" {
		conds = append(conds, "document_status = ?")
		args = append(args, filter.DocumentStatus)
	}
	if filter.ProcessingStatus != "" {
		conds = append(conds, "processing_status = ?")
		args = append(args, filter.ProcessingStatus)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.TripID != "" {
		conds = append(conds, "trip_id = ?")
		args = append(args, filter.TripID)
	}
	if filter.From != nil {
		conds = append(conds, "invoice_date >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conds = append(conds, "invoice_date <= ?")
		args = append(args, *filter.To)
	}
	if filter.Search != "" {
		conds = append(conds,
			"(invoice_number LIKE ? OR json_extract(parsed_data, '$.vendor.name') LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func sortClause(sortBy, sortDir string) string {
	column := "created_at"
	switch sortBy {
	case "invoice_date":
		column = "invoice_date"
	case "total_amount":
		column = "json_extract(parsed_data, '$.financial.total_amount')"
	}
	dir := "DESC"
	if strings.EqualFold(sortDir, "asc") {
		dir = "ASC"
	}
	return column + " " + dir
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func dedupTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func marshalNullable(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case *entity.ParsedData:
		if val == nil {
			return nil, nil
		}
	case *entity.Verification:
		if val == nil {
			return nil, nil
		}
	case *entity.Approval:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.InvoiceRecord, error) {
	var rec entity.InvoiceRecord
	var invoiceDate, dueDate sql.NullTime
	var tagsJSON string
	var parsedJSON, verificationJSON, approvalJSON sql.NullString
	var processingTime, confidenceScore sql.NullFloat64

	err := row.Scan(
		&rec.ID,
		&rec.InvoiceNumber,
		&invoiceDate,
		&dueDate,
		&rec.OriginalFileName,
		&rec.FilePath,
		&rec.FileSize,
		&rec.FileType,
		&rec.MimeType,
		&rec.TripID,
		&rec.ExpenseID,
		&rec.Category,
		&tagsJSON,
		&parsedJSON,
		&rec.DocumentStatus,
		&rec.ProcessingStatus,
		&processingTime,
		&confidenceScore,
		&rec.Processing.LastError,
		&verificationJSON,
		&approvalJSON,
		&rec.LifecycleStatus,
		&rec.CreatedBy,
		&rec.UpdatedBy,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if invoiceDate.Valid {
		rec.InvoiceDate = &invoiceDate.Time
	}
	if dueDate.Valid {
		rec.DueDate = &dueDate.Time
	}
	if processingTime.Valid {
		rec.Processing.ProcessingTime = &processingTime.Float64
	}
	if confidenceScore.Valid {
		rec.Processing.ConfidenceScore = &confidenceScore.Float64
	}

	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if parsedJSON.Valid {
		rec.ParsedData = &entity.ParsedData{}
		if err := json.Unmarshal([]byte(parsedJSON.String), rec.ParsedData); err != nil {
			return nil, fmt.Errorf("failed to decode parsed data: %w", err)
		}
	}
	if verificationJSON.Valid {
		rec.Verification = &entity.Verification{}
		if err := json.Unmarshal([]byte(verificationJSON.String), rec.Verification); err != nil {
			return nil, fmt.Errorf("failed to decode verification: %w", err)
		}
	}
	if approvalJSON.Valid {
		rec.Approval = &entity.Approval{}
		if err := json.Unmarshal([]byte(approvalJSON.String), rec.Approval); err != nil {
			return nil, fmt.Errorf("failed to decode approval: %w", err)
		}
	}

	return &rec, nil
}

// executor returns the context transaction when one is active.
func (r *InvoiceRepository) executor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
