package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/infrastructure/persistence/sqlite"
)

// amountExpr reads the parsed total out of the stored JSON blob. Records
// without parsed data yield NULL and drop out of the aggregates.
const amountExpr = `json_extract(parsed_data, '$.financial.total_amount')`

// AnalyticsRepository computes the read-side rollups in SQL at query time.
// No caching: results reflect committed state when the query runs.
type AnalyticsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *sql.DB, logger *zap.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		db:     db,
		logger: logger,
	}
}

// Overview returns count plus amount/processing aggregates.
func (r *AnalyticsRepository) Overview(ctx context.Context, filter port.AnalyticsFilter) (*port.Overview, error) {
	where, args := buildAnalyticsWhere(filter)

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(` + amountExpr + `), 0),
			COALESCE(AVG(` + amountExpr + `), 0),
			COALESCE(MIN(` + amountExpr + `), 0),
			COALESCE(MAX(` + amountExpr + `), 0),
			COALESCE(AVG(processing_time), 0),
			COALESCE(AVG(confidence_score), 0)
		FROM invoices ` + where

	var o port.Overview
	err := r.executor(ctx).QueryRowContext(ctx, query, args...).Scan(
		&o.Count,
		&o.TotalAmount,
		&o.AvgAmount,
		&o.MinAmount,
		&o.MaxAmount,
		&o.AvgProcessingTime,
		&o.AvgConfidence,
	)
	if err != nil {
		r.logger.Error("Failed to compute analytics overview", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to compute overview")
	}
	return &o, nil
}

// ProcessingMetrics groups the aggregates by processing status.
func (r *AnalyticsRepository) ProcessingMetrics(ctx context.Context, filter port.AnalyticsFilter) ([]port.ProcessingGroup, error) {
	where, args := buildAnalyticsWhere(filter)

	query := `
		SELECT processing_status,
			COUNT(*),
			COALESCE(AVG(processing_time), 0),
			COALESCE(AVG(confidence_score), 0)
		FROM invoices ` + where + `
		GROUP BY processing_status
		ORDER BY processing_status
	`
	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to compute processing metrics", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to compute processing metrics")
	}
	defer rows.Close()

	var groups []port.ProcessingGroup
	for rows.Next() {
		var g port.ProcessingGroup
		if err := rows.Scan(&g.ProcessingStatus, &g.Count, &g.AvgProcessingTime, &g.AvgConfidence); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to scan processing metrics")
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// MonthlyTrend buckets invoices by (year, month) of their invoice date,
// keeps the most recent `limit` buckets and returns them chronologically.
func (r *AnalyticsRepository) MonthlyTrend(ctx context.Context, filter port.AnalyticsFilter, limit int) ([]port.TrendBucket, error) {
	where, args := buildAnalyticsWhere(filter)
	where += ` AND invoice_date IS NOT NULL`

	query := `
		SELECT CAST(strftime('%Y', invoice_date) AS INTEGER) AS year,
			CAST(strftime('%m', invoice_date) AS INTEGER) AS month,
			COUNT(*),
			COALESCE(SUM(` + amountExpr + `), 0),
			COALESCE(AVG(` + amountExpr + `), 0)
		FROM invoices ` + where + `
		GROUP BY year, month
		ORDER BY year DESC, month DESC
		LIMIT ?
	`
	args = append(args, limit)

	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to compute monthly trend", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to compute monthly trend")
	}
	defer rows.Close()

	var buckets []port.TrendBucket
	for rows.Next() {
		var b port.TrendBucket
		if err := rows.Scan(&b.Year, &b.Month, &b.Count, &b.TotalAmount, &b.AvgAmount); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to scan trend bucket")
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to iterate trend buckets")
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Year != buckets[j].Year {
			return buckets[i].Year < buckets[j].Year
		}
		return buckets[i].Month < buckets[j].Month
	})

	return buckets, nil
}

func buildAnalyticsWhere(filter port.AnalyticsFilter) (string, []interface{}) {
	conds := []string{"lifecycle_status = 'active'"}
	var args []interface{}

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

	return "WHERE " + strings.Join(conds, " AND "), args
}

func (r *AnalyticsRepository) executor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.AnalyticsRepository = (*AnalyticsRepository)(nil)
