package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/application/port"
)

// trendMonths caps the monthly trend at the most recent year of buckets.
const trendMonths = 12

// AnalyticsService computes read-side rollups over active records. All
// three views are derived at query time from committed state.
type AnalyticsService struct {
	analytics port.AnalyticsRepository
	logger    *zap.Logger
}

// NewAnalyticsService creates the analytics aggregator.
func NewAnalyticsService(analytics port.AnalyticsRepository, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		analytics: analytics,
		logger:    logger,
	}
}

// Overview returns count and amount/processing aggregates.
func (s *AnalyticsService) Overview(ctx context.Context, filter port.AnalyticsFilter) (*port.Overview, error) {
	return s.analytics.Overview(ctx, filter)
}

// ProcessingMetrics returns per-processing-status aggregates.
func (s *AnalyticsService) ProcessingMetrics(ctx context.Context, filter port.AnalyticsFilter) ([]port.ProcessingGroup, error) {
	return s.analytics.ProcessingMetrics(ctx, filter)
}

// MonthlyTrend returns chronological per-month buckets, most recent
// twelve months only.
func (s *AnalyticsService) MonthlyTrend(ctx context.Context, filter port.AnalyticsFilter) ([]port.TrendBucket, error) {
	return s.analytics.MonthlyTrend(ctx, filter, trendMonths)
}
