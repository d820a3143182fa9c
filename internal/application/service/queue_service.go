package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/workflow"
)

// QueueItem is one queued record annotated with its wait time.
type QueueItem struct {
	ID               string    `json:"id"`
	InvoiceNumber    string    `json:"invoice_number"`
	TripID           string    `json:"trip_id"`
	DocumentStatus   string    `json:"document_status"`
	ProcessingStatus string    `json:"processing_status"`
	LastError        string    `json:"last_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	WaitSeconds      float64   `json:"wait_seconds"`
}

// QueueView is the operational snapshot of unfinished processing.
type QueueView struct {
	Items   []QueueItem       `json:"items"`
	Summary []port.QueueGroup `json:"summary"`
}

// QueueService exposes the processing-queue read model. It never mutates
// records; a stuck record is only ever surfaced here, not auto-recovered.
type QueueService struct {
	queue  port.QueueRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewQueueService creates the queue view service.
func NewQueueService(queue port.QueueRepository, logger *zap.Logger) *QueueService {
	return &QueueService{
		queue:  queue,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// View returns queued records oldest first plus the per-status summary.
func (s *QueueService) View(ctx context.Context) (*QueueView, error) {
	now := s.now()

	records, err := s.queue.PendingRecords(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]QueueItem, 0, len(records))
	for _, rec := range records {
		// finished records never wait in the queue
		if workflow.FromRecord(rec).IsTerminal() {
			continue
		}
		items = append(items, QueueItem{
			ID:               rec.ID,
			InvoiceNumber:    rec.InvoiceNumber,
			TripID:           rec.TripID,
			DocumentStatus:   rec.DocumentStatus,
			ProcessingStatus: rec.ProcessingStatus,
			LastError:        rec.Processing.LastError,
			CreatedAt:        rec.CreatedAt,
			WaitSeconds:      now.Sub(rec.CreatedAt).Seconds(),
		})
	}

	summary, err := s.queue.Summary(ctx, now)
	if err != nil {
		return nil, err
	}

	return &QueueView{Items: items, Summary: summary}, nil
}
