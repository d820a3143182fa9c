package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/apperr"
	"github.com/tripoptimizer/invoice-engine/internal/application/port"
	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
	"github.com/tripoptimizer/invoice-engine/internal/domain/validation"
	"github.com/tripoptimizer/invoice-engine/internal/domain/workflow"
)

// WorkflowEngine is the only component that mutates a record's workflow
// position, verification or approval. Every successful transition writes
// exactly one audit entry per fired trigger, atomically with the status
// change; the repository's version check serializes concurrent callers.
type WorkflowEngine struct {
	invoices port.InvoiceRepository
	audit    port.AuditRepository
	tx       port.TransactionManager
	machine  *workflow.Machine
	logger   *zap.Logger
	now      func() time.Time
}

// NewWorkflowEngine creates the workflow engine.
func NewWorkflowEngine(
	invoices port.InvoiceRepository,
	audit port.AuditRepository,
	tx port.TransactionManager,
	logger *zap.Logger,
) *WorkflowEngine {
	return &WorkflowEngine{
		invoices: invoices,
		audit:    audit,
		tx:       tx,
		machine:  workflow.BuildInvoiceMachine(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StartProcessing begins extraction for a pending record. A failed record
// re-enters through the retry state, which is recorded as its own audit
// entry before the start entry.
func (e *WorkflowEngine) StartProcessing(ctx context.Context, id, actor string) (*entity.InvoiceRecord, error) {
	rec, err := e.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}

	triggers := []workflow.Trigger{workflow.TriggerStartProcessing}
	if workflow.FromRecord(rec) == workflow.StateFailed {
		triggers = []workflow.Trigger{workflow.TriggerRetryProcessing, workflow.TriggerStartProcessing}
	}

	return e.fire(ctx, rec, actor, triggers, func(rec *entity.InvoiceRecord, state workflow.State) []*entity.AuditEntry {
		var entries []*entity.AuditEntry
		for _, trigger := range triggers {
			action := entity.AuditActionProcessingStarted
			details := "document processing started"
			if trigger == workflow.TriggerRetryProcessing {
				action = entity.AuditActionProcessingRetried
				details = "document processing queued for retry"
			}
			entries = append(entries, &entity.AuditEntry{
				InvoiceID:   rec.ID,
				Action:      action,
				PerformedBy: actor,
				Details:     details,
			})
		}
		return entries
	})
}

// CompleteProcessing stores the extraction result and scores it. A
// caller-supplied confidence score overrides the validation engine's
// computed one; the override is recorded in the audit entry.
func (e *WorkflowEngine) CompleteProcessing(ctx context.Context, id, actor string, parsed entity.ParsedData, scoreOverride, processingTime *float64) (*entity.InvoiceRecord, error) {
	rec, err := e.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}

	result := validation.Validate(parsed)
	score := result.ConfidenceScore
	details := fmt.Sprintf("document parsed, confidence %.0f", score)
	if scoreOverride != nil {
		score = *scoreOverride
		details = fmt.Sprintf("document parsed, confidence %.0f (caller override, computed %.0f)",
			score, result.ConfidenceScore)
	}

	elapsed := e.now().Sub(rec.UpdatedAt).Seconds()
	if processingTime != nil {
		elapsed = *processingTime
	}

	triggers := []workflow.Trigger{workflow.TriggerCompleteProcessing}
	return e.fire(ctx, rec, actor, triggers, func(rec *entity.InvoiceRecord, state workflow.State) []*entity.AuditEntry {
		rec.ParsedData = &parsed
		rec.Processing.ConfidenceScore = &score
		rec.Processing.ProcessingTime = &elapsed
		rec.Processing.LastError = ""
		return []*entity.AuditEntry{{
			InvoiceID:   rec.ID,
			Action:      entity.AuditActionProcessingCompleted,
			PerformedBy: actor,
			Details:     details,
		}}
	})
}

// FailProcessing records an extraction failure. The document status keeps
// its processing value; only the processing axis moves to failed.
func (e *WorkflowEngine) FailProcessing(ctx context.Context, id, actor, cause string) (*entity.InvoiceRecord, error) {
	if cause == "" {
		return nil, apperr.New(apperr.KindValidation, "failure cause is required")
	}
	rec, err := e.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}

	triggers := []workflow.Trigger{workflow.TriggerFailProcessing}
	return e.fire(ctx, rec, actor, triggers, func(rec *entity.InvoiceRecord, state workflow.State) []*entity.AuditEntry {
		rec.Processing.LastError = cause
		return []*entity.AuditEntry{{
			InvoiceID:   rec.ID,
			Action:      entity.AuditActionProcessingFailed,
			PerformedBy: actor,
			Details:     "document processing failed: " + cause,
		}}
	})
}

// Verify marks a parsed record as human-verified.
func (e *WorkflowEngine) Verify(ctx context.Context, id, actor, notes, confidenceLevel string) (*entity.InvoiceRecord, error) {
	if actor == "" {
		return nil, apperr.New(apperr.KindValidation, "verifying actor is required")
	}
	rec, err := e.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}

	verifiedAt := e.now()
	triggers := []workflow.Trigger{workflow.TriggerVerify}
	return e.fire(ctx, rec, actor, triggers, func(rec *entity.InvoiceRecord, state workflow.State) []*entity.AuditEntry {
		rec.Verification = &entity.Verification{
			VerifiedBy:      actor,
			Notes:           notes,
			ConfidenceLevel: confidenceLevel,
			VerifiedAt:      verifiedAt,
		}
		return []*entity.AuditEntry{{
			InvoiceID:   rec.ID,
			Action:      entity.AuditActionVerified,
			PerformedBy: actor,
			Details:     "document verified",
		}}
	})
}

// Approve approves a verified record.
func (e *WorkflowEngine) Approve(ctx context.Context, id, actor, notes, level string) (*entity.InvoiceRecord, error) {
	if actor == "" {
		return nil, apperr.New(apperr.KindValidation, "approving actor is required")
	}
	rec, err := e.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}

	decidedAt := e.now()
	triggers := []workflow.Trigger{workflow.TriggerApprove}
	return e.fire(ctx, rec, actor, triggers, func(rec *entity.InvoiceRecord, state workflow.State) []*entity.AuditEntry {
		rec.Approval = &entity.Approval{
			IsApproved:    true,
			ApprovedBy:    actor,
			ApprovalLevel: level,
			Notes:         notes,
			DecidedAt:     decidedAt,
		}
		return []*entity.AuditEntry{{
			InvoiceID:   rec.ID,
			Action:      entity.AuditActionApproved,
			PerformedBy: actor,
			Details:     "document approved",
		}}
	})
}

// Reject rejects a verified record. The approval block is stored with
// IsApproved false so the decision and its reason stay on the record.
func (e *WorkflowEngine) Reject(ctx context.Context, id, actor, reason string) (*entity.InvoiceRecord, error) {
	if actor == "" {
		return nil, apperr.New(apperr.KindValidation, "rejecting actor is required")
	}
	rec, err := e.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}

	decidedAt := e.now()
	triggers := []workflow.Trigger{workflow.TriggerReject}
	return e.fire(ctx, rec, actor, triggers, func(rec *entity.InvoiceRecord, state workflow.State) []*entity.AuditEntry {
		rec.Approval = &entity.Approval{
			IsApproved: false,
			ApprovedBy: actor,
			Notes:      reason,
			DecidedAt:  decidedAt,
		}
		return []*entity.AuditEntry{{
			InvoiceID:   rec.ID,
			Action:      entity.AuditActionRejected,
			PerformedBy: actor,
			Details:     "document rejected: " + reason,
		}}
	})
}

// SoftDelete archives a record. This moves the lifecycle axis only; the
// workflow position is untouched, so the state machine is not consulted.
func (e *WorkflowEngine) SoftDelete(ctx context.Context, id, actor string) error {
	rec, err := e.invoices.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !rec.IsActive() {
		return nil // already archived, idempotent
	}

	expectedVersion := rec.Version
	rec.LifecycleStatus = entity.LifecycleArchived
	rec.UpdatedBy = actor
	rec.UpdatedAt = e.now()

	return e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.invoices.Update(txCtx, rec, expectedVersion); err != nil {
			return err
		}
		return e.audit.Append(txCtx, &entity.AuditEntry{
			InvoiceID:   rec.ID,
			Action:      entity.AuditActionArchived,
			PerformedBy: actor,
			Details:     "document archived",
		})
	})
}

// fire drives the record through the trigger sequence and persists the
// final state together with the audit entries in one transaction.
func (e *WorkflowEngine) fire(
	ctx context.Context,
	rec *entity.InvoiceRecord,
	actor string,
	triggers []workflow.Trigger,
	apply func(rec *entity.InvoiceRecord, state workflow.State) []*entity.AuditEntry,
) (*entity.InvoiceRecord, error) {
	state := workflow.FromRecord(rec)
	if !state.IsValid() {
		return nil, apperr.New(apperr.KindStorage,
			"invoice %s has unrecognized workflow state %s", rec.ID, state)
	}

	for _, trigger := range triggers {
		if !e.machine.CanFire(state, trigger) {
			return nil, apperr.New(apperr.KindInvalidTransition,
				"operation not allowed for invoice %s in state %s, permitted: %v",
				rec.ID, state, e.machine.PermittedTriggers(state))
		}
		next, err := e.machine.Next(state, trigger)
		if err != nil {
			return nil, err
		}
		state = next
	}

	expectedVersion := rec.Version
	entries := apply(rec, state)

	rec.DocumentStatus = state.Document
	rec.ProcessingStatus = state.Processing
	rec.UpdatedBy = actor
	rec.UpdatedAt = e.now()

	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.invoices.Update(txCtx, rec, expectedVersion); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := e.audit.Append(txCtx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow transition applied",
		zap.String("invoice_id", rec.ID),
		zap.String("state", state.String()),
		zap.String("actor", actor))

	return rec, nil
}

func (e *WorkflowEngine) loadActive(ctx context.Context, id string) (*entity.InvoiceRecord, error) {
	rec, err := e.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive() {
		return nil, apperr.New(apperr.KindInvalidTransition, "invoice %s is archived", id)
	}
	return rec, nil
}
