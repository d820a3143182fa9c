package workflow

import "github.com/tripoptimizer/invoice-engine/internal/domain/entity"

// State is the joint workflow position of a record: document status and
// processing status as a single tagged pair. The two axes are never set
// independently; only the constructors below produce valid values.
type State struct {
	Document   string
	Processing string
}

// Valid workflow states. StateUploaded is the lifecycle entry point.
var (
	StateUploaded   = State{entity.DocStatusUploaded, entity.ProcStatusPending}
	StateProcessing = State{entity.DocStatusProcessing, entity.ProcStatusInProgress}
	StateFailed     = State{entity.DocStatusProcessing, entity.ProcStatusFailed}
	StateRetry      = State{entity.DocStatusProcessing, entity.ProcStatusRetry}
	StateParsed     = State{entity.DocStatusParsed, entity.ProcStatusCompleted}
	StateVerified   = State{entity.DocStatusVerified, entity.ProcStatusCompleted}
	StateApproved   = State{entity.DocStatusApproved, entity.ProcStatusCompleted}
	StateRejected   = State{entity.DocStatusRejected, entity.ProcStatusCompleted}
)

var validStates = map[State]bool{
	StateUploaded:   true,
	StateProcessing: true,
	StateFailed:     true,
	StateRetry:      true,
	StateParsed:     true,
	StateVerified:   true,
	StateApproved:   true,
	StateRejected:   true,
}

// Terminal processing states: the record no longer appears in the
// processing queue once it reaches one of these.
var terminalStates = map[State]bool{
	StateParsed:   true,
	StateVerified: true,
	StateApproved: true,
	StateRejected: true,
}

// FromRecord reconstructs the joint state persisted on a record.
func FromRecord(r *entity.InvoiceRecord) State {
	return State{Document: r.DocumentStatus, Processing: r.ProcessingStatus}
}

// IsValid returns true if the pair is one of the reachable states.
func (s State) IsValid() bool {
	return validStates[s]
}

// IsTerminal returns true if processing has finished for this state.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns documentStatus/processingStatus for logs and errors.
func (s State) String() string {
	return s.Document + "/" + s.Processing
}
