package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

func TestInvoiceMachine_PermittedTransitions(t *testing.T) {
	machine := BuildInvoiceMachine()

	tests := []struct {
		name    string
		from    State
		trigger Trigger
		want    State
	}{
		{"start from uploaded", StateUploaded, TriggerStartProcessing, StateProcessing},
		{"complete from processing", StateProcessing, TriggerCompleteProcessing, StateParsed},
		{"fail from processing", StateProcessing, TriggerFailProcessing, StateFailed},
		{"retry from failed", StateFailed, TriggerRetryProcessing, StateRetry},
		{"restart from retry", StateRetry, TriggerStartProcessing, StateProcessing},
		{"verify from parsed", StateParsed, TriggerVerify, StateVerified},
		{"approve from verified", StateVerified, TriggerApprove, StateApproved},
		{"reject from verified", StateVerified, TriggerReject, StateRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, machine.CanFire(tt.from, tt.trigger))

			got, err := machine.Next(tt.from, tt.trigger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvoiceMachine_RejectedTransitions(t *testing.T) {
	machine := BuildInvoiceMachine()

	tests := []struct {
		name    string
		from    State
		trigger Trigger
	}{
		{"cannot verify unparsed record", StateUploaded, TriggerVerify},
		{"cannot approve without verification", StateParsed, TriggerApprove},
		{"cannot reject without verification", StateParsed, TriggerReject},
		{"cannot restart a failed record directly", StateFailed, TriggerStartProcessing},
		{"cannot complete outside processing", StateUploaded, TriggerCompleteProcessing},
		{"approved is final", StateApproved, TriggerVerify},
		{"rejected is final", StateRejected, TriggerApprove},
		{"cannot re-approve", StateApproved, TriggerApprove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, machine.CanFire(tt.from, tt.trigger))

			_, err := machine.Next(tt.from, tt.trigger)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestInvoiceMachine_InvalidSourceState(t *testing.T) {
	machine := BuildInvoiceMachine()

	_, err := machine.Next(State{Document: "uploaded", Processing: "completed"}, TriggerStartProcessing)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestInvoiceMachine_PermittedTriggers(t *testing.T) {
	machine := BuildInvoiceMachine()

	assert.ElementsMatch(t,
		[]Trigger{TriggerApprove, TriggerReject},
		machine.PermittedTriggers(StateVerified))
	assert.Empty(t, machine.PermittedTriggers(StateApproved))
	assert.Empty(t, machine.PermittedTriggers(StateRejected))
}

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateParsed.IsTerminal())
	assert.True(t, StateVerified.IsTerminal())
	assert.True(t, StateApproved.IsTerminal())
	assert.True(t, StateRejected.IsTerminal())

	assert.False(t, StateUploaded.IsTerminal())
	assert.False(t, StateProcessing.IsTerminal())
	assert.False(t, StateFailed.IsTerminal())
	assert.False(t, StateRetry.IsTerminal())
}

func TestState_IsValid(t *testing.T) {
	for state := range validStates {
		assert.True(t, state.IsValid(), state.String())
	}

	assert.False(t, State{Document: "parsed", Processing: "pending"}.IsValid())
	assert.False(t, State{}.IsValid())
}

func TestFromRecord(t *testing.T) {
	rec := &entity.InvoiceRecord{
		DocumentStatus:   entity.DocStatusProcessing,
		ProcessingStatus: entity.ProcStatusFailed,
	}
	assert.Equal(t, StateFailed, FromRecord(rec))
}
