package workflow

// BuildInvoiceMachine constructs the transition table for the invoice
// processing lifecycle. A failed run re-enters processing through the
// retry state; verification and the approval decision only apply to fully
// parsed records.
func BuildInvoiceMachine() *Machine {
	b := NewBuilder()

	b.Configure(StateUploaded).
		Permit(TriggerStartProcessing, StateProcessing)

	b.Configure(StateProcessing).
		Permit(TriggerCompleteProcessing, StateParsed).
		Permit(TriggerFailProcessing, StateFailed)

	b.Configure(StateFailed).
		Permit(TriggerRetryProcessing, StateRetry)

	b.Configure(StateRetry).
		Permit(TriggerStartProcessing, StateProcessing)

	b.Configure(StateParsed).
		Permit(TriggerVerify, StateVerified)

	b.Configure(StateVerified).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	return b.Build()
}
