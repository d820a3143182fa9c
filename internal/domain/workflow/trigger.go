package workflow

// Trigger represents an operation that can cause a state transition.
type Trigger string

const (
	TriggerStartProcessing    Trigger = "START_PROCESSING"
	TriggerRetryProcessing    Trigger = "RETRY_PROCESSING"
	TriggerCompleteProcessing Trigger = "COMPLETE_PROCESSING"
	TriggerFailProcessing     Trigger = "FAIL_PROCESSING"
	TriggerVerify             Trigger = "VERIFY"
	TriggerApprove            Trigger = "APPROVE"
	TriggerReject             Trigger = "REJECT"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
