package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted
	// from the current state. The record is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a persisted status pair is not a
	// recognized workflow state.
	ErrInvalidState = errors.New("invalid workflow state")
)
