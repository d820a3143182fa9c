package workflow

import (
	"fmt"
	"sort"
)

// Machine is an immutable transition table over joint workflow states.
// Unlike a stateful machine it holds no current position: callers resolve
// the record's persisted state per request and ask for the successor, so
// the optimistic-concurrency check against the store stays the single
// arbiter of concurrent transitions.
type Machine struct {
	transitions map[State]map[Trigger]State
}

// Builder configures a Machine one state at a time.
type Builder struct {
	transitions map[State]map[Trigger]State
}

// StateConfig configures the permitted triggers of one source state.
type StateConfig struct {
	builder *Builder
	from    State
}

// NewBuilder creates an empty machine builder.
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[State]map[Trigger]State)}
}

// Configure returns the configuration handle for the given state.
func (b *Builder) Configure(state State) StateConfig {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if _, ok := b.transitions[state]; !ok {
		b.transitions[state] = make(map[Trigger]State)
	}
	return StateConfig{builder: b, from: state}
}

// Permit allows a trigger to move the configured state to the target.
func (c StateConfig) Permit(trigger Trigger, to State) StateConfig {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	c.builder.transitions[c.from][trigger] = to
	return c
}

// Build freezes the configuration into a Machine.
func (b *Builder) Build() *Machine {
	frozen := make(map[State]map[Trigger]State, len(b.transitions))
	for from, byTrigger := range b.transitions {
		cp := make(map[Trigger]State, len(byTrigger))
		for trigger, to := range byTrigger {
			cp[trigger] = to
		}
		frozen[from] = cp
	}
	return &Machine{transitions: frozen}
}

// CanFire returns true if the trigger is permitted from the given state.
func (m *Machine) CanFire(from State, trigger Trigger) bool {
	_, ok := m.transitions[from][trigger]
	return ok
}

// Next returns the successor state for the trigger, or ErrInvalidTransition
// when the trigger is not permitted from the given state.
func (m *Machine) Next(from State, trigger Trigger) (State, error) {
	if !from.IsValid() {
		return State{}, fmt.Errorf("%w: %s", ErrInvalidState, from)
	}
	to, ok := m.transitions[from][trigger]
	if !ok {
		return State{}, fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

// PermittedTriggers returns the triggers that can fire from the state,
// in stable alphabetical order.
func (m *Machine) PermittedTriggers(from State) []Trigger {
	byTrigger := m.transitions[from]
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
