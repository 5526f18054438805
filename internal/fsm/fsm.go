// Package fsm defines the scan lifecycle state machine as a pure transition function.
package fsm

import "fmt"

type State string

type Event string

const (
	// StateIdle means no scan pass is active and the cursor is parked.
	StateIdle State = "idle"
	// StateScanning means the cursor auto-advances under the dwell timer.
	StateScanning State = "scanning"
	// StateAwaitingSelection means a row has been frozen and keys within it are scanning.
	StateAwaitingSelection State = "awaiting-selection"
	// StateSuspended means scanning is paused; dwell expiries are discarded.
	StateSuspended State = "suspended"
)

const (
	EventStart     Event = "start"
	EventRowSelect Event = "row-select"
	EventCommit    Event = "commit"
	EventPause     Event = "pause"
	EventResume    Event = "resume"
	EventFault     Event = "fault"
	EventStop      Event = "stop"
)

// Transition returns the state reached by applying event to current.
// A fault suspends from any state; stop parks from any state.
func Transition(current State, event Event) (State, error) {
	switch event {
	case EventFault:
		return StateSuspended, nil
	case EventStop:
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateScanning, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateScanning:
		switch event {
		case EventRowSelect:
			return StateAwaitingSelection, nil
		case EventCommit:
			return StateScanning, nil
		case EventPause:
			return StateSuspended, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAwaitingSelection:
		switch event {
		case EventCommit:
			return StateScanning, nil
		case EventPause:
			return StateSuspended, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSuspended:
		switch event {
		case EventResume:
			return StateScanning, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
