package capture

import (
	"errors"
	"fmt"
)

// State is the loop's lifecycle position.
type State int

const (
	Idle State = iota
	Capturing
	Stabilizing
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Stabilizing:
		return "stabilizing"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a state change is not permitted.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	Idle:        {Capturing, Error},
	Capturing:   {Stabilizing, Error, Idle},
	Stabilizing: {Capturing, Error, Idle},
	Error:       {Capturing, Stabilizing, Idle},
}

// CanTransition reports whether the loop may move from s to next. Staying in
// the same state is always allowed.
func (s State) CanTransition(next State) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
