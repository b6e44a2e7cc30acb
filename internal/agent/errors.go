package agent

import "errors"

var (
	// ErrTurnInProgress is returned when a second turn is requested on a
	// conversation that already has one in flight. No state is mutated.
	ErrTurnInProgress = errors.New("turn already in progress")

	// ErrNoMessages is returned when BeginTurn receives an empty message
	// list.
	ErrNoMessages = errors.New("no messages supplied")
)
