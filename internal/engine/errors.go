package engine

import "errors"

// Kernel failure kinds. Call sites wrap these with context, so match them with
// errors.Is.
var (
	// ErrOccupiedSlot is returned when placing an agent into a slot that
	// already holds one. The kernel never overwrites an occupant.
	ErrOccupiedSlot = errors.New("slot occupied")

	// ErrNotFound is returned when removing an agent that is not registered.
	ErrNotFound = errors.New("agent not found")

	// ErrConfiguration is returned for invalid board geometry or collision
	// rules that reference layers the board does not have.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrOutOfBounds is returned when placing an agent outside the board.
	ErrOutOfBounds = errors.New("position out of bounds")

	// ErrAlreadyRegistered is returned when adding an agent that is already
	// live on a board.
	ErrAlreadyRegistered = errors.New("agent already registered")
)
