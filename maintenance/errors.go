package maintenance

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("sweeper already started")

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("sweeper not started")
)
