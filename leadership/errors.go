package leadership

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("elector already started")

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("elector not started")
)
