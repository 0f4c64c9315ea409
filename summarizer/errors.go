package summarizer

import "errors"

// Sentinel errors for summarizer construction.
var (
	// ErrInvalidConfig indicates invalid summarizer configuration.
	ErrInvalidConfig = errors.New("invalid summarizer configuration")
)
