package fintalk

import (
	"github.com/rs/zerolog"

	"github.com/fintalk/fintalk/hooks"
	"github.com/fintalk/fintalk/summarizer"
)

// Option is a functional option for configuring a Client
type Option func(*internalConfig) error

// internalConfig holds option-controlled settings with their defaults.
type internalConfig struct {
	logger           zerolog.Logger
	autoCompaction   bool
	tailTokenBudget  int
	summaryMaxTokens int
	recallLimit      int
	tokenCounter     summarizer.TokenCounter
	hooks            *hooks.Registry
}

// WithLogger sets the structured logger. Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *internalConfig) error {
		c.logger = logger
		return nil
	}
}

// WithAutoCompaction enables or disables history compaction after each turn.
// Enabled by default.
func WithAutoCompaction(enabled bool) Option {
	return func(c *internalConfig) error {
		c.autoCompaction = enabled
		return nil
	}
}

// WithTailTokenBudget sets the token budget for the uncompacted tail of the
// conversation kept verbatim through compaction.
func WithTailTokenBudget(budget int) Option {
	return func(c *internalConfig) error {
		if budget <= 0 {
			return NewAgentError("WithTailTokenBudget", ErrInvalidConfig)
		}
		c.tailTokenBudget = budget
		return nil
	}
}

// WithSummaryMaxTokens caps the length of the generated summary.
func WithSummaryMaxTokens(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewAgentError("WithSummaryMaxTokens", ErrInvalidConfig)
		}
		c.summaryMaxTokens = n
		return nil
	}
}

// WithMemoryRecallLimit caps how many memories are injected per turn.
func WithMemoryRecallLimit(n int) Option {
	return func(c *internalConfig) error {
		c.recallLimit = n
		return nil
	}
}

// WithTokenCounter overrides the token counter used to size the tail.
func WithTokenCounter(counter summarizer.TokenCounter) Option {
	return func(c *internalConfig) error {
		if counter == nil {
			return NewAgentError("WithTokenCounter", ErrInvalidConfig)
		}
		c.tokenCounter = counter
		return nil
	}
}

// WithHooks attaches a hook registry to observe the turn lifecycle.
func WithHooks(registry *hooks.Registry) Option {
	return func(c *internalConfig) error {
		c.hooks = registry
		return nil
	}
}
