// Package memory provides the semantic memory store: durable per-user facts
// recalled at the start of a turn and injected as a preamble message the
// compaction engine later strips.
//
// Recall ranks a user's memories against the turn's query with BM25 and
// records a usage event for every hit, so rarely useful memories can be aged
// out by offline jobs.
package memory

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for memory operations.
var (
	// ErrNotFound is returned when a memory does not exist.
	ErrNotFound = errors.New("memory not found")
)

// Memory is one durable fact about a user.
type Memory struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Content string `json:"content"`

	// Category groups memories for curation, e.g. "profile", "goal",
	// "preference".
	Category string `json:"category"`

	// Usage-tracking side channel: how often and how recently this memory
	// was recalled into a turn.
	HitCount       int        `json:"hit_count"`
	LastRecalledAt *time.Time `json:"last_recalled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence boundary for memories.
type Store interface {
	// Add persists a new memory and returns it with its assigned ID.
	Add(ctx context.Context, userID, category, content string) (*Memory, error)

	// ListByUser returns all memories for a user.
	ListByUser(ctx context.Context, userID string) ([]*Memory, error)

	// RecordUsage increments hit counts and stamps last-recalled for the
	// given memory IDs.
	RecordUsage(ctx context.Context, ids []string) error
}
