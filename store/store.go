// Package store persists sessions and conversation history.
//
// The Postgres implementation is the production path; MemStore backs tests
// and single-process development. Both satisfy Store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fintalk/fintalk/types"
)

// Sentinel errors for store operations.
var (
	// ErrSessionNotFound is returned when a session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// Session represents one conversation context.
type Session struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	ActiveAgent string         `json:"active_agent"`
	Context     map[string]any `json:"context"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Store is the persistence boundary for sessions and messages.
type Store interface {
	// CreateSession creates a new session for a user.
	CreateSession(ctx context.Context, userID string) (*Session, error)

	// GetSession retrieves a session by ID.
	// Returns ErrSessionNotFound if it does not exist.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// UpdateSessionContext replaces the session's opaque context blob.
	UpdateSessionContext(ctx context.Context, sessionID string, blob map[string]any) error

	// SetActiveAgent records which agent currently owns the conversation.
	SetActiveAgent(ctx context.Context, sessionID, agent string) error

	// AppendMessage appends one message to a session's history.
	AppendMessage(ctx context.Context, msg types.Message) error

	// GetMessages returns a session's history in chronological order.
	GetMessages(ctx context.Context, sessionID string) ([]types.Message, error)

	// ReplaceMessages atomically replaces a session's history, used when
	// compaction rewrites it.
	ReplaceMessages(ctx context.Context, sessionID string, messages []types.Message) error

	// ListSessionsUpdatedBefore returns IDs of sessions whose last activity
	// predates cutoff, oldest first, capped at limit.
	ListSessionsUpdatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// AcquireLease takes the named lease for holder when it is free or
	// expired. Returns true when the holder now owns the lease.
	AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)

	// RenewLease extends the named lease when holder still owns it.
	// Returns false when ownership was lost.
	RenewLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)

	// ReleaseLease gives up the named lease when holder owns it.
	ReleaseLease(ctx context.Context, name, holder string) error

	// Close releases underlying resources.
	Close()
}
