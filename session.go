package fintalk

import (
	"context"

	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/types"
)

// NewSession creates a session for a user.
func (c *Client) NewSession(ctx context.Context, userID string) (*store.Session, error) {
	session, err := c.store.CreateSession(ctx, userID)
	if err != nil {
		return nil, NewAgentError("create session", err)
	}
	c.logger.Info().Str("session_id", session.ID).Str("user_id", userID).Msg("session created")
	return session, nil
}

// GetSession retrieves a session by ID.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	return c.store.GetSession(ctx, sessionID)
}

// GetMessages returns a session's history in chronological order.
func (c *Client) GetMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	return c.store.GetMessages(ctx, sessionID)
}

// RememberFact stores a durable user fact for future recall.
func (c *Client) RememberFact(ctx context.Context, userID, category, content string) error {
	if _, err := c.memories.Add(ctx, userID, category, content); err != nil {
		return NewAgentError("remember fact", err)
	}
	return nil
}
