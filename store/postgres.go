package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fintalk/fintalk/types"
)

// Schema creates the tables the store needs. Applied by Migrate; kept as a
// single idempotent script so dev environments can re-run it safely.
const Schema = `
CREATE TABLE IF NOT EXISTS fintalk_sessions (
    id           UUID PRIMARY KEY,
    user_id      TEXT NOT NULL,
    active_agent TEXT NOT NULL DEFAULT '',
    context      JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS fintalk_messages (
    id                UUID PRIMARY KEY,
    session_id        UUID NOT NULL REFERENCES fintalk_sessions(id) ON DELETE CASCADE,
    role              TEXT NOT NULL,
    content           JSONB NOT NULL,
    response_metadata JSONB,
    seq               BIGSERIAL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_fintalk_messages_session
    ON fintalk_messages(session_id, seq);

CREATE TABLE IF NOT EXISTS fintalk_leases (
    name       TEXT PRIMARY KEY,
    holder     TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
`

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Migrate applies the schema.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateSession creates a new session for a user.
func (s *PGStore) CreateSession(ctx context.Context, userID string) (*Session, error) {
	session := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Context:   map[string]any{},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO fintalk_sessions (id, user_id, context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, session.ID, session.UserID, []byte("{}"), session.CreatedAt, session.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (s *PGStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	query := `
		SELECT id, user_id, active_agent, context, created_at, updated_at
		FROM fintalk_sessions
		WHERE id = $1
	`

	var session Session
	var contextJSON []byte

	row := s.pool.QueryRow(ctx, query, sessionID)
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.ActiveAgent,
		&contextJSON,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if err := json.Unmarshal(contextJSON, &session.Context); err != nil {
		return nil, fmt.Errorf("unmarshal session context: %w", err)
	}
	return &session, nil
}

// UpdateSessionContext replaces the session's context blob.
func (s *PGStore) UpdateSessionContext(ctx context.Context, sessionID string, blob map[string]any) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE fintalk_sessions SET context = $2, updated_at = NOW() WHERE id = $1`,
		sessionID, data)
	if err != nil {
		return fmt.Errorf("update session context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// SetActiveAgent records the agent owning the conversation.
func (s *PGStore) SetActiveAgent(ctx context.Context, sessionID, agent string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fintalk_sessions SET active_agent = $2, updated_at = NOW() WHERE id = $1`,
		sessionID, agent)
	if err != nil {
		return fmt.Errorf("set active agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// AppendMessage appends one message to the session history.
func (s *PGStore) AppendMessage(ctx context.Context, msg types.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	contentJSON, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("marshal message content: %w", err)
	}
	var metadataJSON []byte
	if msg.ResponseMetadata != nil {
		if metadataJSON, err = json.Marshal(msg.ResponseMetadata); err != nil {
			return fmt.Errorf("marshal message metadata: %w", err)
		}
	}

	query := `
		INSERT INTO fintalk_messages (id, session_id, role, content, response_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.pool.Exec(ctx, query, msg.ID, msg.SessionID, string(msg.Role), contentJSON, metadataJSON, msg.CreatedAt); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// GetMessages returns the session history in chronological order.
func (s *PGStore) GetMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	query := `
		SELECT id, session_id, role, content, response_metadata, created_at
		FROM fintalk_messages
		WHERE session_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// ReplaceMessages swaps the session history inside one transaction.
func (s *PGStore) ReplaceMessages(ctx context.Context, sessionID string, messages []types.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM fintalk_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	for _, msg := range messages {
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		contentJSON, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshal message content: %w", err)
		}
		var metadataJSON []byte
		if msg.ResponseMetadata != nil {
			if metadataJSON, err = json.Marshal(msg.ResponseMetadata); err != nil {
				return fmt.Errorf("marshal message metadata: %w", err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO fintalk_messages (id, session_id, role, content, response_metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			msg.ID, sessionID, string(msg.Role), contentJSON, metadataJSON, msg.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListSessionsUpdatedBefore returns IDs of sessions idle since cutoff.
func (s *PGStore) ListSessionsUpdatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM fintalk_sessions WHERE updated_at < $1 ORDER BY updated_at ASC LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return ids, nil
}

// AcquireLease takes the named lease when free, expired, or already held by
// this holder. The upsert is the election: exactly one holder wins.
func (s *PGStore) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO fintalk_leases (name, holder, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (name) DO UPDATE
		SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		WHERE fintalk_leases.expires_at < NOW() OR fintalk_leases.holder = EXCLUDED.holder
	`, name, holder, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RenewLease extends the lease while holder still owns it.
func (s *PGStore) RenewLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fintalk_leases SET expires_at = NOW() + make_interval(secs => $3) WHERE name = $1 AND holder = $2 AND expires_at >= NOW()`,
		name, holder, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLease gives up the lease when holder owns it.
func (s *PGStore) ReleaseLease(ctx context.Context, name, holder string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM fintalk_leases WHERE name = $1 AND holder = $2`,
		name, holder); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

func scanMessage(rows pgx.Rows) (types.Message, error) {
	var msg types.Message
	var role string
	var contentJSON, metadataJSON []byte

	if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &contentJSON, &metadataJSON, &msg.CreatedAt); err != nil {
		return types.Message{}, fmt.Errorf("scan message: %w", err)
	}
	msg.Role = types.Role(role)

	if err := json.Unmarshal(contentJSON, &msg.Content); err != nil {
		return types.Message{}, fmt.Errorf("unmarshal message content: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &msg.ResponseMetadata); err != nil {
			return types.Message{}, fmt.Errorf("unmarshal message metadata: %w", err)
		}
	}
	return msg, nil
}
