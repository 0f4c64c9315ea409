package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the memories table. Idempotent; applied by Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS fintalk_memories (
    id               UUID PRIMARY KEY,
    user_id          TEXT NOT NULL,
    category         TEXT NOT NULL DEFAULT '',
    content          TEXT NOT NULL,
    hit_count        INT NOT NULL DEFAULT 0,
    last_recalled_at TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_fintalk_memories_user
    ON fintalk_memories(user_id);
`

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed memory store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Migrate applies the schema.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply memory schema: %w", err)
	}
	return nil
}

// Add persists a new memory.
func (s *PGStore) Add(ctx context.Context, userID, category, content string) (*Memory, error) {
	mem := &Memory{
		ID:        uuid.New().String(),
		UserID:    userID,
		Category:  category,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO fintalk_memories (id, user_id, category, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, mem.ID, mem.UserID, mem.Category, mem.Content, mem.CreatedAt); err != nil {
		return nil, fmt.Errorf("add memory: %w", err)
	}
	return mem, nil
}

// ListByUser returns all memories for a user, oldest first.
func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]*Memory, error) {
	query := `
		SELECT id, user_id, category, content, hit_count, last_recalled_at, created_at
		FROM fintalk_memories
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []*Memory
	for rows.Next() {
		var mem Memory
		if err := rows.Scan(&mem.ID, &mem.UserID, &mem.Category, &mem.Content, &mem.HitCount, &mem.LastRecalledAt, &mem.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, &mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return memories, nil
}

// RecordUsage increments hit counts and stamps last-recalled for the given IDs.
func (s *PGStore) RecordUsage(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE fintalk_memories SET hit_count = hit_count + 1, last_recalled_at = NOW() WHERE id = ANY($1)`,
		ids)
	if err != nil {
		return fmt.Errorf("record memory usage: %w", err)
	}
	return nil
}
