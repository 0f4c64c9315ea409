package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for tests and single-process development.
type MemStore struct {
	mu       sync.RWMutex
	memories map[string]*Memory
}

// NewMemStore creates an empty in-memory memory store.
func NewMemStore() *MemStore {
	return &MemStore{memories: make(map[string]*Memory)}
}

// Add persists a new memory.
func (s *MemStore) Add(_ context.Context, userID, category, content string) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem := &Memory{
		ID:        uuid.New().String(),
		UserID:    userID,
		Category:  category,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.memories[mem.ID] = mem
	copied := *mem
	return &copied, nil
}

// ListByUser returns all memories for a user, oldest first.
func (s *MemStore) ListByUser(_ context.Context, userID string) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var memories []*Memory
	for _, mem := range s.memories {
		if mem.UserID != userID {
			continue
		}
		copied := *mem
		memories = append(memories, &copied)
	}
	// Map iteration order is random; callers expect insertion order.
	sort.Slice(memories, func(i, j int) bool {
		return memories[i].CreatedAt.Before(memories[j].CreatedAt)
	})
	return memories, nil
}

// RecordUsage increments hit counts and stamps last-recalled for the given IDs.
func (s *MemStore) RecordUsage(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range ids {
		mem, ok := s.memories[id]
		if !ok {
			continue
		}
		mem.HitCount++
		mem.LastRecalledAt = &now
	}
	return nil
}
