package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fintalk/fintalk/types"
)

// MemStore is an in-memory Store for tests and single-process development.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	messages map[string][]types.Message
	leases   map[string]lease
}

type lease struct {
	holder    string
	expiresAt time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]*Session),
		messages: make(map[string][]types.Message),
		leases:   make(map[string]lease),
	}
}

// CreateSession creates a new session for a user.
func (s *MemStore) CreateSession(_ context.Context, userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Context:   map[string]any{},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.sessions[session.ID] = session
	return cloneSession(session), nil
}

// GetSession retrieves a session by ID.
func (s *MemStore) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return cloneSession(session), nil
}

// UpdateSessionContext replaces the session's context blob.
func (s *MemStore) UpdateSessionContext(_ context.Context, sessionID string, blob map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	copied := make(map[string]any, len(blob))
	for k, v := range blob {
		copied[k] = v
	}
	session.Context = copied
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// SetActiveAgent records the agent owning the conversation.
func (s *MemStore) SetActiveAgent(_ context.Context, sessionID, agent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	session.ActiveAgent = agent
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendMessage appends one message to the session history.
func (s *MemStore) AppendMessage(_ context.Context, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[msg.SessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, msg.SessionID)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

// GetMessages returns the session history in chronological order.
func (s *MemStore) GetMessages(_ context.Context, sessionID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	history := s.messages[sessionID]
	out := make([]types.Message, len(history))
	copy(out, history)
	return out, nil
}

// ReplaceMessages swaps the session history.
func (s *MemStore) ReplaceMessages(_ context.Context, sessionID string, messages []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	replacement := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		msg.SessionID = sessionID
		replacement = append(replacement, msg)
	}
	s.messages[sessionID] = replacement
	return nil
}

// ListSessionsUpdatedBefore returns IDs of sessions idle since cutoff.
func (s *MemStore) ListSessionsUpdatedBefore(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idle := make([]*Session, 0)
	for _, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			idle = append(idle, session)
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].UpdatedAt.Before(idle[j].UpdatedAt) })

	if limit > 0 && len(idle) > limit {
		idle = idle[:limit]
	}
	ids := make([]string, len(idle))
	for i, session := range idle {
		ids[i] = session.ID
	}
	return ids, nil
}

// AcquireLease takes the named lease when free, expired, or already held.
func (s *MemStore) AcquireLease(_ context.Context, name, holder string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leases[name]
	if ok && current.holder != holder && current.expiresAt.After(time.Now()) {
		return false, nil
	}
	s.leases[name] = lease{holder: holder, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// RenewLease extends the lease while holder still owns it.
func (s *MemStore) RenewLease(_ context.Context, name, holder string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leases[name]
	if !ok || current.holder != holder || current.expiresAt.Before(time.Now()) {
		return false, nil
	}
	s.leases[name] = lease{holder: holder, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// ReleaseLease gives up the lease when holder owns it.
func (s *MemStore) ReleaseLease(_ context.Context, name, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.leases[name]; ok && current.holder == holder {
		delete(s.leases, name)
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() {}

func cloneSession(session *Session) *Session {
	copied := *session
	copied.Context = make(map[string]any, len(session.Context))
	for k, v := range session.Context {
		copied.Context[k] = v
	}
	return &copied
}
