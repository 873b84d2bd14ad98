package store

import (
	"context"
	"sync"
	"time"

	"github.com/taskmate/tmbot/internal/domain"
)

type memSession struct {
	session   domain.Session
	expiresAt time.Time
}

// MemoryStore keeps everything in process memory. Nothing survives a
// restart; use it for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]memSession
	ledger   map[int64]map[domain.Category]map[string]struct{}
	opts     options
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Purger = (*MemoryStore)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		sessions: make(map[int64]memSession),
		ledger:   make(map[int64]map[domain.Category]map[string]struct{}),
		opts:     o,
	}
}

func (m *MemoryStore) PutSession(_ context.Context, chatID int64, s *domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = memSession{session: *s, expiresAt: m.opts.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, chatID int64) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.sessions[chatID]
	if !ok || !m.opts.now().Before(entry.expiresAt) {
		return nil, nil
	}
	s := entry.session
	return &s, nil
}

func (m *MemoryStore) TouchSession(_ context.Context, chatID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[chatID]
	now := m.opts.now()
	if !ok || !now.Before(entry.expiresAt) {
		return nil
	}
	entry.expiresAt = now.Add(ttl)
	m.sessions[chatID] = entry
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

func (m *MemoryStore) ListSessions(_ context.Context) (map[int64]*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.opts.now()
	out := make(map[int64]*domain.Session, len(m.sessions))
	for chatID, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			continue
		}
		s := entry.session
		out[chatID] = &s
	}
	return out, nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.opts.now()
	var n int64
	for chatID, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			delete(m.sessions, chatID)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) WasDelivered(_ context.Context, chatID int64, category domain.Category, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ledger[chatID][category][key]
	return ok, nil
}

func (m *MemoryStore) MarkDelivered(ctx context.Context, chatID int64, category domain.Category, key string) error {
	return m.MarkDeliveredBulk(ctx, chatID, category, []string{key})
}

func (m *MemoryStore) MarkDeliveredBulk(_ context.Context, chatID int64, category domain.Category, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCat, ok := m.ledger[chatID]
	if !ok {
		byCat = make(map[domain.Category]map[string]struct{})
		m.ledger[chatID] = byCat
	}
	set, ok := byCat[category]
	if !ok {
		set = make(map[string]struct{})
		byCat[category] = set
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) ClearAll(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ledger, chatID)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
