package fanout

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taskmate/tmbot/internal/domain"
)

// SessionLister enumerates live sessions.
type SessionLister interface {
	ListSessions(ctx context.Context) (map[int64]*domain.Session, error)
}

// SnapshotCache maps user ids to their signed-in chats. The mapping is
// rebuilt at most once per ttl; concurrent refreshes share one listing.
type SnapshotCache struct {
	src   SessionLister
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu       sync.RWMutex
	byUser   map[int64][]int64
	loadedAt time.Time
}

// NewSnapshotCache creates a cache over src.
func NewSnapshotCache(src SessionLister, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{src: src, ttl: ttl, now: time.Now}
}

// Chats returns the chats signed in as userID.
func (c *SnapshotCache) Chats(ctx context.Context, userID int64) ([]int64, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap[userID], nil
}

// Invalidate forces the next lookup to reload.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	c.byUser = nil
	c.mu.Unlock()
}

func (c *SnapshotCache) snapshot(ctx context.Context) (map[int64][]int64, error) {
	c.mu.RLock()
	snap, loadedAt := c.byUser, c.loadedAt
	c.mu.RUnlock()
	if snap != nil && c.now().Sub(loadedAt) < c.ttl {
		return snap, nil
	}

	v, err, _ := c.group.Do("sessions", func() (any, error) {
		sessions, err := c.src.ListSessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		byUser := make(map[int64][]int64, len(sessions))
		for chatID, s := range sessions {
			byUser[s.UserID] = append(byUser[s.UserID], chatID)
		}
		for _, chats := range byUser {
			slices.Sort(chats)
		}

		c.mu.Lock()
		c.byUser, c.loadedAt = byUser, c.now()
		c.mu.Unlock()
		return byUser, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[int64][]int64), nil
}
