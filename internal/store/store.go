// Package store provides durable session and delivery-ledger persistence.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/taskmate/tmbot/internal/domain"
)

// ErrInvalidConfig is returned when a driver cannot be constructed.
var ErrInvalidConfig = errors.New("store: invalid configuration")

// SessionDirectory maps a chat to its authenticated backend session.
type SessionDirectory interface {
	// PutSession creates or overwrites the session for chatID, expiring after ttl.
	PutSession(ctx context.Context, chatID int64, s *domain.Session, ttl time.Duration) error

	// GetSession returns the session, or nil if it is missing or expired.
	GetSession(ctx context.Context, chatID int64) (*domain.Session, error)

	// TouchSession pushes the expiry of an existing session ttl into the future.
	TouchSession(ctx context.Context, chatID int64, ttl time.Duration) error

	// DeleteSession removes the session for chatID.
	DeleteSession(ctx context.Context, chatID int64) error

	// ListSessions returns every live session keyed by chat id. Entries that
	// expire or vanish during the listing are skipped.
	ListSessions(ctx context.Context) (map[int64]*domain.Session, error)
}

// DedupLedger records which events were already delivered to a chat.
type DedupLedger interface {
	// WasDelivered reports whether key was marked for chatID under category.
	WasDelivered(ctx context.Context, chatID int64, category domain.Category, key string) (bool, error)

	// MarkDelivered records key for chatID under category.
	MarkDelivered(ctx context.Context, chatID int64, category domain.Category, key string) error

	// MarkDeliveredBulk records many keys in one round trip.
	MarkDeliveredBulk(ctx context.Context, chatID int64, category domain.Category, keys []string) error

	// ClearAll drops every category for chatID.
	ClearAll(ctx context.Context, chatID int64) error
}

// Store is a driver that backs both the directory and the ledger.
type Store interface {
	SessionDirectory
	DedupLedger

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases driver resources.
	Close() error
}

// Purger is implemented by drivers without native key expiry.
type Purger interface {
	// PurgeExpired deletes expired sessions and returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// Option configures a driver.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

func defaultOptions() options {
	return options{logger: slog.Default(), now: time.Now}
}

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used for expiry. Only the memory and
// sqlite drivers consult it.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
