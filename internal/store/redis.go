package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taskmate/tmbot/internal/domain"
)

const (
	sessionKeyPrefix  = "tmbot:session:"
	notifiedKeyPrefix = "tmbot:notified:"
	scanBatch         = 100
)

// RedisStore implements Store on Redis or Valkey using native key expiry.
type RedisStore struct {
	client redis.UniversalClient
	opts   options
}

var _ Store = (*RedisStore)(nil)

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, opts ...Option) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore{client: client, opts: o}, nil
}

func sessionKey(chatID int64) string {
	return sessionKeyPrefix + chatKey(chatID)
}

func notifiedKey(chatID int64, category domain.Category) string {
	return notifiedKeyPrefix + chatKey(chatID) + ":" + string(category)
}

// PutSession stores the session as JSON with an expiry.
func (s *RedisStore) PutSession(ctx context.Context, chatID int64, sess *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(chatID), data, ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession returns nil when the key is missing or expired.
func (s *RedisStore) GetSession(ctx context.Context, chatID int64) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// TouchSession refreshes the TTL; a missing key is not an error.
func (s *RedisStore) TouchSession(ctx context.Context, chatID int64, ttl time.Duration) error {
	if err := s.client.Expire(ctx, sessionKey(chatID), ttl).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// DeleteSession removes the session key.
func (s *RedisStore) DeleteSession(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, sessionKey(chatID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListSessions walks the keyspace with SCAN and fetches each batch with MGET.
func (s *RedisStore) ListSessions(ctx context.Context) (map[int64]*domain.Session, error) {
	out := make(map[int64]*domain.Session)
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}

		if len(keys) > 0 {
			values, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("mget sessions: %w", err)
			}
			for i, v := range values {
				raw, ok := v.(string)
				if !ok {
					continue // expired between SCAN and MGET
				}
				chatID, err := strconv.ParseInt(strings.TrimPrefix(keys[i], sessionKeyPrefix), 10, 64)
				if err != nil {
					continue
				}
				var sess domain.Session
				if err := json.Unmarshal([]byte(raw), &sess); err != nil {
					s.opts.logger.Warn("Skipping unreadable session", "chat_id", chatID, "error", err)
					continue
				}
				out[chatID] = &sess
			}
		}

		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// WasDelivered checks set membership.
func (s *RedisStore) WasDelivered(ctx context.Context, chatID int64, category domain.Category, key string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, notifiedKey(chatID, category), key).Result()
	if err != nil {
		return false, fmt.Errorf("check delivered: %w", err)
	}
	return ok, nil
}

// MarkDelivered adds key to the category set.
func (s *RedisStore) MarkDelivered(ctx context.Context, chatID int64, category domain.Category, key string) error {
	if err := s.client.SAdd(ctx, notifiedKey(chatID, category), key).Err(); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// MarkDeliveredBulk issues one variadic SADD.
func (s *RedisStore) MarkDeliveredBulk(ctx context.Context, chatID int64, category domain.Category, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	if err := s.client.SAdd(ctx, notifiedKey(chatID, category), members...).Err(); err != nil {
		return fmt.Errorf("mark delivered bulk: %w", err)
	}
	return nil
}

// ClearAll deletes every category set for the chat.
func (s *RedisStore) ClearAll(ctx context.Context, chatID int64) error {
	keys := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		keys = append(keys, notifiedKey(chatID, c))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
