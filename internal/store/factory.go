package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/taskmate/tmbot/internal/config"
)

// Driver names accepted by Open.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open builds the driver selected by cfg.Store.Driver and verifies it is
// reachable.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Store.Driver {
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		st, err = NewRedis(client, opts...)
	case DriverSQLite:
		st, err = NewSQLite(cfg.Store.SQLitePath, opts...)
	case DriverMemory:
		st = NewMemory(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Store.Driver, err)
	}
	return st, nil
}
