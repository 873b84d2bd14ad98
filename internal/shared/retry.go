package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy describes an exponential backoff schedule.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// SQLiteWritePolicy is used for store writes that may hit SQLITE_BUSY.
var SQLiteWritePolicy = RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond}

// Delay returns the wait before retry number attempt (zero based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt > 20 {
		attempt = 20
	}
	delay := p.BaseDelay * time.Duration(1<<attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// RetrySQLite runs fn, retrying on SQLite conflict errors with exponential
// backoff (50ms, 100ms, ...). Other errors are returned immediately.
func RetrySQLite(ctx context.Context, op string, fn func() error) error {
	p := SQLiteWritePolicy
	var err error
	for i := 0; i < p.Attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) || i == p.Attempts-1 {
			break
		}
		delay := p.Delay(i)
		slog.Debug("Database locked, retrying", "op", op, "attempt", i+1, "delay", delay)
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
