package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetrySQLiteRetriesConflicts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetrySQLite(context.Background(), "put session", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetrySQLiteStopsOnOtherErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := errors.New("constraint failed")
	err := RetrySQLite(context.Background(), "mark", func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	if got := p.Delay(0); got != time.Second {
		t.Errorf("Expected 1s, got %v", got)
	}
	if got := p.Delay(3); got != 8*time.Second {
		t.Errorf("Expected 8s, got %v", got)
	}
	if got := p.Delay(10); got != 30*time.Second {
		t.Errorf("Expected cap of 30s, got %v", got)
	}
}

func TestIsSQLiteConflictError(t *testing.T) {
	t.Parallel()

	if IsSQLiteConflictError(nil) {
		t.Error("Expected nil to be non-conflict")
	}
	if !IsSQLiteConflictError(errors.New("SQLITE_BUSY")) {
		t.Error("Expected SQLITE_BUSY to be a conflict")
	}
	if !IsSQLiteConflictError(fmt.Errorf("put session: %w", errors.New("database is locked (5)"))) {
		t.Error("Expected wrapped lock error to be a conflict")
	}
	if IsSQLiteConflictError(errors.New("no such table: sessions")) {
		t.Error("Expected schema error to be non-conflict")
	}
}
