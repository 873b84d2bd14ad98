package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
	"github.com/taskmate/tmbot/internal/store"
)

const scanPageSize = 50

// TaskLister fetches the tasks visible to a session.
type TaskLister interface {
	Tasks(ctx context.Context, token string, filter backend.TaskFilter) ([]domain.Task, error)
}

// SessionExpirer tears down a chat whose credential the backend rejected.
type SessionExpirer interface {
	ExpireSession(ctx context.Context, chatID int64) error
}

// ScanResult summarises one deadline pass.
type ScanResult struct {
	Sessions int
	Warnings int
	Overdue  int
	Expired  int
	Skipped  int
}

// DeadlineScanner periodically warns about approaching deadlines and
// announces overdue tasks.
type DeadlineScanner struct {
	sessions SessionLister
	tasks    TaskLister
	expirer  SessionExpirer
	notify   notifier
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// ScannerOption configures a DeadlineScanner.
type ScannerOption func(*DeadlineScanner)

// WithClock overrides the scanner clock.
func WithClock(now func() time.Time) ScannerOption {
	return func(s *DeadlineScanner) { s.now = now }
}

// NewDeadlineScanner creates a scanner with the given warning window.
func NewDeadlineScanner(sessions SessionLister, ledger store.DedupLedger, tasks TaskLister, out chat.Messenger,
	expirer SessionExpirer, window time.Duration, logger *slog.Logger, opts ...ScannerOption) *DeadlineScanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DeadlineScanner{
		sessions: sessions,
		tasks:    tasks,
		expirer:  expirer,
		notify:   notifier{ledger: ledger, out: out, logger: logger},
		window:   window,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans every interval until ctx is done.
func (s *DeadlineScanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("Deadline scanner started", "interval", interval, "window", s.window)

	for {
		select {
		case <-ticker.C:
			res, err := s.ScanOnce(ctx)
			if err != nil {
				s.logger.Error("Deadline scan failed", "error", err)
				continue
			}
			if res.Warnings+res.Overdue+res.Expired > 0 {
				s.logger.Info("Deadline scan finished", "sessions", res.Sessions, "warnings", res.Warnings,
					"overdue", res.Overdue, "expired", res.Expired, "skipped", res.Skipped)
			}
		case <-ctx.Done():
			s.logger.Info("Deadline scanner shutting down", "reason", ctx.Err())
			return
		}
	}
}

// ScanOnce checks every live session. A failing session is skipped and
// does not abort the pass.
func (s *DeadlineScanner) ScanOnce(ctx context.Context) (ScanResult, error) {
	var res ScanResult
	sessions, err := s.sessions.ListSessions(ctx)
	if err != nil {
		return res, fmt.Errorf("list sessions: %w", err)
	}

	for chatID, sess := range sessions {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Sessions++

		tasks, err := s.tasks.Tasks(ctx, sess.Token, backend.TaskFilter{PerPage: scanPageSize})
		if errors.Is(err, backend.ErrUnauthorized) {
			res.Expired++
			if err := s.expirer.ExpireSession(ctx, chatID); err != nil {
				s.logger.Error("Failed to expire session", "chat_id", chatID, "error", err)
			}
			continue
		}
		if err != nil {
			res.Skipped++
			s.logger.Warn("Deadline scan skipped session", "chat_id", chatID, "user_id", sess.UserID, "error", err)
			continue
		}

		now := s.now()
		for i := range tasks {
			warned, overdue, err := s.checkTask(ctx, chatID, &tasks[i], now)
			if err != nil {
				s.logger.Error("Deadline check failed", "chat_id", chatID, "task_id", tasks[i].ID, "error", err)
				continue
			}
			if warned {
				res.Warnings++
			}
			if overdue {
				res.Overdue++
			}
		}
	}
	return res, nil
}

// checkTask warns when the deadline is within the window (exactly due
// included) and announces overdue open tasks once the deadline passed.
func (s *DeadlineScanner) checkTask(ctx context.Context, chatID int64, t *domain.Task, now time.Time) (warned, overdue bool, err error) {
	at, ok := t.DeadlineAt()
	if !ok {
		return false, false, nil
	}
	key := strconv.FormatInt(t.ID, 10)
	diff := at.Sub(now)

	switch {
	case diff >= 0 && diff <= s.window:
		if t.IsCompleted() {
			return false, false, nil
		}
		msg := chat.Text(render.DeadlineWarning(t, render.MinutesUntil(diff)))
		out, err := s.notify.deliver(ctx, chatID, domain.CategoryDeadline, key, msg)
		return out == deliverSent, false, err
	case diff < 0 && t.IsOpen():
		msg := chat.Message{Text: render.Overdue(t), Inline: render.TaskActions(t)}
		out, err := s.notify.deliver(ctx, chatID, domain.CategoryOverdue, key, msg)
		return false, out == deliverSent, err
	}
	return false, false, nil
}
