// Package identity manages the binding between a chat and a backend session.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/store"
)

// ErrAlreadyAuthenticated rejects a login for a chat that has a session.
var ErrAlreadyAuthenticated = errors.New("identity: chat already has a session")

// suppressPageSize bounds the task fetch used to pre-mark old events.
const suppressPageSize = 100

// suppressCategories are pre-filled at login so events that predate the
// session are not announced.
var suppressCategories = []domain.Category{
	domain.CategoryTask,
	domain.CategoryDeadline,
	domain.CategoryOverdue,
	domain.CategoryReview,
}

type contextKey int

const (
	sessionKey contextKey = iota
	chatIDKey
)

// WithSession attaches the chat and its session to ctx.
func WithSession(ctx context.Context, chatID int64, s *domain.Session) context.Context {
	ctx = context.WithValue(ctx, chatIDKey, chatID)
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session stored by WithSession, or nil.
func SessionFromContext(ctx context.Context) *domain.Session {
	if v, ok := ctx.Value(sessionKey).(*domain.Session); ok {
		return v
	}
	return nil
}

// ChatIDFromContext returns the chat id stored by WithSession.
func ChatIDFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(chatIDKey).(int64); ok {
		return v
	}
	return 0
}

// Service owns session creation and teardown. The ledger is always cleared
// together with the session it belongs to.
type Service struct {
	sessions store.SessionDirectory
	ledger   store.DedupLedger
	gw       backend.Gateway
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService wires a Service.
func NewService(sessions store.SessionDirectory, ledger store.DedupLedger, gw backend.Gateway, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: sessions,
		ledger:   ledger,
		gw:       gw,
		ttl:      ttl,
		logger:   logger.With("component", "identity"),
	}
}

// Lookup returns the chat's session and refreshes its expiry. A nil session
// means the chat is not signed in.
func (s *Service) Lookup(ctx context.Context, chatID int64) (*domain.Session, error) {
	sess, err := s.sessions.GetSession(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if err := s.sessions.TouchSession(ctx, chatID, s.ttl); err != nil {
		s.logger.Warn("Failed to refresh session", "chat_id", chatID, "error", err)
	}
	return sess, nil
}

// Login authenticates against the backend and installs a session. Backend
// errors are returned unchanged so callers can match backend sentinels.
func (s *Service) Login(ctx context.Context, chatID int64, login, password string) (*domain.Session, error) {
	existing, err := s.sessions.GetSession(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyAuthenticated
	}

	res, err := s.gw.Login(ctx, login, password)
	if err != nil {
		return nil, err
	}

	sess := &domain.Session{
		Token:    res.Token,
		UserID:   res.User.ID,
		FullName: res.User.DisplayName(),
		Role:     domain.ParseRole(res.User.Role),
		Login:    res.User.Login,
	}
	if sess.Login == "" {
		sess.Login = login
	}
	if err := s.sessions.PutSession(ctx, chatID, sess, s.ttl); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("User signed in", "chat_id", chatID, "user_id", sess.UserID, "role", sess.Role)

	s.suppressExisting(ctx, chatID, sess)
	return sess, nil
}

// suppressExisting marks the user's current tasks as already announced.
// Failures only cost duplicate notifications, so they are logged.
func (s *Service) suppressExisting(ctx context.Context, chatID int64, sess *domain.Session) {
	tasks, err := s.gw.Tasks(ctx, sess.Token, backend.TaskFilter{PerPage: suppressPageSize})
	if err != nil {
		s.logger.Warn("Failed to load tasks for suppression", "chat_id", chatID, "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}
	keys := make([]string, len(tasks))
	for i, t := range tasks {
		keys[i] = strconv.FormatInt(t.ID, 10)
	}
	for _, c := range suppressCategories {
		if err := s.ledger.MarkDeliveredBulk(ctx, chatID, c, keys); err != nil {
			s.logger.Warn("Failed to suppress existing events", "chat_id", chatID, "category", c, "error", err)
		}
	}
	s.logger.Debug("Suppressed existing events", "chat_id", chatID, "tasks", len(keys))
}

// Logout revokes the token on the backend (best effort) and removes all
// local state for the chat. It reports whether a session existed.
func (s *Service) Logout(ctx context.Context, chatID int64) (bool, error) {
	sess, err := s.sessions.GetSession(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil {
		return false, nil
	}
	if err := s.gw.Logout(ctx, sess.Token); err != nil {
		s.logger.Warn("Backend logout failed", "chat_id", chatID, "error", err)
	}
	if err := s.teardown(ctx, chatID); err != nil {
		return true, err
	}
	s.logger.Info("User signed out", "chat_id", chatID, "user_id", sess.UserID)
	return true, nil
}

// Revoke drops local state after the backend rejected the credential.
func (s *Service) Revoke(ctx context.Context, chatID int64) error {
	if err := s.teardown(ctx, chatID); err != nil {
		return err
	}
	s.logger.Info("Session revoked after backend rejected credential", "chat_id", chatID)
	return nil
}

func (s *Service) teardown(ctx context.Context, chatID int64) error {
	if err := s.ledger.ClearAll(ctx, chatID); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	if err := s.sessions.DeleteSession(ctx, chatID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
