// Package bot routes chat updates to commands, menu views, inline actions
// and conversation flows.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/conversation"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/identity"
	"github.com/taskmate/tmbot/internal/render"
)

// Identity resolves and ends chat sessions.
type Identity interface {
	Lookup(ctx context.Context, chatID int64) (*domain.Session, error)
	Logout(ctx context.Context, chatID int64) (bool, error)
	Revoke(ctx context.Context, chatID int64) error
}

// Router handles inbound updates. It is safe for concurrent use across
// chats; updates of one chat must be serialized by the caller (see Queue).
type Router struct {
	ids    Identity
	engine *conversation.Engine
	gw     backend.Gateway
	out    chat.Messenger
	logger *slog.Logger
}

// NewRouter creates a router.
func NewRouter(ids Identity, engine *conversation.Engine, gw backend.Gateway, out chat.Messenger, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{ids: ids, engine: engine, gw: gw, out: out, logger: logger}
}

// Handle processes one update. Errors are reported to the user; a
// rejected credential tears the session down.
func (r *Router) Handle(ctx context.Context, u chat.Update) {
	logger := r.logger.With("chat_id", u.ChatID, "trace_id", uuid.NewString())

	sess, err := r.ids.Lookup(ctx, u.ChatID)
	if err != nil {
		logger.Error("Session lookup failed", "error", err)
		r.reply(ctx, u.ChatID, chat.Text(render.GenericError("")))
		return
	}
	ctx = identity.WithSession(ctx, u.ChatID, sess)
	if sess != nil {
		logger = logger.With("user_id", sess.UserID)
	}

	if u.Callback != nil {
		answer, err := r.handleCallback(ctx, u)
		if err != nil {
			r.handleError(ctx, logger, u.ChatID, err)
			answer = ""
		}
		if err := r.out.AnswerCallback(ctx, u.Callback.ID, answer, false); err != nil {
			logger.Debug("Failed to answer callback", "error", err)
		}
		return
	}

	if name, args, ok := u.Command(); ok {
		logger.Debug("Command received", "command", name)
		err = r.handleCommand(ctx, u, name, args)
	} else {
		err = r.handleMessage(ctx, u)
	}
	if err != nil {
		r.handleError(ctx, logger, u.ChatID, err)
	}
}

// ExpireSession tears down a chat whose credential was rejected: the
// session and ledger are dropped, any flow is reset and the user is asked
// to sign in again.
func (r *Router) ExpireSession(ctx context.Context, chatID int64) error {
	r.engine.Reset(chatID)
	if err := r.ids.Revoke(ctx, chatID); err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	r.reply(ctx, chatID, chat.Message{Text: render.SessionExpired, RemoveMenu: true})
	return nil
}

// handleError reports err to the user.
func (r *Router) handleError(ctx context.Context, logger *slog.Logger, chatID int64, err error) {
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		logger.Info("Backend rejected session", "error", err)
		if err := r.ExpireSession(ctx, chatID); err != nil {
			logger.Error("Session teardown failed", "error", err)
		}
	case errors.Is(err, backend.ErrRateLimited):
		logger.Warn("Backend rate limited", "error", err)
		r.reply(ctx, chatID, chat.Text(render.RateLimited))
	default:
		logger.Error("Update handling failed", "error", err)
		r.reply(ctx, chatID, chat.Text(render.GenericError(backend.MessageOf(err))))
	}
}

func (r *Router) turn(ctx context.Context) conversation.Turn {
	return conversation.Turn{
		ChatID:  identity.ChatIDFromContext(ctx),
		Session: identity.SessionFromContext(ctx),
	}
}

// requireSession tells the user to sign in when there is no session.
func (r *Router) requireSession(ctx context.Context) (*domain.Session, error) {
	sess := identity.SessionFromContext(ctx)
	if sess == nil {
		return nil, r.send(ctx, chat.Text(render.NotSignedIn))
	}
	return sess, nil
}

// guard checks a capability before any backend call.
func (r *Router) guard(ctx context.Context, sess *domain.Session, action domain.Action) (bool, error) {
	if sess.Can(action) {
		return true, nil
	}
	return false, r.send(ctx, chat.Text(render.Forbidden))
}

func (r *Router) send(ctx context.Context, msg chat.Message) error {
	chatID := identity.ChatIDFromContext(ctx)
	if _, err := r.out.Send(ctx, chatID, msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

// withMenu attaches the session's menu when there is one.
func (r *Router) withMenu(ctx context.Context, msg chat.Message) chat.Message {
	if sess := identity.SessionFromContext(ctx); sess != nil {
		return render.WithMenu(msg, sess.Role)
	}
	return msg
}

// reply sends without failing the caller; used on error paths.
func (r *Router) reply(ctx context.Context, chatID int64, msg chat.Message) {
	if _, err := r.out.Send(ctx, chatID, msg); err != nil {
		r.logger.Warn("Failed to send reply", "chat_id", chatID, "error", err)
	}
}
