package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/identity"
	"github.com/taskmate/tmbot/internal/render"
)

func (e *Engine) startAuth(ctx context.Context, t Turn, data Data) (*State, error) {
	d := data.(AuthData)
	if t.Session != nil {
		e.dropCredentials(ctx, t, d.MessageID)
		return nil, e.send(ctx, t, chat.Text(render.AlreadyLoggedIn))
	}
	st := &State{Flow: FlowAuth, Step: StepAwaitCredentials, Data: AuthData{}}
	if d.Credentials != "" {
		return e.handleCredentials(ctx, t, st, TextInput(d.Credentials, d.MessageID))
	}
	return st, e.promptCredentials(ctx, t, st)
}

func (e *Engine) promptCredentials(ctx context.Context, t Turn, _ *State) error {
	return e.send(ctx, t, chat.Message{Text: render.LoginPrompt, RemoveMenu: true})
}

// dropCredentials deletes a message that holds a password, whatever
// happens next.
func (e *Engine) dropCredentials(ctx context.Context, t Turn, messageID int) {
	if messageID == 0 {
		return
	}
	if err := e.out.Delete(ctx, t.ChatID, messageID); err != nil {
		e.logger.Warn("Failed to delete credentials message", "chat_id", t.ChatID, "error", err)
	}
}

func (e *Engine) handleCredentials(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	e.dropCredentials(ctx, t, in.MessageID)

	fields := strings.Fields(in.Text)
	if len(fields) != 2 {
		return st, e.send(ctx, t, chat.Text(render.LoginFormat))
	}

	sess, err := e.auth.Login(ctx, t.ChatID, fields[0], fields[1])
	switch {
	case err == nil:
		return nil, e.send(ctx, t, render.WithMenu(chat.Text(render.LoginSuccess(sess)), sess.Role))
	case errors.Is(err, identity.ErrAlreadyAuthenticated):
		return nil, e.send(ctx, t, chat.Text(render.AlreadyLoggedIn))
	case errors.Is(err, backend.ErrUnauthorized):
		return nil, e.send(ctx, t, chat.Text(render.LoginInvalid))
	case errors.Is(err, backend.ErrRateLimited):
		return nil, e.send(ctx, t, chat.Text(render.LoginThrottled))
	default:
		e.logger.Warn("Login failed", "chat_id", t.ChatID, "error", err)
		return nil, e.send(ctx, t, chat.Text(render.LoginFailed))
	}
}
