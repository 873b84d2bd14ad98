package bot

import (
	"context"
	"strings"

	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/conversation"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/identity"
	"github.com/taskmate/tmbot/internal/render"
)

func (r *Router) handleCommand(ctx context.Context, u chat.Update, name string, args []string) error {
	switch name {
	case "start", "help":
		return r.send(ctx, r.withMenu(ctx, chat.Text(render.Help)))
	case "login":
		data := conversation.AuthData{}
		if len(args) > 0 {
			data.Credentials = strings.Join(args, " ")
			data.MessageID = u.MessageID
		}
		return r.engine.Start(ctx, r.turn(ctx), data)
	case "logout":
		return r.logout(ctx)
	case "cancel":
		ok, err := r.engine.Cancel(ctx, r.turn(ctx))
		if err != nil || ok {
			return err
		}
		return r.send(ctx, r.withMenu(ctx, chat.Text(render.NothingToCancel)))
	}

	sess, err := r.requireSession(ctx)
	if sess == nil {
		return err
	}
	switch name {
	case "tasks":
		return r.showTasks(ctx, sess, sess.Can(domain.ActionViewAllTasks))
	case "shift":
		if sess.Can(domain.ActionManageOwnShift) {
			return r.showMyShift(ctx, sess)
		}
		if ok, err := r.guard(ctx, sess, domain.ActionViewAllShifts); !ok {
			return err
		}
		return r.showShifts(ctx, sess)
	case "delegations":
		return r.showDelegations(ctx, sess)
	}
	return r.send(ctx, r.withMenu(ctx, chat.Text(render.UnknownInput)))
}

// handleMessage feeds text and media to the active flow, then falls back
// to the main menu.
func (r *Router) handleMessage(ctx context.Context, u chat.Update) error {
	in := conversation.TextInput(u.Text, u.MessageID)
	if u.Attachment != nil {
		in = conversation.MediaInput(u.Attachment)
	}
	handled, err := r.engine.Advance(ctx, r.turn(ctx), in)
	if err != nil || handled {
		return err
	}

	action, ok := render.MenuAction(strings.TrimSpace(u.Text))
	if u.Attachment != nil || !ok {
		return r.send(ctx, r.withMenu(ctx, chat.Text(render.UnknownInput)))
	}
	sess, err := r.requireSession(ctx)
	if sess == nil {
		return err
	}
	if action == "" {
		return r.logout(ctx)
	}
	if ok, err := r.guard(ctx, sess, action); !ok {
		return err
	}

	switch action {
	case domain.ActionViewOwnTasks:
		return r.showTasks(ctx, sess, false)
	case domain.ActionViewAllTasks:
		return r.showTasks(ctx, sess, true)
	case domain.ActionReview:
		return r.showReviews(ctx, sess)
	case domain.ActionViewOverdue:
		return r.showOverdue(ctx, sess)
	case domain.ActionManageOwnShift:
		return r.showMyShift(ctx, sess)
	case domain.ActionViewAllShifts:
		return r.showShifts(ctx, sess)
	case domain.ActionDelegate:
		return r.showDelegations(ctx, sess)
	case domain.ActionViewDashboard:
		return r.showDashboard(ctx, sess)
	}
	return r.send(ctx, r.withMenu(ctx, chat.Text(render.UnknownInput)))
}

func (r *Router) logout(ctx context.Context) error {
	chatID := identity.ChatIDFromContext(ctx)
	r.engine.Reset(chatID)
	existed, err := r.ids.Logout(ctx, chatID)
	if err != nil {
		return err
	}
	if !existed {
		return r.send(ctx, chat.Text(render.NotSignedIn))
	}
	return r.send(ctx, chat.Message{Text: render.LoggedOut, RemoveMenu: true})
}
