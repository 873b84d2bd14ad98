package bot

import (
	"context"

	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/conversation"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/identity"
	"github.com/taskmate/tmbot/internal/render"
)

// flowStarts maps inline actions to the flow they begin.
var flowStarts = map[string]func(a chat.Action) conversation.Data{
	render.ActProofStart:      func(a chat.Action) conversation.Data { return conversation.ProofData{TaskID: a.Arg(0)} },
	render.ActShiftOpen:       func(chat.Action) conversation.Data { return conversation.ShiftOpenData{} },
	render.ActShiftClose:      func(a chat.Action) conversation.Data { return conversation.ShiftCloseData{ShiftID: a.Arg(0)} },
	render.ActReviewReject:    func(a chat.Action) conversation.Data { return conversation.RejectData{ResponseID: a.Arg(0)} },
	render.ActReviewRejectAll: func(a chat.Action) conversation.Data { return conversation.RejectData{All: true, TaskID: a.Arg(0)} },
	render.ActDelegateStart:   func(a chat.Action) conversation.Data { return conversation.DelegateData{TaskID: a.Arg(0)} },
	render.ActDelegReject:     func(a chat.Action) conversation.Data { return conversation.DeclineData{DelegationID: a.Arg(0)} },
}

// handleCallback runs an inline action and returns the toast to show.
func (r *Router) handleCallback(ctx context.Context, u chat.Update) (string, error) {
	a, err := chat.ParseAction(u.Callback.Data)
	if err != nil {
		return render.ActionExpired, nil
	}
	sess := identity.SessionFromContext(ctx)
	if sess == nil {
		return render.NotSignedIn, r.send(ctx, chat.Text(render.NotSignedIn))
	}
	t := r.turn(ctx)

	if flow, ok := conversation.CancelAction(a.Name); ok {
		cancelled, err := r.engine.CancelFlow(ctx, t, flow)
		if err != nil || !cancelled {
			return render.ActionExpired, err
		}
		r.clearButtons(ctx, u)
		return "", nil
	}
	if conversation.StepAction(a.Name) {
		handled, err := r.engine.Advance(ctx, t, conversation.ButtonInput(a))
		if err != nil {
			return "", err
		}
		if !handled {
			return render.ActionExpired, nil
		}
		return "", nil
	}
	if start, ok := flowStarts[a.Name]; ok {
		return "", r.engine.Start(ctx, t, start(a))
	}

	switch a.Name {
	case render.ActTaskDetail:
		return "", r.showTask(ctx, sess, a.Arg(0))
	case render.ActTaskAck:
		return r.acknowledge(ctx, u, sess, a.Arg(0))
	case render.ActTaskComplete:
		if ok, err := r.guard(ctx, sess, domain.ActionUpdateTask); !ok {
			return "", err
		}
		return "", r.send(ctx, chat.Message{Text: render.CompleteConfirm, Inline: render.CompleteConfirmActions(a.Arg(0))})
	case render.ActTaskCompleteYes:
		return r.complete(ctx, u, sess, a.Arg(0))
	case render.ActReviewApprove:
		return r.approve(ctx, u, sess, a.Arg(0), false)
	case render.ActReviewApproveAll:
		return r.approve(ctx, u, sess, a.Arg(0), true)
	case render.ActReviewDetail:
		if ok, err := r.guard(ctx, sess, domain.ActionReview); !ok {
			return "", err
		}
		return "", r.showResponses(ctx, sess, a.Arg(0))
	case render.ActDelegAccept:
		if ok, err := r.guard(ctx, sess, domain.ActionRespondDelegate); !ok {
			return "", err
		}
		if err := r.gw.AcceptDelegation(ctx, sess.Token, a.Arg(0)); err != nil {
			return "", err
		}
		r.clearButtons(ctx, u)
		return "", r.send(ctx, r.withMenu(ctx, chat.Text(render.DelegationAccept)))
	case render.ActDelegWithdraw:
		if ok, err := r.guard(ctx, sess, domain.ActionDelegate); !ok {
			return "", err
		}
		if err := r.gw.CancelDelegation(ctx, sess.Token, a.Arg(0)); err != nil {
			return "", err
		}
		r.clearButtons(ctx, u)
		return "", r.send(ctx, r.withMenu(ctx, chat.Text(render.DelegationRevoked)))
	}
	return render.ActionExpired, nil
}

func (r *Router) acknowledge(ctx context.Context, u chat.Update, sess *domain.Session, taskID int64) (string, error) {
	if ok, err := r.guard(ctx, sess, domain.ActionUpdateTask); !ok {
		return "", err
	}
	task, err := r.gw.UpdateTaskStatus(ctx, sess.Token, taskID, domain.StatusAcknowledged, nil)
	if err != nil {
		return "", err
	}
	r.clearButtons(ctx, u)
	msg := chat.Text(render.Acknowledged)
	if task != nil {
		msg.Inline = render.TaskActions(task)
	}
	return "", r.send(ctx, msg)
}

// complete finishes a task. Tasks that need proof go through the proof
// flow instead.
func (r *Router) complete(ctx context.Context, u chat.Update, sess *domain.Session, taskID int64) (string, error) {
	if ok, err := r.guard(ctx, sess, domain.ActionUpdateTask); !ok {
		return "", err
	}
	task, err := r.gw.Task(ctx, sess.Token, taskID)
	if err != nil {
		return "", err
	}
	if task.RequiresProof() {
		return "", r.engine.Start(ctx, r.turn(ctx), conversation.ProofData{TaskID: taskID})
	}
	if _, err := r.gw.UpdateTaskStatus(ctx, sess.Token, taskID, domain.StatusCompleted, nil); err != nil {
		return "", err
	}
	r.clearButtons(ctx, u)
	return "", r.send(ctx, r.withMenu(ctx, chat.Text(render.Completed)))
}

func (r *Router) approve(ctx context.Context, u chat.Update, sess *domain.Session, id int64, all bool) (string, error) {
	if ok, err := r.guard(ctx, sess, domain.ActionReview); !ok {
		return "", err
	}
	text := render.Approved
	if all {
		text = render.ApprovedAll
		if err := r.gw.ApproveAllResponses(ctx, sess.Token, id); err != nil {
			return "", err
		}
	} else if err := r.gw.ApproveResponse(ctx, sess.Token, id); err != nil {
		return "", err
	}
	r.clearButtons(ctx, u)
	return text, r.send(ctx, chat.Text(text))
}

func (r *Router) clearButtons(ctx context.Context, u chat.Update) {
	if u.Callback == nil || u.Callback.MessageID == 0 {
		return
	}
	if err := r.out.ClearButtons(ctx, u.ChatID, u.Callback.MessageID); err != nil {
		r.logger.Debug("Failed to clear buttons", "chat_id", u.ChatID, "error", err)
	}
}
