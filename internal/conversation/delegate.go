package conversation

import (
	"context"
	"strings"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
)

const candidatePageSize = 50

func (e *Engine) startDelegate(ctx context.Context, t Turn, data Data) (*State, error) {
	if ok, err := e.allowed(ctx, t, domain.ActionDelegate); !ok {
		return nil, err
	}
	d := data.(DelegateData)

	task, err := e.gw.Task(ctx, t.token(), d.TaskID)
	if err != nil {
		return nil, e.fail(ctx, t, "load task", err)
	}
	dealershipID := task.DealershipID
	if dealershipID == 0 && task.Dealership != nil {
		dealershipID = task.Dealership.ID
	}

	users, err := e.gw.Users(ctx, t.token(), backend.UserFilter{
		Role:         string(domain.RoleEmployee),
		DealershipID: dealershipID,
		PerPage:      candidatePageSize,
	})
	if err != nil {
		return nil, e.fail(ctx, t, "list users", err)
	}

	assigned := task.AssigneeIDs()
	candidates := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.ID == t.Session.UserID || assigned[u.ID] {
			continue
		}
		candidates = append(candidates, u)
	}
	if len(candidates) == 0 {
		return nil, e.finish(ctx, t, render.DelegateNoUsers)
	}

	st := &State{Flow: FlowDelegate, Step: StepSelectUser, Data: DelegateData{TaskID: task.ID, Candidates: candidates}}
	if err := e.say(ctx, t, render.DelegatePickUser(task), render.DelegateUsers(task.ID, candidates)); err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) promptDelegateUser(ctx context.Context, t Turn, st *State) error {
	d := st.Data.(DelegateData)
	return e.say(ctx, t, render.DelegatePickUser(&domain.Task{ID: d.TaskID, Title: "this task"}),
		render.DelegateUsers(d.TaskID, d.Candidates))
}

func (e *Engine) handleDelegateUser(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	d := st.Data.(DelegateData)
	if in.Action.Arg(0) != d.TaskID {
		return st, e.promptDelegateUser(ctx, t, st)
	}
	userID := in.Action.Arg(1)
	for _, u := range d.Candidates {
		if u.ID == userID {
			d.ToUserID = userID
			next := st.next(StepAwaitDelegateReason, d)
			return next, e.promptDelegateReason(ctx, t, next)
		}
	}
	return st, e.promptDelegateUser(ctx, t, st)
}

func (e *Engine) promptDelegateReason(ctx context.Context, t Turn, st *State) error {
	d := st.Data.(DelegateData)
	return e.say(ctx, t, render.DelegateReason, render.DelegateReasonActions(d.TaskID, d.ToUserID))
}

func (e *Engine) handleDelegateReason(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	d := st.Data.(DelegateData)

	var reason string
	if in.Kind == InputButton {
		if in.Action.Arg(0) != d.TaskID || in.Action.Arg(1) != d.ToUserID {
			return st, e.promptDelegateReason(ctx, t, st)
		}
	} else {
		reason = strings.TrimSpace(in.Text)
		if reason == "" {
			return st, e.promptDelegateReason(ctx, t, st)
		}
	}

	if _, err := e.gw.CreateDelegation(ctx, t.token(), d.TaskID, d.ToUserID, reason); err != nil {
		return nil, e.fail(ctx, t, "create delegation", err)
	}
	return nil, e.finish(ctx, t, render.DelegationSent)
}

func (e *Engine) startDecline(ctx context.Context, t Turn, data Data) (*State, error) {
	if ok, err := e.allowed(ctx, t, domain.ActionRespondDelegate); !ok {
		return nil, err
	}
	st := &State{Flow: FlowDeclineDelegation, Step: StepAwaitDeclineReason, Data: data.(DeclineData)}
	return st, e.promptDeclineReason(ctx, t, st)
}

func (e *Engine) promptDeclineReason(ctx context.Context, t Turn, _ *State) error {
	return e.say(ctx, t, render.DelegationReason, render.DelegationRejectCancel())
}

func (e *Engine) handleDeclineReason(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	reason := strings.TrimSpace(in.Text)
	if reason == "" {
		return st, e.say(ctx, t, render.ReasonRequired, render.DelegationRejectCancel())
	}
	d := st.Data.(DeclineData)
	if err := e.gw.RejectDelegation(ctx, t.token(), d.DelegationID, reason); err != nil {
		return nil, e.fail(ctx, t, "decline delegation", err)
	}
	return nil, e.finish(ctx, t, render.DelegationDecline)
}
