package conversation

import (
	"context"
	"strings"

	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
)

func (e *Engine) startReject(ctx context.Context, t Turn, data Data) (*State, error) {
	if ok, err := e.allowed(ctx, t, domain.ActionReview); !ok {
		return nil, err
	}
	st := &State{Flow: FlowReject, Step: StepAwaitRejectReason, Data: data.(RejectData)}
	return st, e.promptRejectReason(ctx, t, st)
}

func (e *Engine) promptRejectReason(ctx context.Context, t Turn, st *State) error {
	d := st.Data.(RejectData)
	return e.say(ctx, t, render.RejectPrompt(d.All), render.RejectCancel())
}

func (e *Engine) handleRejectReason(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	reason := strings.TrimSpace(in.Text)
	if reason == "" {
		return st, e.say(ctx, t, render.ReasonRequired, render.RejectCancel())
	}

	d := st.Data.(RejectData)
	if d.All {
		if err := e.gw.RejectAllResponses(ctx, t.token(), d.TaskID, reason); err != nil {
			return nil, e.fail(ctx, t, "reject all responses", err)
		}
		return nil, e.finish(ctx, t, render.RejectedAll)
	}
	if err := e.gw.RejectResponse(ctx, t.token(), d.ResponseID, reason); err != nil {
		return nil, e.fail(ctx, t, "reject response", err)
	}
	return nil, e.finish(ctx, t, render.Rejected)
}
