package conversation

import (
	"context"
	"fmt"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
)

func (e *Engine) startProof(ctx context.Context, t Turn, data Data) (*State, error) {
	if ok, err := e.allowed(ctx, t, domain.ActionSubmitProof); !ok {
		return nil, err
	}
	d := data.(ProofData)
	st := &State{Flow: FlowProof, Step: StepCollectFiles, Data: ProofData{TaskID: d.TaskID}}
	return st, e.promptProof(ctx, t, st)
}

func (e *Engine) promptProof(ctx context.Context, t Turn, st *State) error {
	d := st.Data.(ProofData)
	return e.say(ctx, t, render.ProofPrompt(len(d.Files), e.maxFiles, d.Bytes, e.maxBytes), render.ProofActions(d.TaskID))
}

func (e *Engine) handleProof(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	d := st.Data.(ProofData)
	if in.Kind == InputButton {
		if in.Action.Arg(0) != d.TaskID {
			return st, e.promptProof(ctx, t, st)
		}
		return e.submitProof(ctx, t, st)
	}

	if len(d.Files) >= e.maxFiles {
		return st, e.say(ctx, t, render.ProofTooMany(e.maxFiles), render.ProofActions(d.TaskID))
	}
	if d.Bytes+in.Attachment.Size > e.maxBytes {
		return st, e.say(ctx, t, render.ProofTooLarge(e.maxBytes), render.ProofActions(d.TaskID))
	}

	f, err := e.download(ctx, in.Attachment, fmt.Sprintf("proof_%d", len(d.Files)+1))
	if err != nil {
		e.logger.Warn("Failed to download proof", "chat_id", t.ChatID, "task_id", d.TaskID, "error", err)
		return st, e.say(ctx, t, render.GenericError(""), render.ProofActions(d.TaskID))
	}
	size := int64(len(f.Data))
	if d.Bytes+size > e.maxBytes {
		return st, e.say(ctx, t, render.ProofTooLarge(e.maxBytes), render.ProofActions(d.TaskID))
	}

	files := make([]backend.File, 0, len(d.Files)+1)
	files = append(append(files, d.Files...), f)
	next := st.next(StepCollectFiles, ProofData{TaskID: d.TaskID, Files: files, Bytes: d.Bytes + size})
	return next, e.promptProof(ctx, t, next)
}

// submitProof keeps the collected files when the backend refuses them, so
// the user can retry or cancel.
func (e *Engine) submitProof(ctx context.Context, t Turn, st *State) (*State, error) {
	d := st.Data.(ProofData)
	if len(d.Files) == 0 {
		return st, e.say(ctx, t, render.ProofEmpty, render.ProofActions(d.TaskID))
	}
	if _, err := e.gw.UpdateTaskStatus(ctx, t.token(), d.TaskID, domain.StatusPendingReview, d.Files); err != nil {
		if ferr := e.fail(ctx, t, "submit proof", err); ferr != nil {
			return nil, ferr
		}
		return st, nil
	}
	return nil, e.finish(ctx, t, render.ProofSubmitted)
}
