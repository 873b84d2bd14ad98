package conversation

import (
	"context"
	"fmt"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
)

func (e *Engine) startShiftOpen(ctx context.Context, t Turn, _ Data) (*State, error) {
	if ok, err := e.allowed(ctx, t, domain.ActionManageOwnShift); !ok {
		return nil, err
	}

	current, err := e.gw.CurrentShift(ctx, t.token())
	if err != nil {
		return nil, e.fail(ctx, t, "current shift", err)
	}
	if current != nil {
		return nil, e.finish(ctx, t, render.ShiftAlreadyOpen)
	}

	user, err := e.gw.CurrentUser(ctx, t.token())
	if err != nil {
		return nil, e.fail(ctx, t, "current user", err)
	}

	st := &State{Flow: FlowShiftOpen}
	switch ds := user.WorkDealerships(); len(ds) {
	case 0:
		return nil, e.finish(ctx, t, render.ShiftNoDealership)
	case 1:
		st = st.next(StepAwaitOpeningPhoto, ShiftOpenData{Dealerships: ds, DealershipID: ds[0].ID})
		return st, e.promptOpeningPhoto(ctx, t, st)
	default:
		st = st.next(StepSelectDealership, ShiftOpenData{Dealerships: ds})
		return st, e.promptDealership(ctx, t, st)
	}
}

func (e *Engine) promptDealership(ctx context.Context, t Turn, st *State) error {
	d := st.Data.(ShiftOpenData)
	return e.say(ctx, t, render.ShiftSelectDealer, render.Dealerships(d.Dealerships))
}

func (e *Engine) handleDealership(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	d := st.Data.(ShiftOpenData)
	id := in.Action.Arg(0)
	for _, ds := range d.Dealerships {
		if ds.ID == id {
			d.DealershipID = id
			next := st.next(StepAwaitOpeningPhoto, d)
			return next, e.promptOpeningPhoto(ctx, t, next)
		}
	}
	return st, e.promptDealership(ctx, t, st)
}

func (e *Engine) promptOpeningPhoto(ctx context.Context, t Turn, _ *State) error {
	return e.say(ctx, t, render.ShiftAwaitPhoto, render.ShiftOpenCancel())
}

func (e *Engine) handleOpeningPhoto(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	if in.Attachment.Kind != chat.AttachmentPhoto {
		return st, e.say(ctx, t, render.PhotoRequired, render.ShiftOpenCancel())
	}
	photo, err := e.download(ctx, in.Attachment, "shift_open.jpg")
	if err != nil {
		e.logger.Warn("Failed to download photo", "chat_id", t.ChatID, "error", err)
		return st, e.say(ctx, t, render.GenericError(""), render.ShiftOpenCancel())
	}

	d := st.Data.(ShiftOpenData)
	shift, err := e.gw.OpenShift(ctx, t.token(), t.Session.UserID, d.DealershipID, photo)
	if err != nil {
		return nil, e.fail(ctx, t, "open shift", err)
	}
	return nil, e.finish(ctx, t, render.ShiftOpened(shift))
}

func (e *Engine) startShiftClose(ctx context.Context, t Turn, data Data) (*State, error) {
	if ok, err := e.allowed(ctx, t, domain.ActionManageOwnShift); !ok {
		return nil, err
	}
	st := &State{Flow: FlowShiftClose, Step: StepAwaitClosingPhoto, Data: data.(ShiftCloseData)}
	return st, e.promptClosingPhoto(ctx, t, st)
}

func (e *Engine) promptClosingPhoto(ctx context.Context, t Turn, st *State) error {
	d := st.Data.(ShiftCloseData)
	return e.say(ctx, t, render.ShiftClosePhoto, render.ShiftCloseActions(d.ShiftID))
}

func (e *Engine) handleClosingPhoto(ctx context.Context, t Turn, st *State, in Input) (*State, error) {
	d := st.Data.(ShiftCloseData)

	var photo *backend.File
	if in.Kind == InputButton {
		if in.Action.Arg(0) != d.ShiftID {
			return st, e.promptClosingPhoto(ctx, t, st)
		}
	} else {
		if in.Attachment.Kind != chat.AttachmentPhoto {
			return st, e.promptClosingPhoto(ctx, t, st)
		}
		f, err := e.download(ctx, in.Attachment, "shift_close.jpg")
		if err != nil {
			e.logger.Warn("Failed to download photo", "chat_id", t.ChatID, "error", err)
			return st, e.promptClosingPhoto(ctx, t, st)
		}
		photo = &f
	}

	if _, err := e.gw.CloseShift(ctx, t.token(), d.ShiftID, photo); err != nil {
		return nil, e.fail(ctx, t, "close shift", err)
	}
	return nil, e.finish(ctx, t, render.ShiftClosed)
}

// download fetches an attachment into a backend upload.
func (e *Engine) download(ctx context.Context, a *chat.Attachment, fallbackName string) (backend.File, error) {
	data, err := e.out.Download(ctx, a.FileID)
	if err != nil {
		return backend.File{}, fmt.Errorf("download %s: %w", a.FileID, err)
	}
	f := backend.File{Name: a.FileName, ContentType: a.MIMEType, Data: data}
	if f.Name == "" {
		f.Name = fallbackName
	}
	if f.ContentType == "" && a.Kind == chat.AttachmentPhoto {
		f.ContentType = "image/jpeg"
	}
	return f, nil
}
