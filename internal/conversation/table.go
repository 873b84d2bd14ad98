package conversation

import (
	"context"

	"github.com/taskmate/tmbot/internal/render"
)

type stepKey struct {
	flow Flow
	step Step
}

type (
	startFunc  func(e *Engine, ctx context.Context, t Turn, data Data) (*State, error)
	promptFunc func(e *Engine, ctx context.Context, t Turn, st *State) error
	handleFunc func(e *Engine, ctx context.Context, t Turn, st *State, in Input) (*State, error)
)

// step describes what a step accepts and how it reacts. handle returns the
// next state; nil ends the flow.
type step struct {
	accepts InputKind
	buttons []string
	prompt  promptFunc
	handle  handleFunc
}

func (s step) acceptsButton(name string) bool {
	for _, b := range s.buttons {
		if b == name {
			return true
		}
	}
	return false
}

func startTable() map[Flow]startFunc {
	return map[Flow]startFunc{
		FlowAuth:              (*Engine).startAuth,
		FlowShiftOpen:         (*Engine).startShiftOpen,
		FlowShiftClose:        (*Engine).startShiftClose,
		FlowProof:             (*Engine).startProof,
		FlowReject:            (*Engine).startReject,
		FlowDelegate:          (*Engine).startDelegate,
		FlowDeclineDelegation: (*Engine).startDecline,
	}
}

func stepTable() map[stepKey]step {
	return map[stepKey]step{
		{FlowAuth, StepAwaitCredentials}: {
			accepts: InputText,
			prompt:  (*Engine).promptCredentials,
			handle:  (*Engine).handleCredentials,
		},
		{FlowShiftOpen, StepSelectDealership}: {
			accepts: InputButton,
			buttons: []string{render.ActShiftDealer},
			prompt:  (*Engine).promptDealership,
			handle:  (*Engine).handleDealership,
		},
		{FlowShiftOpen, StepAwaitOpeningPhoto}: {
			accepts: InputMedia,
			prompt:  (*Engine).promptOpeningPhoto,
			handle:  (*Engine).handleOpeningPhoto,
		},
		{FlowShiftClose, StepAwaitClosingPhoto}: {
			accepts: InputMedia | InputButton,
			buttons: []string{render.ActShiftCloseNoPic},
			prompt:  (*Engine).promptClosingPhoto,
			handle:  (*Engine).handleClosingPhoto,
		},
		{FlowProof, StepCollectFiles}: {
			accepts: InputMedia | InputButton,
			buttons: []string{render.ActProofSubmit},
			prompt:  (*Engine).promptProof,
			handle:  (*Engine).handleProof,
		},
		{FlowReject, StepAwaitRejectReason}: {
			accepts: InputText,
			prompt:  (*Engine).promptRejectReason,
			handle:  (*Engine).handleRejectReason,
		},
		{FlowDelegate, StepSelectUser}: {
			accepts: InputButton,
			buttons: []string{render.ActDelegateUser},
			prompt:  (*Engine).promptDelegateUser,
			handle:  (*Engine).handleDelegateUser,
		},
		{FlowDelegate, StepAwaitDelegateReason}: {
			accepts: InputText | InputButton,
			buttons: []string{render.ActDelegateSkip},
			prompt:  (*Engine).promptDelegateReason,
			handle:  (*Engine).handleDelegateReason,
		},
		{FlowDeclineDelegation, StepAwaitDeclineReason}: {
			accepts: InputText,
			prompt:  (*Engine).promptDeclineReason,
			handle:  (*Engine).handleDeclineReason,
		},
	}
}

// cancelActions maps cancel buttons to the flow they abort.
var cancelActions = map[string]Flow{
	render.ActShiftOpenCancel:  FlowShiftOpen,
	render.ActShiftCloseCancel: FlowShiftClose,
	render.ActProofCancel:      FlowProof,
	render.ActRejectCancel:     FlowReject,
	render.ActDelegateCancel:   FlowDelegate,
	render.ActDelegRejectNo:    FlowDeclineDelegation,
}

// CancelAction reports which flow a cancel button aborts.
func CancelAction(name string) (Flow, bool) {
	f, ok := cancelActions[name]
	return f, ok
}

// StepAction reports whether name is a button consumed by a flow step.
func StepAction(name string) bool {
	switch name {
	case render.ActShiftDealer, render.ActShiftCloseNoPic, render.ActProofSubmit,
		render.ActDelegateUser, render.ActDelegateSkip:
		return true
	}
	return false
}
