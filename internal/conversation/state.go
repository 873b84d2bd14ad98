package conversation

import (
	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/domain"
)

// Flow identifies one multi-step conversation.
type Flow uint8

const (
	FlowAuth Flow = iota + 1
	FlowShiftOpen
	FlowShiftClose
	FlowProof
	FlowReject
	FlowDelegate
	FlowDeclineDelegation
)

func (f Flow) String() string {
	switch f {
	case FlowAuth:
		return "auth"
	case FlowShiftOpen:
		return "shift_open"
	case FlowShiftClose:
		return "shift_close"
	case FlowProof:
		return "proof"
	case FlowReject:
		return "reject"
	case FlowDelegate:
		return "delegate"
	case FlowDeclineDelegation:
		return "decline_delegation"
	}
	return "unknown"
}

// Step names a point inside a flow.
type Step string

const (
	StepAwaitCredentials    Step = "await_credentials"
	StepSelectDealership    Step = "select_dealership"
	StepAwaitOpeningPhoto   Step = "await_opening_photo"
	StepAwaitClosingPhoto   Step = "await_closing_photo"
	StepCollectFiles        Step = "collect_files"
	StepAwaitRejectReason   Step = "await_reject_reason"
	StepSelectUser          Step = "select_user"
	StepAwaitDelegateReason Step = "await_delegate_reason"
	StepAwaitDeclineReason  Step = "await_decline_reason"
)

// Data is the flow-specific scratch state. Each flow has exactly one
// implementation, and the same value doubles as the flow's start request.
type Data interface {
	flow() Flow
}

// AuthData starts sign in. Credentials may be given inline ("login pass"),
// in which case MessageID identifies the message to delete.
type AuthData struct {
	Credentials string
	MessageID   int
}

// ShiftOpenData tracks dealership choice for a new shift.
type ShiftOpenData struct {
	Dealerships  []domain.Dealership
	DealershipID int64
}

// ShiftCloseData identifies the shift being closed.
type ShiftCloseData struct {
	ShiftID int64
}

// ProofData accumulates proof files for a task.
type ProofData struct {
	TaskID int64
	Files  []backend.File
	Bytes  int64
}

// RejectData targets one response, or with All every pending response of
// TaskID.
type RejectData struct {
	All        bool
	ResponseID int64
	TaskID     int64
}

// DelegateData tracks the candidate list and the chosen user.
type DelegateData struct {
	TaskID     int64
	Candidates []domain.User
	ToUserID   int64
}

// DeclineData identifies the delegation being declined.
type DeclineData struct {
	DelegationID int64
}

func (AuthData) flow() Flow       { return FlowAuth }
func (ShiftOpenData) flow() Flow  { return FlowShiftOpen }
func (ShiftCloseData) flow() Flow { return FlowShiftClose }
func (ProofData) flow() Flow      { return FlowProof }
func (RejectData) flow() Flow     { return FlowReject }
func (DelegateData) flow() Flow   { return FlowDelegate }
func (DeclineData) flow() Flow    { return FlowDeclineDelegation }

// State is the active conversation of one chat.
type State struct {
	Flow Flow
	Step Step
	Data Data
}

func (s *State) next(step Step, data Data) *State {
	return &State{Flow: s.Flow, Step: step, Data: data}
}
