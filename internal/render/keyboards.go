package render

import (
	"strconv"

	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
)

func act(name string, args ...int64) chat.Action { return chat.NewAction(name, args...) }

// TaskActions offers the next steps for an assignee.
func TaskActions(t *domain.Task) chat.Keyboard {
	var kb chat.Keyboard
	if t.Status == domain.StatusPending {
		kb = append(kb, []chat.Button{act(ActTaskAck, t.ID).Button("👍 Acknowledge")})
	}
	if t.IsOpen() {
		if t.RequiresProof() {
			kb = append(kb, []chat.Button{act(ActProofStart, t.ID).Button("📎 Submit proof")})
		} else {
			kb = append(kb, []chat.Button{act(ActTaskComplete, t.ID).Button("✅ Complete")})
		}
		kb = append(kb, []chat.Button{act(ActDelegateStart, t.ID).Button("🔁 Delegate")})
	}
	return kb
}

// TaskListButtons links each task to its detail card.
func TaskListButtons(tasks []domain.Task) chat.Keyboard {
	kb := make(chat.Keyboard, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		kb = append(kb, []chat.Button{act(ActTaskDetail, t.ID).Button(shorten("#"+itoa(t.ID)+" "+t.Title, 48))})
	}
	return kb
}

// CompleteConfirmActions asks for confirmation before completing.
func CompleteConfirmActions(taskID int64) chat.Keyboard {
	return chat.Keyboard{{
		act(ActTaskCompleteYes, taskID).Button("✅ Yes"),
		act(ActTaskDetail, taskID).Button("↩️ Back"),
	}}
}

// ProofActions is attached to the proof collection prompt.
func ProofActions(taskID int64) chat.Keyboard {
	return chat.Keyboard{{
		act(ActProofSubmit, taskID).Button("📤 Submit"),
		act(ActProofCancel, taskID).Button("❌ Cancel"),
	}}
}

// ReviewActions lets a reviewer act on one response.
func ReviewActions(responseID int64) chat.Keyboard {
	return chat.Keyboard{{
		act(ActReviewApprove, responseID).Button("✅ Approve"),
		act(ActReviewReject, responseID).Button("❌ Reject"),
	}}
}

// ReviewTaskActions acts on every pending response of a task.
func ReviewTaskActions(taskID int64) chat.Keyboard {
	return chat.Keyboard{
		{act(ActReviewDetail, taskID).Button("🔍 Review one by one")},
		{
			act(ActReviewApproveAll, taskID).Button("✅ Approve all"),
			act(ActReviewRejectAll, taskID).Button("❌ Reject all"),
		},
	}
}

// RejectCancel is attached to the rejection reason prompt.
func RejectCancel() chat.Keyboard {
	return chat.Keyboard{{act(ActRejectCancel).Button("❌ Cancel")}}
}

// DelegationActions lets the target accept or decline.
func DelegationActions(delegationID int64) chat.Keyboard {
	return chat.Keyboard{{
		act(ActDelegAccept, delegationID).Button("✅ Accept"),
		act(ActDelegReject, delegationID).Button("❌ Decline"),
	}}
}

// DelegationWithdraw lets the requester cancel a pending delegation.
func DelegationWithdraw(delegationID int64) chat.Keyboard {
	return chat.Keyboard{{act(ActDelegWithdraw, delegationID).Button("↩️ Cancel request")}}
}

// DelegationRejectCancel is attached to the decline reason prompt.
func DelegationRejectCancel() chat.Keyboard {
	return chat.Keyboard{{act(ActDelegRejectNo).Button("❌ Cancel")}}
}

// DelegateUsers lists eligible users for a delegation.
func DelegateUsers(taskID int64, users []domain.User) chat.Keyboard {
	kb := make(chat.Keyboard, 0, len(users)+1)
	for i := range users {
		u := &users[i]
		kb = append(kb, []chat.Button{act(ActDelegateUser, taskID, u.ID).Button(u.DisplayName())})
	}
	return append(kb, []chat.Button{act(ActDelegateCancel, taskID).Button("❌ Cancel")})
}

// DelegateReasonActions offers to skip the reason.
func DelegateReasonActions(taskID, userID int64) chat.Keyboard {
	return chat.Keyboard{{
		act(ActDelegateSkip, taskID, userID).Button("⏭ Skip"),
		act(ActDelegateCancel, taskID).Button("❌ Cancel"),
	}}
}

// ShiftOpenOffer is shown when the user has no open shift.
func ShiftOpenOffer() chat.Keyboard {
	return chat.Keyboard{{act(ActShiftOpen).Button("▶️ Open shift")}}
}

// ShiftCloseOffer is shown on the current shift card.
func ShiftCloseOffer(shiftID int64) chat.Keyboard {
	return chat.Keyboard{{act(ActShiftClose, shiftID).Button("⏹ Close shift")}}
}

// Dealerships lists shift locations to choose from.
func Dealerships(ds []domain.Dealership) chat.Keyboard {
	kb := make(chat.Keyboard, 0, len(ds)+1)
	for _, d := range ds {
		name := d.Name
		if name == "" {
			name = "#" + itoa(d.ID)
		}
		kb = append(kb, []chat.Button{act(ActShiftDealer, d.ID).Button(name)})
	}
	return append(kb, []chat.Button{act(ActShiftOpenCancel).Button("❌ Cancel")})
}

// ShiftOpenCancel is attached to the opening photo prompt.
func ShiftOpenCancel() chat.Keyboard {
	return chat.Keyboard{{act(ActShiftOpenCancel).Button("❌ Cancel")}}
}

// ShiftCloseActions is attached to the closing photo prompt.
func ShiftCloseActions(shiftID int64) chat.Keyboard {
	return chat.Keyboard{{
		act(ActShiftCloseNoPic, shiftID).Button("Close without photo"),
		act(ActShiftCloseCancel).Button("❌ Cancel"),
	}}
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
