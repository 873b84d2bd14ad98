// Package fanout delivers backend events to the chats of their target
// users. Two producers feed it: the broker consumer (push) and the
// deadline scanner (pull). Both go through the dedup ledger so each
// (chat, category, key) is announced at most once.
package fanout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
)

// Event kinds published by the backend.
const (
	KindAssigned            = "task.assigned"
	KindPendingReview       = "task.pending_review"
	KindApproved            = "task.approved"
	KindRejected            = "task.rejected"
	KindDelegationRequested = "task.delegation_requested"
	KindDelegationAccepted  = "task.delegation_accepted"
	KindDelegationRejected  = "task.delegation_rejected"
	KindDelegationCancelled = "task.delegation_cancelled"

	delegationPrefix = "task.delegation"
)

// Event is one broker message.
type Event struct {
	Kind         string      `json:"event"`
	Task         domain.Task `json:"task"`
	UserIDs      []int64     `json:"user_ids"`
	DelegationID int64       `json:"delegation_id,omitempty"`
	ResponseID   int64       `json:"response_id,omitempty"`
	SubmittedBy  string      `json:"submitted_by,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	FromUser     string      `json:"from_user,omitempty"`
	ToUser       string      `json:"to_user,omitempty"`
}

// ErrDrop marks a message that can never be processed and should be
// acknowledged without delivery.
type ErrDrop struct {
	Reason string
}

func (e *ErrDrop) Error() string {
	return "drop event: " + e.Reason
}

// ParseEvent decodes a broker body. Bodies without a task id or without
// targets are rejected with *ErrDrop.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, &ErrDrop{Reason: fmt.Sprintf("malformed json: %v", err)}
	}
	if ev.Task.ID == 0 {
		return Event{}, &ErrDrop{Reason: "missing task id"}
	}
	if len(ev.UserIDs) == 0 {
		return Event{}, &ErrDrop{Reason: "no target users"}
	}
	return ev, nil
}

// Dedup returns the ledger category and key for the event. Delegation
// events are keyed by delegation id, falling back to the task id.
func (ev Event) Dedup() (domain.Category, string) {
	taskKey := strconv.FormatInt(ev.Task.ID, 10)
	switch {
	case strings.HasPrefix(ev.Kind, delegationPrefix):
		if ev.DelegationID != 0 {
			return domain.CategoryDelegation, strconv.FormatInt(ev.DelegationID, 10)
		}
		return domain.CategoryDelegation, taskKey
	case ev.Kind == KindPendingReview:
		return domain.CategoryReview, taskKey
	default:
		return domain.CategoryTask, taskKey
	}
}

// Message renders the notification. ok is false for kinds that carry no
// user-facing text.
func (ev Event) Message() (msg chat.Message, ok bool) {
	t := &ev.Task
	switch ev.Kind {
	case KindAssigned:
		if t.Status == "" {
			t.Status = domain.StatusPending
		}
		return chat.Message{Text: render.TaskAssigned(t), Inline: render.TaskActions(t)}, true
	case KindPendingReview:
		msg = chat.Text(render.ReviewRequested(t, ev.SubmittedBy))
		if ev.ResponseID != 0 {
			msg.Inline = render.ReviewActions(ev.ResponseID)
		}
		return msg, true
	case KindApproved:
		return chat.Text(render.TaskApproved(t)), true
	case KindRejected:
		return chat.Text(render.TaskRejected(t, ev.Reason)), true
	case KindDelegationRequested:
		msg = chat.Text(render.DelegationRequested(t, ev.FromUser, ev.Reason))
		if ev.DelegationID != 0 {
			msg.Inline = render.DelegationActions(ev.DelegationID)
		}
		return msg, true
	case KindDelegationAccepted:
		return chat.Text(render.DelegationAccepted(t, ev.ToUser)), true
	case KindDelegationRejected:
		return chat.Text(render.DelegationRejected(t, ev.ToUser, ev.Reason)), true
	case KindDelegationCancelled:
		return chat.Text(render.DelegationCancelled(t, ev.FromUser)), true
	}
	return chat.Message{}, false
}
