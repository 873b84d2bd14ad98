package render

import (
	"fmt"

	"github.com/taskmate/tmbot/internal/domain"
)

// TaskAssigned announces a new task.
func TaskAssigned(t *domain.Task) string {
	return "🆕 New task\n\n" + TaskCard(t)
}

// ReviewRequested tells a reviewer a response is waiting.
func ReviewRequested(t *domain.Task, submittedBy string) string {
	msg := fmt.Sprintf("🔍 <b>%s</b> #%d was submitted for review", esc(t.Title), t.ID)
	if submittedBy != "" {
		msg += " by " + esc(submittedBy)
	}
	return msg + "."
}

// TaskApproved tells the assignee their work was accepted.
func TaskApproved(t *domain.Task) string {
	return fmt.Sprintf("✅ <b>%s</b> #%d was approved.", esc(t.Title), t.ID)
}

// TaskRejected tells the assignee their work was sent back.
func TaskRejected(t *domain.Task, reason string) string {
	msg := fmt.Sprintf("❌ <b>%s</b> #%d was rejected.", esc(t.Title), t.ID)
	if reason != "" {
		msg += "\nReason: " + esc(reason)
	}
	return msg
}

// DelegationRequested asks the target to take over a task.
func DelegationRequested(t *domain.Task, from, reason string) string {
	msg := fmt.Sprintf("🔁 %s asks you to take over <b>%s</b> #%d.", esc(nonEmpty(from, "A colleague")), esc(t.Title), t.ID)
	if reason != "" {
		msg += "\nReason: " + esc(reason)
	}
	return msg
}

// DelegationAccepted informs the requester.
func DelegationAccepted(t *domain.Task, to string) string {
	return fmt.Sprintf("✅ %s accepted <b>%s</b> #%d.", esc(nonEmpty(to, "Your colleague")), esc(t.Title), t.ID)
}

// DelegationRejected informs the requester.
func DelegationRejected(t *domain.Task, to, reason string) string {
	msg := fmt.Sprintf("❌ %s declined <b>%s</b> #%d.", esc(nonEmpty(to, "Your colleague")), esc(t.Title), t.ID)
	if reason != "" {
		msg += "\nReason: " + esc(reason)
	}
	return msg
}

// DelegationCancelled informs the target that the request was withdrawn.
func DelegationCancelled(t *domain.Task, from string) string {
	return fmt.Sprintf("↩️ %s withdrew the delegation of <b>%s</b> #%d.", esc(nonEmpty(from, "The requester")), esc(t.Title), t.ID)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
