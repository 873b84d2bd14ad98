// Package render turns domain values into chat messages and keyboards.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/taskmate/tmbot/internal/domain"
)

func esc(s string) string { return html.EscapeString(s) }

// Help is shown for /start and /help.
const Help = "👋 <b>TaskMate bot</b>\n\n" +
	"Sign in with <code>/login &lt;login&gt; &lt;password&gt;</code> or just /login.\n\n" +
	"/tasks - your tasks\n/shift - your shift\n/delegations - delegations\n/cancel - abort the current action\n/logout - sign out"

// Static texts.
const (
	LoginPrompt       = "🔐 Send your login and password separated by a space, e.g. <code>ivanov s3cret</code>."
	LoginFormat       = "Please send exactly two words: login and password."
	AlreadyLoggedIn   = "You are already signed in. Use /logout first to switch accounts."
	LoginInvalid      = "❌ Wrong login or password."
	LoginThrottled    = "⏳ Too many attempts. Try again in a few minutes."
	LoginFailed       = "❌ Sign in failed. Try again later."
	LoggedOut         = "👋 You have been signed out."
	NotSignedIn       = "🔐 Please sign in first with /login."
	SessionExpired    = "🔐 Your session has expired. Please sign in again with /login."
	Forbidden         = "⛔ This action is not available for your role."
	RateLimited       = "⏳ Too many requests. Try again in a minute."
	ActionExpired     = "This button is no longer active."
	Cancelled         = "❌ Cancelled."
	NothingToCancel   = "Nothing to cancel."
	UnknownInput      = "I did not understand that. Use the menu below."
	NoTasks           = "✅ No tasks here."
	NoShifts          = "No shifts found."
	NoDelegations     = "No delegations."
	ShiftNone         = "You have no open shift."
	ShiftAlreadyOpen  = "You already have an open shift."
	ShiftNoDealership = "❌ You are not attached to any dealership. Contact your manager."
	ShiftSelectDealer = "🏢 Choose the dealership for this shift:"
	ShiftAwaitPhoto   = "📸 Send a photo of your workplace to open the shift."
	ShiftClosePhoto   = "📸 Send a closing photo, or close without one."
	ShiftClosed       = "✅ Shift closed."
	PhotoRequired     = "Please send a photo."
	ProofEmpty        = "Attach at least one file before submitting."
	ProofSubmitted    = "✅ Proof submitted for review."
	ReasonRequired    = "Please type a reason as text."
	Rejected          = "❌ Rejected. The assignee has been notified."
	RejectedAll       = "❌ All pending responses rejected."
	Approved          = "✅ Approved."
	ApprovedAll       = "✅ All pending responses approved."
	DelegationSent    = "📨 Delegation request sent."
	DelegationAccept  = "✅ Delegation accepted. The task is yours now."
	DelegationDecline = "Delegation declined."
	DelegationReason  = "✏️ Type why you are declining this delegation."
	DelegationRevoked = "Delegation cancelled."
	DelegateNoUsers   = "There is nobody available to delegate this task to."
	DelegateReason    = "✏️ Type a reason for the delegation, or skip."
	Acknowledged      = "👍 Task acknowledged."
	Completed         = "✅ Task completed."
	CompleteConfirm   = "Mark this task as completed?"
	ReviewNone        = "Nothing waiting for review."
)

// LoginSuccess greets a freshly signed in user.
func LoginSuccess(s *domain.Session) string {
	return fmt.Sprintf("✅ Signed in as <b>%s</b> (%s).", esc(s.FullName), esc(string(s.Role)))
}

// GenericError surfaces a backend message, or a fallback.
func GenericError(backendMessage string) string {
	if backendMessage == "" {
		return "❌ Something went wrong. Try again later."
	}
	return "❌ " + esc(backendMessage)
}

// ProofPrompt reports progress while files are collected.
func ProofPrompt(count, maxFiles int, totalBytes, maxBytes int64) string {
	if count == 0 {
		return fmt.Sprintf("📎 Send up to %d photos, videos or documents (%s total), then press Submit.",
			maxFiles, humanBytes(maxBytes))
	}
	return fmt.Sprintf("📎 %d/%d files, %s of %s. Send more or press Submit.",
		count, maxFiles, humanBytes(totalBytes), humanBytes(maxBytes))
}

// ProofTooMany is shown when the file count ceiling is hit.
func ProofTooMany(maxFiles int) string {
	return fmt.Sprintf("⚠️ At most %d files. Submit what you have or cancel.", maxFiles)
}

// ProofTooLarge is shown when a file would exceed the size ceiling.
func ProofTooLarge(maxBytes int64) string {
	return fmt.Sprintf("⚠️ Files may not exceed %s in total. This one was not added.", humanBytes(maxBytes))
}

// RejectPrompt asks the reviewer for a reason.
func RejectPrompt(all bool) string {
	if all {
		return "✏️ Type the reason for rejecting all pending responses."
	}
	return "✏️ Type the reason for rejecting this response."
}

// DelegatePickUser asks for the delegation target.
func DelegatePickUser(t *domain.Task) string {
	return fmt.Sprintf("👥 Who should take over <b>%s</b>?", esc(t.Title))
}

// ShiftOpened confirms a new shift.
func ShiftOpened(s *domain.Shift) string {
	msg := "✅ Shift opened."
	if s.IsLate() {
		msg += fmt.Sprintf(" You are %d min late.", s.LateMinutes)
	}
	return msg
}

// TaskCard is the detailed view of a task.
func TaskCard(t *domain.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 <b>%s</b> #%d\n", esc(t.Title), t.ID)
	if t.Description != "" {
		fmt.Fprintf(&b, "%s\n", esc(t.Description))
	}
	fmt.Fprintf(&b, "\nStatus: %s", statusLabel(t.Status))
	if at, ok := t.DeadlineAt(); ok {
		fmt.Fprintf(&b, "\nDeadline: %s", at.UTC().Format("02.01.2006 15:04 UTC"))
	}
	if t.Dealership != nil && t.Dealership.Name != "" {
		fmt.Fprintf(&b, "\nDealership: %s", esc(t.Dealership.Name))
	}
	if t.Creator != nil {
		fmt.Fprintf(&b, "\nFrom: %s", esc(t.Creator.DisplayName()))
	}
	if t.RequiresProof() {
		b.WriteString("\n📎 Proof required")
	}
	return b.String()
}

// TaskLine is a compact list entry.
func TaskLine(t *domain.Task) string {
	line := fmt.Sprintf("#%d %s (%s)", t.ID, esc(t.Title), statusLabel(t.Status))
	if at, ok := t.DeadlineAt(); ok {
		line += " ⏰ " + at.UTC().Format("02.01 15:04")
	}
	return line
}

// TaskList renders a titled list.
func TaskList(title string, tasks []domain.Task) string {
	if len(tasks) == 0 {
		return NoTasks
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", esc(title))
	for i := range tasks {
		b.WriteString("\n")
		b.WriteString(TaskLine(&tasks[i]))
	}
	return b.String()
}

// ShiftCard describes a shift.
func ShiftCard(s *domain.Shift) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🕐 Shift #%d (%s)", s.ID, esc(s.Status))
	if s.User != nil {
		fmt.Fprintf(&b, "\n%s", esc(s.User.DisplayName()))
	}
	if s.Dealership != nil && s.Dealership.Name != "" {
		fmt.Fprintf(&b, "\nDealership: %s", esc(s.Dealership.Name))
	}
	if s.ShiftStart != "" {
		fmt.Fprintf(&b, "\nStarted: %s", esc(s.ShiftStart))
	}
	if s.ShiftEnd != "" {
		fmt.Fprintf(&b, "\nEnded: %s", esc(s.ShiftEnd))
	}
	if s.IsLate() {
		fmt.Fprintf(&b, "\n⚠️ Late by %d min", s.LateMinutes)
	}
	return b.String()
}

// ShiftList renders several shifts.
func ShiftList(shifts []domain.Shift) string {
	if len(shifts) == 0 {
		return NoShifts
	}
	parts := make([]string, len(shifts))
	for i := range shifts {
		parts[i] = ShiftCard(&shifts[i])
	}
	return strings.Join(parts, "\n\n")
}

// DelegationCard describes a delegation.
func DelegationCard(d *domain.Delegation) string {
	var b strings.Builder
	title := fmt.Sprintf("task #%d", d.TaskID)
	if d.Task != nil && d.Task.Title != "" {
		title = d.Task.Title
	}
	fmt.Fprintf(&b, "🔁 <b>%s</b> (%s)", esc(title), esc(d.Status))
	if d.FromUser != nil {
		fmt.Fprintf(&b, "\nFrom: %s", esc(d.FromUser.DisplayName()))
	}
	if d.ToUser != nil {
		fmt.Fprintf(&b, "\nTo: %s", esc(d.ToUser.DisplayName()))
	}
	if d.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", esc(d.Reason))
	}
	return b.String()
}

// ReviewCard shows one response awaiting review.
func ReviewCard(t *domain.Task, r *domain.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 <b>%s</b> #%d", esc(t.Title), t.ID)
	if r.User != nil {
		fmt.Fprintf(&b, "\nSubmitted by %s", esc(r.User.DisplayName()))
	}
	for _, p := range r.Proofs {
		name := p.Filename
		if name == "" {
			name = "file"
		}
		fmt.Fprintf(&b, "\n📎 <a href=\"%s\">%s</a>", esc(p.URL), esc(name))
	}
	return b.String()
}

// Dashboard renders summary counts.
func Dashboard(d *domain.Dashboard) string {
	return fmt.Sprintf("📊 <b>Dashboard</b>\n\nTasks: %d\nPending: %d\nCompleted today: %d\nOverdue: %d\nAwaiting review: %d\nOpen shifts: %d\nLate shifts: %d",
		d.TotalTasks, d.PendingTasks, d.CompletedToday, d.OverdueTasks, d.PendingReview, d.OpenShifts, d.LateShifts)
}

// DeadlineWarning is sent once when a deadline is near.
func DeadlineWarning(t *domain.Task, minutes int) string {
	return fmt.Sprintf("⏰ <b>%s</b> #%d is due in %d min.", esc(t.Title), t.ID, minutes)
}

// Overdue is sent once after a deadline passes on an open task.
func Overdue(t *domain.Task) string {
	return fmt.Sprintf("🔴 <b>%s</b> #%d is overdue.", esc(t.Title), t.ID)
}

func statusLabel(s string) string {
	switch s {
	case domain.StatusPending:
		return "new"
	case domain.StatusAcknowledged:
		return "in progress"
	case domain.StatusPendingReview:
		return "awaiting review"
	case domain.StatusCompleted:
		return "done"
	case domain.StatusCompletedLate:
		return "done late"
	case domain.StatusRejected:
		return "rejected"
	}
	return esc(s)
}

func humanBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib {
		return fmt.Sprintf("%.1f MiB", float64(n)/mib)
	}
	return fmt.Sprintf("%d KiB", n/1024)
}

// MinutesUntil floors the remaining time to whole minutes.
func MinutesUntil(d time.Duration) int {
	return int(d / time.Minute)
}
