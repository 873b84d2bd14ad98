package domain

import (
	"strings"
	"time"
)

// Task statuses used by the backend.
const (
	StatusPending       = "pending"
	StatusAcknowledged  = "acknowledged"
	StatusPendingReview = "pending_review"
	StatusCompleted     = "completed"
	StatusCompletedLate = "completed_late"
	StatusRejected      = "rejected"
)

// ResponseTypeProof marks tasks that must be completed with proof files.
const ResponseTypeProof = "completion_with_proof"

// Task is a unit of work assigned to one or more users.
type Task struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Comment      string       `json:"comment"`
	Status       string       `json:"status"`
	Priority     string       `json:"priority"`
	ResponseType string       `json:"response_type"`
	Deadline     string       `json:"deadline"`
	DealershipID int64        `json:"dealership_id"`
	Dealership   *Dealership  `json:"dealership,omitempty"`
	Creator      *User        `json:"creator,omitempty"`
	Assignments  []Assignment `json:"assignments,omitempty"`
	Responses    []Response   `json:"responses,omitempty"`
}

// Assignment links a task to a user.
type Assignment struct {
	UserID int64 `json:"user_id"`
	User   *User `json:"user,omitempty"`
}

// Response is one assignee's submission for review.
type Response struct {
	ID     int64   `json:"id"`
	Status string  `json:"status"`
	UserID int64   `json:"user_id"`
	User   *User   `json:"user,omitempty"`
	Proofs []Proof `json:"proofs,omitempty"`
}

// Proof is an uploaded file attached to a response.
type Proof struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"original_filename"`
	MIMEType string `json:"mime_type"`
}

// DeadlineAt parses the deadline. ok is false when the task has none or
// the value is unparsable.
func (t *Task) DeadlineAt() (at time.Time, ok bool) {
	raw := strings.TrimSpace(t.Deadline)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if at, err := time.Parse(layout, raw); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}

// RequiresProof reports whether completion needs uploaded files.
func (t *Task) RequiresProof() bool {
	return t.ResponseType == ResponseTypeProof
}

// IsCompleted reports whether the task reached a terminal done status.
func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted || t.Status == StatusCompletedLate
}

// IsOpen reports whether the task still awaits work from its assignee.
func (t *Task) IsOpen() bool {
	return t.Status == StatusPending || t.Status == StatusAcknowledged
}

// AssigneeIDs returns the ids of every assigned user.
func (t *Task) AssigneeIDs() map[int64]bool {
	ids := make(map[int64]bool, len(t.Assignments))
	for _, a := range t.Assignments {
		switch {
		case a.UserID != 0:
			ids[a.UserID] = true
		case a.User != nil:
			ids[a.User.ID] = true
		}
	}
	return ids
}

// PendingResponses returns responses still awaiting review.
func (t *Task) PendingResponses() []Response {
	var out []Response
	for _, r := range t.Responses {
		if r.Status == StatusPendingReview {
			out = append(out, r)
		}
	}
	return out
}
