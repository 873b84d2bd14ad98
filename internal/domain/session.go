// Package domain contains core domain types for the task notification bot.
package domain

// Session binds a chat to a backend credential.
type Session struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	Login    string `json:"login"`
}

// Can reports whether the session's role grants action.
func (s *Session) Can(action Action) bool {
	if s == nil {
		return false
	}
	return Can(s.Role, action)
}

// Category partitions the dedup ledger.
type Category string

const (
	CategoryTask       Category = "tasks"
	CategoryDeadline   Category = "deadlines"
	CategoryOverdue    Category = "overdue"
	CategoryReview     Category = "reviews"
	CategoryDelegation Category = "delegations"
)

// Categories lists every ledger category, used when clearing a chat.
var Categories = []Category{
	CategoryTask,
	CategoryDeadline,
	CategoryOverdue,
	CategoryReview,
	CategoryDelegation,
}
