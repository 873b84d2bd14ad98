package domain

// Delegation statuses.
const (
	DelegationPending   = "pending"
	DelegationAccepted  = "accepted"
	DelegationRejected  = "rejected"
	DelegationCancelled = "cancelled"
)

// Delegation is a request to hand a task over to another user.
type Delegation struct {
	ID       int64  `json:"id"`
	TaskID   int64  `json:"task_id"`
	Task     *Task  `json:"task,omitempty"`
	FromUser *User  `json:"from_user,omitempty"`
	ToUser   *User  `json:"to_user,omitempty"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
}

// Dashboard carries the summary counts shown to every role.
type Dashboard struct {
	TotalTasks     int `json:"total_tasks"`
	PendingTasks   int `json:"pending_tasks"`
	CompletedToday int `json:"completed_today"`
	OverdueTasks   int `json:"overdue_tasks"`
	PendingReview  int `json:"pending_review"`
	OpenShifts     int `json:"open_shifts"`
	LateShifts     int `json:"late_shifts"`
}
