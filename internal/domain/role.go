package domain

import "strings"

// Role is the backend role of a user.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleOwner    Role = "owner"
	RoleObserver Role = "observer"
)

// ParseRole normalizes a role string. Unknown roles map to employee, the
// least privileged role that can still use the bot.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleManager:
		return RoleManager
	case RoleOwner:
		return RoleOwner
	case RoleObserver:
		return RoleObserver
	default:
		return RoleEmployee
	}
}

// Action is a user-facing capability checked before menus are drawn and
// before backend calls are made.
type Action string

const (
	ActionViewOwnTasks    Action = "view_own_tasks"
	ActionViewAllTasks    Action = "view_all_tasks"
	ActionUpdateTask      Action = "update_task"
	ActionSubmitProof     Action = "submit_proof"
	ActionReview          Action = "review"
	ActionViewOverdue     Action = "view_overdue"
	ActionViewOwnShift    Action = "view_own_shift"
	ActionManageOwnShift  Action = "manage_own_shift"
	ActionViewAllShifts   Action = "view_all_shifts"
	ActionViewDashboard   Action = "view_dashboard"
	ActionDelegate        Action = "delegate"
	ActionRespondDelegate Action = "respond_delegation"
)

var capabilities = map[Role]map[Action]bool{
	RoleEmployee: set(
		ActionViewOwnTasks,
		ActionUpdateTask,
		ActionSubmitProof,
		ActionViewOwnShift,
		ActionManageOwnShift,
		ActionViewDashboard,
		ActionDelegate,
		ActionRespondDelegate,
	),
	RoleObserver: set(
		ActionViewAllTasks,
		ActionViewAllShifts,
		ActionViewDashboard,
	),
	RoleManager: set(
		ActionViewAllTasks,
		ActionReview,
		ActionViewOverdue,
		ActionViewAllShifts,
		ActionViewDashboard,
		ActionRespondDelegate,
	),
	RoleOwner: set(
		ActionViewAllTasks,
		ActionReview,
		ActionViewOverdue,
		ActionViewAllShifts,
		ActionViewDashboard,
		ActionRespondDelegate,
	),
}

// Can reports whether role is allowed to perform action.
func Can(role Role, action Action) bool {
	return capabilities[role][action]
}

func set(actions ...Action) map[Action]bool {
	m := make(map[Action]bool, len(actions))
	for _, a := range actions {
		m[a] = true
	}
	return m
}
