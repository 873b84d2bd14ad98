package render

import (
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
)

// Main menu labels. The router matches incoming text against these.
const (
	MenuMyTasks       = "📋 My tasks"
	MenuTasks         = "📋 Tasks"
	MenuMyShift       = "🕐 My shift"
	MenuShifts        = "🕐 Shifts"
	MenuPendingReview = "🔍 Pending review"
	MenuOverdue       = "⏰ Overdue"
	MenuDelegations   = "🔁 Delegations"
	MenuDashboard     = "📊 Dashboard"
	MenuLogout        = "🚪 Logout"
)

// menuItem ties a label to the capability that makes it visible.
type menuItem struct {
	label  string
	action domain.Action
}

// A label appears when the role has the action. Order is display order.
var menuItems = []menuItem{
	{MenuMyTasks, domain.ActionViewOwnTasks},
	{MenuTasks, domain.ActionViewAllTasks},
	{MenuPendingReview, domain.ActionReview},
	{MenuOverdue, domain.ActionViewOverdue},
	{MenuMyShift, domain.ActionManageOwnShift},
	{MenuShifts, domain.ActionViewAllShifts},
	{MenuDelegations, domain.ActionDelegate},
	{MenuDashboard, domain.ActionViewDashboard},
}

// MenuAction returns the capability a menu label needs. ok is false for
// text that is not a menu label; Logout needs no capability.
func MenuAction(label string) (action domain.Action, ok bool) {
	for _, it := range menuItems {
		if it.label == label {
			return it.action, true
		}
	}
	return "", label == MenuLogout
}

// MainMenu lays out the reply keyboard for role, two buttons per row.
func MainMenu(role domain.Role) [][]string {
	var labels []string
	for _, it := range menuItems {
		if domain.Can(role, it.action) {
			labels = append(labels, it.label)
		}
	}
	labels = append(labels, MenuLogout)

	var rows [][]string
	for i := 0; i < len(labels); i += 2 {
		end := i + 2
		if end > len(labels) {
			end = len(labels)
		}
		rows = append(rows, labels[i:end])
	}
	return rows
}

// WithMenu attaches the role menu to msg.
func WithMenu(msg chat.Message, role domain.Role) chat.Message {
	msg.Menu = MainMenu(role)
	msg.Inline = nil
	return msg
}
