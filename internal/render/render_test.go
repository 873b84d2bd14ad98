package render

import (
	"strings"
	"testing"

	"github.com/taskmate/tmbot/internal/domain"
)

func flatten(rows [][]string) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func TestMainMenuPerRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role domain.Role
		want []string
	}{
		{domain.RoleEmployee, []string{MenuMyTasks, MenuMyShift, MenuDelegations, MenuDashboard, MenuLogout}},
		{domain.RoleObserver, []string{MenuTasks, MenuShifts, MenuDashboard, MenuLogout}},
		{domain.RoleManager, []string{MenuTasks, MenuPendingReview, MenuOverdue, MenuShifts, MenuDashboard, MenuLogout}},
		{domain.RoleOwner, []string{MenuTasks, MenuPendingReview, MenuOverdue, MenuShifts, MenuDashboard, MenuLogout}},
	}

	for _, tt := range tests {
		got := flatten(MainMenu(tt.role))
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("%s: expected %v, got %v", tt.role, tt.want, got)
		}
	}
}

func TestMenuAction(t *testing.T) {
	t.Parallel()

	if a, ok := MenuAction(MenuPendingReview); !ok || a != domain.ActionReview {
		t.Errorf("Expected review action, got %q %v", a, ok)
	}
	if _, ok := MenuAction(MenuLogout); !ok {
		t.Error("Expected logout to be a menu label")
	}
	if _, ok := MenuAction("hello"); ok {
		t.Error("Expected free text not to be a menu label")
	}
}

func TestTaskActions(t *testing.T) {
	t.Parallel()

	pending := &domain.Task{ID: 1, Status: domain.StatusPending}
	kb := TaskActions(pending)
	if len(kb) != 3 || kb[0][0].Data != "ack:1" || kb[1][0].Data != "complete_confirm:1" || kb[2][0].Data != "dlg_start:1" {
		t.Errorf("Unexpected pending keyboard %+v", kb)
	}

	proof := &domain.Task{ID: 2, Status: domain.StatusAcknowledged, ResponseType: domain.ResponseTypeProof}
	kb = TaskActions(proof)
	if len(kb) != 2 || kb[0][0].Data != "proof_start:2" {
		t.Errorf("Unexpected proof keyboard %+v", kb)
	}

	done := &domain.Task{ID: 3, Status: domain.StatusCompleted}
	if kb := TaskActions(done); len(kb) != 0 {
		t.Errorf("Expected no actions on completed task, got %+v", kb)
	}
}

func TestDelegateUsers(t *testing.T) {
	t.Parallel()

	kb := DelegateUsers(42, []domain.User{{ID: 7, FullName: "Ann"}, {ID: 8, Login: "bob"}})
	if len(kb) != 3 {
		t.Fatalf("Expected 2 users plus cancel, got %d rows", len(kb))
	}
	if kb[0][0].Data != "dlg_user:42:7" || kb[1][0].Text != "bob" || kb[2][0].Data != "dlg_cancel_flow:42" {
		t.Errorf("Unexpected keyboard %+v", kb)
	}
}

func TestMessagesEscapeHTML(t *testing.T) {
	t.Parallel()

	task := &domain.Task{ID: 5, Title: "<b>fix</b> & ship"}
	got := TaskRejected(task, "needs <more>")
	if strings.Contains(got, "<b>fix") || !strings.Contains(got, "&lt;more&gt;") {
		t.Errorf("Expected escaped output, got %q", got)
	}
	if got := DeadlineWarning(task, 12); !strings.Contains(got, "12 min") {
		t.Errorf("Expected minutes in warning, got %q", got)
	}
}

func TestProofPrompt(t *testing.T) {
	t.Parallel()

	if got := ProofPrompt(0, 5, 0, 50<<20); !strings.Contains(got, "50.0 MiB") {
		t.Errorf("Unexpected empty prompt %q", got)
	}
	if got := ProofPrompt(2, 5, 3<<20, 50<<20); !strings.Contains(got, "2/5") {
		t.Errorf("Unexpected progress prompt %q", got)
	}
}
