package bot

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/backend/backendtest"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/chat/chattest"
	"github.com/taskmate/tmbot/internal/conversation"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/identity"
	"github.com/taskmate/tmbot/internal/render"
	"github.com/taskmate/tmbot/internal/store"
)

const chatID = int64(100)

type harness struct {
	router *Router
	engine *conversation.Engine
	gw     *backendtest.Fake
	rec    *chattest.Recorder
	store  *store.MemoryStore
}

func newHarness(gw *backendtest.Fake) *harness {
	st := store.NewMemory()
	rec := chattest.NewRecorder()
	ids := identity.NewService(st, st, gw, time.Hour, nil)
	engine := conversation.NewEngine(gw, ids, rec)
	return &harness{
		router: NewRouter(ids, engine, gw, rec, nil),
		engine: engine,
		gw:     gw,
		rec:    rec,
		store:  st,
	}
}

func (h *harness) signIn(t *testing.T, role domain.Role) {
	t.Helper()
	s := &domain.Session{Token: "tok", UserID: 7, FullName: "Jane", Role: role}
	if err := h.store.PutSession(context.Background(), chatID, s, time.Hour); err != nil {
		t.Fatalf("PutSession() error = %v", err)
	}
}

func (h *harness) text(s string, messageID int) {
	h.router.Handle(context.Background(), chat.Update{ChatID: chatID, MessageID: messageID, Text: s})
}

func (h *harness) tap(a chat.Action) {
	h.router.Handle(context.Background(), chat.Update{
		ChatID:   chatID,
		Callback: &chat.Callback{ID: "cb", Data: a.String(), MessageID: 50},
	})
}

func (h *harness) session(t *testing.T) *domain.Session {
	t.Helper()
	s, err := h.store.GetSession(context.Background(), chatID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	return s
}

func TestHelpWithoutSession(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.text("/start", 1)

	last, ok := h.rec.Last(chatID)
	if !ok || last.Text != render.Help {
		t.Fatalf("Expected help text, got %q", last.Text)
	}
	if len(last.Menu) != 0 {
		t.Error("Expected no menu without a session")
	}
}

func TestInlineLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.text("/login jane secret", 5)

	if h.session(t) == nil {
		t.Fatal("Expected session after login")
	}
	if !slices.Contains(h.rec.Deleted(), 5) {
		t.Errorf("Expected credential message deleted, got %v", h.rec.Deleted())
	}
	if !h.gw.Called("Login jane") {
		t.Errorf("Expected login call, got %v", h.gw.Calls())
	}
	if !h.rec.Contains(chatID, "Signed in") {
		t.Error("Expected login confirmation")
	}
}

func TestTwoStepLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.text("/login", 1)
	if got := h.rec.LastText(chatID); got != render.LoginPrompt {
		t.Fatalf("Expected login prompt, got %q", got)
	}
	h.text("jane secret", 2)
	if h.session(t) == nil {
		t.Fatal("Expected session after login")
	}
	if h.engine.Active(chatID) != nil {
		t.Error("Expected auth flow to finish")
	}
}

func TestLoginReplayRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleEmployee)
	h.text("/login jane secret", 5)

	if h.gw.Called("Login jane") {
		t.Error("Expected no backend login for signed in chat")
	}
	if got := h.rec.LastText(chatID); got != render.AlreadyLoggedIn {
		t.Errorf("Expected already signed in, got %q", got)
	}
	if !slices.Contains(h.rec.Deleted(), 5) {
		t.Errorf("Expected credential message deleted, got %v", h.rec.Deleted())
	}
}

func TestMenuWithoutSession(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.text(render.MenuMyTasks, 1)
	if got := h.rec.LastText(chatID); got != render.NotSignedIn {
		t.Errorf("Expected sign in prompt, got %q", got)
	}
	if len(h.gw.Calls()) != 0 {
		t.Errorf("Expected no backend calls, got %v", h.gw.Calls())
	}
}

func TestMenuChecksCapability(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleEmployee)
	h.text(render.MenuPendingReview, 1)

	if got := h.rec.LastText(chatID); got != render.Forbidden {
		t.Errorf("Expected forbidden, got %q", got)
	}
	if h.gw.Called("Tasks") {
		t.Error("Expected guard to run before the backend call")
	}
}

func TestMyTasksFiltersByUser(t *testing.T) {
	t.Parallel()

	var got backend.TaskFilter
	h := newHarness(&backendtest.Fake{
		TasksFn: func(_ string, f backend.TaskFilter) ([]domain.Task, error) {
			got = f
			return []domain.Task{{ID: 1, Title: "Wash cars", Status: domain.StatusPending}}, nil
		},
	})
	h.signIn(t, domain.RoleEmployee)
	h.text(render.MenuMyTasks, 1)

	if got.AssignedTo != 7 {
		t.Errorf("Expected tasks filtered by user 7, got %+v", got)
	}
	last, _ := h.rec.Last(chatID)
	if len(last.Inline) != 1 || last.Inline[0][0].Data != render.ActTaskDetail+":1" {
		t.Errorf("Expected task detail button, got %+v", last.Inline)
	}
}

func TestUnauthorizedTearsDownSession(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{
		DashboardFn: func(string) (*domain.Dashboard, error) {
			return nil, backendtest.Unauthorized()
		},
	})
	h.signIn(t, domain.RoleManager)
	ctx := context.Background()
	if err := h.store.MarkDelivered(ctx, chatID, domain.CategoryTask, "1"); err != nil {
		t.Fatalf("MarkDelivered() error = %v", err)
	}
	h.text(render.MenuDashboard, 1)

	if h.session(t) != nil {
		t.Error("Expected session to be deleted")
	}
	if seen, _ := h.store.WasDelivered(ctx, chatID, domain.CategoryTask, "1"); seen {
		t.Error("Expected ledger to be cleared")
	}
	if got := h.rec.LastText(chatID); got != render.SessionExpired {
		t.Errorf("Expected session expired message, got %q", got)
	}
}

func TestUnauthorizedInsideFlowResetsIt(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{
		ReviewFn: func(string, int64, string) error { return backendtest.Unauthorized() },
	})
	h.signIn(t, domain.RoleManager)
	h.tap(chat.NewAction(render.ActReviewReject, 3))
	if h.engine.Active(chatID) == nil {
		t.Fatal("Expected reject flow to start")
	}
	h.text("blurry", 2)

	if h.engine.Active(chatID) != nil {
		t.Error("Expected flow to be reset")
	}
	if h.session(t) != nil {
		t.Error("Expected session to be deleted")
	}
}

func TestRejectFlowThroughRouter(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleManager)
	h.tap(chat.NewAction(render.ActReviewReject, 3))
	h.text("/tasks", 2)
	if h.engine.Active(chatID) == nil {
		t.Fatal("Expected command to leave the flow in place")
	}
	h.text("blurry photo", 3)

	if !h.gw.Called("RejectResponse 3 blurry photo") {
		t.Errorf("Expected rejection, calls %v", h.gw.Calls())
	}
}

func TestCallbackApprove(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleManager)
	h.tap(chat.NewAction(render.ActReviewApprove, 3))

	if !h.gw.Called("ApproveResponse 3") {
		t.Errorf("Expected approval, calls %v", h.gw.Calls())
	}
	if answers := h.rec.Answers(); len(answers) != 1 || answers[0] != render.Approved {
		t.Errorf("Expected approval toast, got %v", answers)
	}
}

func TestCallbackRequiresCapability(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleObserver)
	h.tap(chat.NewAction(render.ActReviewApproveAll, 42))

	if h.gw.Called("ApproveAllResponses 42") {
		t.Error("Expected observer to be refused")
	}
	if got := h.rec.LastText(chatID); got != render.Forbidden {
		t.Errorf("Expected forbidden, got %q", got)
	}
}

func TestStaleButtons(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleEmployee)
	h.tap(chat.NewAction(render.ActProofSubmit, 5))
	h.tap(chat.NewAction(render.ActShiftOpenCancel))
	h.router.Handle(context.Background(), chat.Update{ChatID: chatID, Callback: &chat.Callback{ID: "x", Data: "proof_submit:abc"}})

	answers := h.rec.Answers()
	if len(answers) != 3 {
		t.Fatalf("Expected 3 answers, got %v", answers)
	}
	for _, a := range answers {
		if a != render.ActionExpired {
			t.Errorf("Expected expired toast, got %q", a)
		}
	}
}

func TestCancelCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleEmployee)

	h.text("/cancel", 1)
	if got := h.rec.LastText(chatID); got != render.NothingToCancel {
		t.Errorf("Expected nothing to cancel, got %q", got)
	}

	h.tap(chat.NewAction(render.ActProofStart, 5))
	h.text("/cancel", 2)
	if got := h.rec.LastText(chatID); got != render.Cancelled {
		t.Errorf("Expected cancelled, got %q", got)
	}
	if h.engine.Active(chatID) != nil {
		t.Error("Expected no flow after cancel")
	}
}

func TestCompleteProofTaskStartsProofFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{
		TaskFn: func(_ string, id int64) (*domain.Task, error) {
			return &domain.Task{ID: id, ResponseType: domain.ResponseTypeProof}, nil
		},
	})
	h.signIn(t, domain.RoleEmployee)
	h.tap(chat.NewAction(render.ActTaskCompleteYes, 5))

	st := h.engine.Active(chatID)
	if st == nil || st.Flow != conversation.FlowProof {
		t.Fatalf("Expected proof flow, got %+v", st)
	}
	if h.gw.Called("UpdateTaskStatus 5 completed 0") {
		t.Error("Expected no direct completion for proof tasks")
	}
}

func TestCompletePlainTask(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleEmployee)
	h.tap(chat.NewAction(render.ActTaskCompleteYes, 5))

	if !h.gw.Called("UpdateTaskStatus 5 completed 0") {
		t.Errorf("Expected completion, calls %v", h.gw.Calls())
	}
}

func TestDelegationList(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{
		DelegationsFn: func(string, backend.DelegationFilter) ([]domain.Delegation, error) {
			return []domain.Delegation{
				{ID: 1, TaskID: 5, Status: "pending", FromUser: &domain.User{ID: 9}, ToUser: &domain.User{ID: 7}},
				{ID: 2, TaskID: 6, Status: "pending", FromUser: &domain.User{ID: 7}, ToUser: &domain.User{ID: 9}},
			}, nil
		},
	})
	h.signIn(t, domain.RoleEmployee)
	h.text("/delegations", 1)

	msgs := h.rec.To(chatID)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 cards, got %d", len(msgs))
	}
	if got := msgs[0].Inline[0][0].Data; got != render.ActDelegAccept+":1" {
		t.Errorf("Expected accept on incoming, got %q", got)
	}
	if got := msgs[1].Inline[0][0].Data; got != render.ActDelegWithdraw+":2" {
		t.Errorf("Expected withdraw on outgoing, got %q", got)
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	h := newHarness(&backendtest.Fake{})
	h.signIn(t, domain.RoleEmployee)
	h.text(render.MenuLogout, 1)

	if h.session(t) != nil {
		t.Error("Expected session removed")
	}
	last, _ := h.rec.Last(chatID)
	if last.Text != render.LoggedOut || !last.RemoveMenu {
		t.Errorf("Expected logout message removing the menu, got %+v", last)
	}

	h.text("/logout", 2)
	if got := h.rec.LastText(chatID); got != render.NotSignedIn {
		t.Errorf("Expected not signed in, got %q", got)
	}
}
