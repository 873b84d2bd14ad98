package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/backend/backendtest"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
)

func TestShiftOpenWithTwoDealerships(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{
		CurrentUserFn: func(string) (*domain.User, error) {
			return &domain.User{
				ID:          7,
				Dealership:  &domain.Dealership{ID: 1, Name: "North"},
				Dealerships: []domain.Dealership{{ID: 1, Name: "North"}, {ID: 2, Name: "South"}},
			}, nil
		},
	}
	e, rec, _ := newEngine(gw)
	rec.Files["p1"] = []byte("jpeg")
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, ShiftOpenData{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	expectStep(t, e, FlowShiftOpen, StepSelectDealership)
	last, _ := rec.Last(chatID)
	if len(last.Inline) != 3 {
		t.Errorf("Expected 2 dealerships and cancel, got %d rows", len(last.Inline))
	}

	mustAdvance(t, e, tr, TextInput("South", 0))
	expectStep(t, e, FlowShiftOpen, StepSelectDealership)

	mustAdvance(t, e, tr, button(render.ActShiftDealer, 9))
	expectStep(t, e, FlowShiftOpen, StepSelectDealership)

	mustAdvance(t, e, tr, button(render.ActShiftDealer, 2))
	st := expectStep(t, e, FlowShiftOpen, StepAwaitOpeningPhoto)
	if d := st.Data.(ShiftOpenData); d.DealershipID != 2 {
		t.Errorf("Expected dealership 2, got %d", d.DealershipID)
	}

	mustAdvance(t, e, tr, MediaInput(&chat.Attachment{Kind: chat.AttachmentDocument, FileID: "p1"}))
	expectStep(t, e, FlowShiftOpen, StepAwaitOpeningPhoto)
	if got := rec.LastText(chatID); got != render.PhotoRequired {
		t.Errorf("Expected photo reprompt, got %q", got)
	}

	mustAdvance(t, e, tr, photo("p1"))
	expectIdle(t, e)
	if !gw.Called("OpenShift 7 2") {
		t.Errorf("Expected OpenShift for dealership 2, calls %v", gw.Calls())
	}
	if !rec.Contains(chatID, "Shift opened") {
		t.Error("Expected shift confirmation")
	}
}

func TestShiftOpenSingleDealershipSkipsSelection(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{
		CurrentUserFn: func(string) (*domain.User, error) {
			return &domain.User{DealershipID: 4}, nil
		},
	}
	e, _, _ := newEngine(gw)
	if err := e.Start(context.Background(), turn(domain.RoleEmployee), ShiftOpenData{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st := expectStep(t, e, FlowShiftOpen, StepAwaitOpeningPhoto)
	if d := st.Data.(ShiftOpenData); d.DealershipID != 4 {
		t.Errorf("Expected dealership 4, got %d", d.DealershipID)
	}
}

func TestShiftOpenRefused(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gw   *backendtest.Fake
		want string
	}{
		{
			name: "already open",
			gw: &backendtest.Fake{CurrentShiftFn: func(string) (*domain.Shift, error) {
				return &domain.Shift{ID: 3, Status: "open"}, nil
			}},
			want: render.ShiftAlreadyOpen,
		},
		{
			name: "no dealership",
			gw:   &backendtest.Fake{},
			want: render.ShiftNoDealership,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, rec, _ := newEngine(tt.gw)
			if err := e.Start(context.Background(), turn(domain.RoleEmployee), ShiftOpenData{}); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			expectIdle(t, e)
			if got := rec.LastText(chatID); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestShiftCloseWithoutPhoto(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{}
	e, rec, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, ShiftCloseData{ShiftID: 4}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, TextInput("done", 0))
	expectStep(t, e, FlowShiftClose, StepAwaitClosingPhoto)

	mustAdvance(t, e, tr, button(render.ActShiftCloseNoPic, 4))
	expectIdle(t, e)
	if !gw.Called("CloseShift 4 false") {
		t.Errorf("Expected photo-less close, calls %v", gw.Calls())
	}
	if got := rec.LastText(chatID); got != render.ShiftClosed {
		t.Errorf("Expected close confirmation, got %q", got)
	}
}

func TestShiftCloseWithPhoto(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{}
	e, rec, _ := newEngine(gw)
	rec.Files["p1"] = []byte("jpeg")
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, ShiftCloseData{ShiftID: 4}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, photo("p1"))
	expectIdle(t, e)
	if !gw.Called("CloseShift 4 true") {
		t.Errorf("Expected close with photo, calls %v", gw.Calls())
	}
}

func TestProofFileCeiling(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{}
	e, rec, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)
	for i := 1; i <= 6; i++ {
		rec.Files[fmt.Sprintf("f%d", i)] = []byte("0123456789")
	}

	if err := e.Start(ctx, tr, ProofData{TaskID: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 1; i <= 6; i++ {
		mustAdvance(t, e, tr, photo(fmt.Sprintf("f%d", i)))
	}

	st := expectStep(t, e, FlowProof, StepCollectFiles)
	d := st.Data.(ProofData)
	if len(d.Files) != 5 {
		t.Fatalf("Expected 5 files, got %d", len(d.Files))
	}
	if d.Bytes != 50 {
		t.Errorf("Expected 50 bytes, got %d", d.Bytes)
	}
	if got := rec.LastText(chatID); got != render.ProofTooMany(5) {
		t.Errorf("Expected ceiling message, got %q", got)
	}

	mustAdvance(t, e, tr, button(render.ActProofSubmit, 5))
	expectIdle(t, e)
	if !gw.Called("UpdateTaskStatus 5 pending_review 5") {
		t.Errorf("Expected submission of 5 files, calls %v", gw.Calls())
	}
}

func TestProofSizeCeiling(t *testing.T) {
	t.Parallel()

	e, rec, _ := newEngine(&backendtest.Fake{}, WithProofLimits(5, 15))
	rec.Files["a"] = []byte("0123456789")
	rec.Files["b"] = []byte("0123456789")
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, ProofData{TaskID: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, MediaInput(&chat.Attachment{Kind: chat.AttachmentDocument, FileID: "a", FileName: "a.pdf"}))
	mustAdvance(t, e, tr, MediaInput(&chat.Attachment{Kind: chat.AttachmentDocument, FileID: "b", FileName: "b.pdf"}))

	d := expectStep(t, e, FlowProof, StepCollectFiles).Data.(ProofData)
	if len(d.Files) != 1 || d.Files[0].Name != "a.pdf" {
		t.Errorf("Expected only a.pdf, got %+v", d.Files)
	}
	if got := rec.LastText(chatID); got != render.ProofTooLarge(15) {
		t.Errorf("Expected size message, got %q", got)
	}
}

func TestProofSubmitEmpty(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{}
	e, rec, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, ProofData{TaskID: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, button(render.ActProofSubmit, 5))
	expectStep(t, e, FlowProof, StepCollectFiles)
	if got := rec.LastText(chatID); got != render.ProofEmpty {
		t.Errorf("Expected empty proof message, got %q", got)
	}
	if len(gw.Calls()) != 0 {
		t.Errorf("Expected no backend calls, got %v", gw.Calls())
	}
}

func TestProofSubmitFailureKeepsFiles(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{
		UpdateTaskStatusFn: func(string, int64, string, []backend.File) (*domain.Task, error) {
			return nil, backendtest.Failure(422, "File type not allowed")
		},
	}
	e, rec, _ := newEngine(gw)
	rec.Files["f1"] = []byte("data")
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, ProofData{TaskID: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, photo("f1"))
	mustAdvance(t, e, tr, button(render.ActProofSubmit, 5))

	d := expectStep(t, e, FlowProof, StepCollectFiles).Data.(ProofData)
	if len(d.Files) != 1 {
		t.Errorf("Expected files to be kept, got %d", len(d.Files))
	}
	if !strings.Contains(rec.LastText(chatID), "File type not allowed") {
		t.Errorf("Expected backend message, got %q", rec.LastText(chatID))
	}
}

func TestRejectRequiresText(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{}
	e, rec, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleManager)

	if err := e.Start(ctx, tr, RejectData{ResponseID: 3}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	mustAdvance(t, e, tr, TextInput("   ", 0))
	expectStep(t, e, FlowReject, StepAwaitRejectReason)
	if got := rec.LastText(chatID); got != render.ReasonRequired {
		t.Errorf("Expected reason reprompt, got %q", got)
	}

	mustAdvance(t, e, tr, photo("x"))
	expectStep(t, e, FlowReject, StepAwaitRejectReason)

	mustAdvance(t, e, tr, TextInput("blurry photo", 0))
	expectIdle(t, e)
	if !gw.Called("RejectResponse 3 blurry photo") {
		t.Errorf("Expected RejectResponse, calls %v", gw.Calls())
	}
	if got := rec.LastText(chatID); got != render.Rejected {
		t.Errorf("Expected rejection confirmation, got %q", got)
	}
}

func TestRejectAll(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{}
	e, _, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleOwner)

	if err := e.Start(ctx, tr, RejectData{All: true, TaskID: 42}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, TextInput("redo", 0))
	if !gw.Called("RejectAllResponses 42 redo") {
		t.Errorf("Expected RejectAllResponses, calls %v", gw.Calls())
	}
}

func TestDelegateExcludesSelfAndAssignees(t *testing.T) {
	t.Parallel()

	var gotReason string
	gw := &backendtest.Fake{
		TaskFn: func(_ string, id int64) (*domain.Task, error) {
			return &domain.Task{
				ID:           id,
				Title:        "Wash cars",
				DealershipID: 3,
				Assignments:  []domain.Assignment{{UserID: 7}, {UserID: 8}},
			}, nil
		},
		UsersFn: func(_ string, f backend.UserFilter) ([]domain.User, error) {
			if f.Role != "employee" || f.DealershipID != 3 {
				t.Errorf("Unexpected user filter %+v", f)
			}
			return []domain.User{{ID: 7}, {ID: 8}, {ID: 9}, {ID: 10}}, nil
		},
		CreateDelegationFn: func(_ string, taskID, toUserID int64, reason string) (*domain.Delegation, error) {
			gotReason = reason
			return &domain.Delegation{ID: 1, TaskID: taskID}, nil
		},
	}
	e, rec, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, DelegateData{TaskID: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	d := expectStep(t, e, FlowDelegate, StepSelectUser).Data.(DelegateData)
	if len(d.Candidates) != 2 || d.Candidates[0].ID != 9 || d.Candidates[1].ID != 10 {
		t.Fatalf("Expected candidates 9 and 10, got %+v", d.Candidates)
	}

	mustAdvance(t, e, tr, button(render.ActDelegateUser, 5, 8))
	expectStep(t, e, FlowDelegate, StepSelectUser)

	mustAdvance(t, e, tr, button(render.ActDelegateUser, 5, 9))
	expectStep(t, e, FlowDelegate, StepAwaitDelegateReason)

	mustAdvance(t, e, tr, button(render.ActDelegateSkip, 5, 9))
	expectIdle(t, e)
	if gotReason != "" {
		t.Errorf("Expected empty reason, got %q", gotReason)
	}
	if got := rec.LastText(chatID); got != render.DelegationSent {
		t.Errorf("Expected delegation confirmation, got %q", got)
	}
}

func TestDelegateWithReason(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{
		UsersFn: func(string, backend.UserFilter) ([]domain.User, error) {
			return []domain.User{{ID: 9}}, nil
		},
	}
	e, _, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, DelegateData{TaskID: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, button(render.ActDelegateUser, 5, 9))
	mustAdvance(t, e, tr, TextInput("sick leave", 0))
	if !gw.Called("CreateDelegation 5 9 sick leave") {
		t.Errorf("Expected delegation with reason, calls %v", gw.Calls())
	}
}

func TestDelegateWithoutCandidates(t *testing.T) {
	t.Parallel()

	e, rec, _ := newEngine(&backendtest.Fake{})
	if err := e.Start(context.Background(), turn(domain.RoleEmployee), DelegateData{TaskID: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	expectIdle(t, e)
	if got := rec.LastText(chatID); got != render.DelegateNoUsers {
		t.Errorf("Expected no candidates message, got %q", got)
	}
}

func TestDeclineDelegation(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{}
	e, rec, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleEmployee)

	if err := e.Start(ctx, tr, DeclineData{DelegationID: 12}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, TextInput("", 0))
	expectStep(t, e, FlowDeclineDelegation, StepAwaitDeclineReason)

	mustAdvance(t, e, tr, TextInput("too busy", 0))
	expectIdle(t, e)
	if !gw.Called("RejectDelegation 12 too busy") {
		t.Errorf("Expected RejectDelegation, calls %v", gw.Calls())
	}
	if got := rec.LastText(chatID); got != render.DelegationDecline {
		t.Errorf("Expected decline confirmation, got %q", got)
	}
}

func TestBackendFailureEndsFlow(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{
		ReviewFn: func(string, int64, string) error {
			return backendtest.Failure(409, "Already reviewed")
		},
	}
	e, rec, _ := newEngine(gw)
	ctx := context.Background()
	tr := turn(domain.RoleManager)

	if err := e.Start(ctx, tr, RejectData{ResponseID: 3}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mustAdvance(t, e, tr, TextInput("no", 0))
	expectIdle(t, e)
	if !strings.Contains(rec.LastText(chatID), "Already reviewed") {
		t.Errorf("Expected backend message, got %q", rec.LastText(chatID))
	}
}
