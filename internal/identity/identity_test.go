package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/backend/backendtest"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/store"
)

func newService(gw backend.Gateway) (*Service, *store.MemoryStore) {
	st := store.NewMemory()
	return NewService(st, st, gw, time.Hour, nil), st
}

func TestLoginInstallsSessionAndSuppresses(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{
		LoginFn: func(login, password string) (*backend.LoginResult, error) {
			return &backend.LoginResult{
				Token: "tok",
				User:  domain.User{ID: 7, FullName: "Jane Roe", Role: "Manager"},
			}, nil
		},
		TasksFn: func(token string, f backend.TaskFilter) ([]domain.Task, error) {
			if token != "tok" || f.PerPage != 100 {
				t.Errorf("Unexpected task fetch %q %+v", token, f)
			}
			return []domain.Task{{ID: 1}, {ID: 2}}, nil
		},
	}
	svc, st := newService(gw)
	ctx := context.Background()

	sess, err := svc.Login(ctx, 100, "jroe", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.Role != domain.RoleManager || sess.Login != "jroe" || sess.UserID != 7 {
		t.Errorf("Unexpected session %+v", sess)
	}

	stored, _ := st.GetSession(ctx, 100)
	if stored == nil || stored.Token != "tok" {
		t.Fatalf("Expected stored session, got %+v", stored)
	}

	for _, c := range []domain.Category{domain.CategoryTask, domain.CategoryDeadline, domain.CategoryOverdue, domain.CategoryReview} {
		for _, k := range []string{"1", "2"} {
			if ok, _ := st.WasDelivered(ctx, 100, c, k); !ok {
				t.Errorf("Expected %s/%s suppressed", c, k)
			}
		}
	}
	if ok, _ := st.WasDelivered(ctx, 100, domain.CategoryDelegation, "1"); ok {
		t.Error("Expected delegations not to be suppressed")
	}
}

func TestLoginRejectsReplay(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{}
	svc, st := newService(gw)
	ctx := context.Background()
	_ = st.PutSession(ctx, 100, &domain.Session{Token: "old"}, time.Hour)

	if _, err := svc.Login(ctx, 100, "jroe", "pw"); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("Expected ErrAlreadyAuthenticated, got %v", err)
	}
	if gw.Called("Login jroe") {
		t.Error("Expected backend login not to be called")
	}
}

func TestLoginPassesBackendErrors(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{
		LoginFn: func(string, string) (*backend.LoginResult, error) {
			return nil, backendtest.Failure(429, "Too many attempts")
		},
	}
	svc, st := newService(gw)

	_, err := svc.Login(context.Background(), 100, "jroe", "pw")
	if !errors.Is(err, backend.ErrRateLimited) {
		t.Fatalf("Expected rate limited error, got %v", err)
	}
	if s, _ := st.GetSession(context.Background(), 100); s != nil {
		t.Error("Expected no session after failed login")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{LogoutFn: func(string) error { return errors.New("backend down") }}
	svc, st := newService(gw)
	ctx := context.Background()

	_ = st.PutSession(ctx, 100, &domain.Session{Token: "tok", UserID: 7}, time.Hour)
	_ = st.MarkDelivered(ctx, 100, domain.CategoryTask, "5")

	existed, err := svc.Logout(ctx, 100)
	if err != nil || !existed {
		t.Fatalf("Logout() = %v, %v", existed, err)
	}
	if s, _ := st.GetSession(ctx, 100); s != nil {
		t.Error("Expected session removed")
	}
	if ok, _ := st.WasDelivered(ctx, 100, domain.CategoryTask, "5"); ok {
		t.Error("Expected ledger cleared")
	}

	existed, err = svc.Logout(ctx, 100)
	if err != nil || existed {
		t.Errorf("Expected second logout to report no session, got %v, %v", existed, err)
	}
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	svc, st := newService(&backendtest.Fake{})
	ctx := context.Background()
	_ = st.PutSession(ctx, 1, &domain.Session{Token: "tok"}, time.Hour)
	_ = st.MarkDelivered(ctx, 1, domain.CategoryReview, "9")

	if err := svc.Revoke(ctx, 1); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if s, _ := st.GetSession(ctx, 1); s != nil {
		t.Error("Expected session removed")
	}
	if ok, _ := st.WasDelivered(ctx, 1, domain.CategoryReview, "9"); ok {
		t.Error("Expected ledger cleared")
	}
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	if SessionFromContext(context.Background()) != nil {
		t.Error("Expected nil session on empty context")
	}
	s := &domain.Session{UserID: 3}
	ctx := WithSession(context.Background(), 55, s)
	if SessionFromContext(ctx) != s || ChatIDFromContext(ctx) != 55 {
		t.Error("Expected values round-tripped through context")
	}
}
