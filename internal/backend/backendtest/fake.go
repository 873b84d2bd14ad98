// Package backendtest provides an in-memory backend.Gateway for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/domain"
)

// Fake is a scriptable Gateway. Unset hooks return zero values. Every call
// is recorded by name with its id arguments, e.g. "RejectResponse 7".
type Fake struct {
	mu    sync.Mutex
	calls []string

	LoginFn            func(login, password string) (*backend.LoginResult, error)
	LogoutFn           func(token string) error
	CurrentUserFn      func(token string) (*domain.User, error)
	TasksFn            func(token string, f backend.TaskFilter) ([]domain.Task, error)
	TaskFn             func(token string, id int64) (*domain.Task, error)
	UpdateTaskStatusFn func(token string, id int64, status string, files []backend.File) (*domain.Task, error)
	CurrentShiftFn     func(token string) (*domain.Shift, error)
	ShiftsFn           func(token string, f backend.ShiftFilter) ([]domain.Shift, error)
	OpenShiftFn        func(token string, userID, dealershipID int64, photo backend.File) (*domain.Shift, error)
	CloseShiftFn       func(token string, shiftID int64, photo *backend.File) (*domain.Shift, error)
	ReviewFn           func(op string, id int64, reason string) error
	UsersFn            func(token string, f backend.UserFilter) ([]domain.User, error)
	CreateDelegationFn func(token string, taskID, toUserID int64, reason string) (*domain.Delegation, error)
	DelegationsFn      func(token string, f backend.DelegationFilter) ([]domain.Delegation, error)
	DelegationOpFn     func(op string, id int64, reason string) error
	DashboardFn        func(token string) (*domain.Dashboard, error)
}

var _ backend.Gateway = (*Fake)(nil)

func (f *Fake) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded call log.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports whether a call with exactly this description was made.
func (f *Fake) Called(desc string) bool {
	for _, c := range f.Calls() {
		if c == desc {
			return true
		}
	}
	return false
}

func (f *Fake) Login(_ context.Context, login, password string) (*backend.LoginResult, error) {
	f.record("Login %s", login)
	if f.LoginFn != nil {
		return f.LoginFn(login, password)
	}
	return &backend.LoginResult{Token: "token"}, nil
}

func (f *Fake) Logout(_ context.Context, token string) error {
	f.record("Logout")
	if f.LogoutFn != nil {
		return f.LogoutFn(token)
	}
	return nil
}

func (f *Fake) CurrentUser(_ context.Context, token string) (*domain.User, error) {
	f.record("CurrentUser")
	if f.CurrentUserFn != nil {
		return f.CurrentUserFn(token)
	}
	return &domain.User{}, nil
}

func (f *Fake) Tasks(_ context.Context, token string, filter backend.TaskFilter) ([]domain.Task, error) {
	f.record("Tasks")
	if f.TasksFn != nil {
		return f.TasksFn(token, filter)
	}
	return nil, nil
}

func (f *Fake) Task(_ context.Context, token string, id int64) (*domain.Task, error) {
	f.record("Task %d", id)
	if f.TaskFn != nil {
		return f.TaskFn(token, id)
	}
	return &domain.Task{ID: id}, nil
}

func (f *Fake) UpdateTaskStatus(_ context.Context, token string, id int64, status string, files []backend.File) (*domain.Task, error) {
	f.record("UpdateTaskStatus %d %s %d", id, status, len(files))
	if f.UpdateTaskStatusFn != nil {
		return f.UpdateTaskStatusFn(token, id, status, files)
	}
	return &domain.Task{ID: id, Status: status}, nil
}

func (f *Fake) CurrentShift(_ context.Context, token string) (*domain.Shift, error) {
	f.record("CurrentShift")
	if f.CurrentShiftFn != nil {
		return f.CurrentShiftFn(token)
	}
	return nil, nil
}

func (f *Fake) Shifts(_ context.Context, token string, filter backend.ShiftFilter) ([]domain.Shift, error) {
	f.record("Shifts")
	if f.ShiftsFn != nil {
		return f.ShiftsFn(token, filter)
	}
	return nil, nil
}

func (f *Fake) OpenShift(_ context.Context, token string, userID, dealershipID int64, photo backend.File) (*domain.Shift, error) {
	f.record("OpenShift %d %d", userID, dealershipID)
	if f.OpenShiftFn != nil {
		return f.OpenShiftFn(token, userID, dealershipID, photo)
	}
	return &domain.Shift{ID: 1, Status: "open"}, nil
}

func (f *Fake) CloseShift(_ context.Context, token string, shiftID int64, photo *backend.File) (*domain.Shift, error) {
	f.record("CloseShift %d %t", shiftID, photo != nil)
	if f.CloseShiftFn != nil {
		return f.CloseShiftFn(token, shiftID, photo)
	}
	return &domain.Shift{ID: shiftID, Status: "closed"}, nil
}

func (f *Fake) review(op string, id int64, reason string) error {
	if reason != "" {
		f.record("%s %d %s", op, id, reason)
	} else {
		f.record("%s %d", op, id)
	}
	if f.ReviewFn != nil {
		return f.ReviewFn(op, id, reason)
	}
	return nil
}

func (f *Fake) ApproveResponse(_ context.Context, _ string, responseID int64) error {
	return f.review("ApproveResponse", responseID, "")
}

func (f *Fake) ApproveAllResponses(_ context.Context, _ string, taskID int64) error {
	return f.review("ApproveAllResponses", taskID, "")
}

func (f *Fake) RejectResponse(_ context.Context, _ string, responseID int64, reason string) error {
	return f.review("RejectResponse", responseID, reason)
}

func (f *Fake) RejectAllResponses(_ context.Context, _ string, taskID int64, reason string) error {
	return f.review("RejectAllResponses", taskID, reason)
}

func (f *Fake) Users(_ context.Context, token string, filter backend.UserFilter) ([]domain.User, error) {
	f.record("Users %s %d", filter.Role, filter.DealershipID)
	if f.UsersFn != nil {
		return f.UsersFn(token, filter)
	}
	return nil, nil
}

func (f *Fake) CreateDelegation(_ context.Context, token string, taskID, toUserID int64, reason string) (*domain.Delegation, error) {
	f.record("CreateDelegation %d %d %s", taskID, toUserID, reason)
	if f.CreateDelegationFn != nil {
		return f.CreateDelegationFn(token, taskID, toUserID, reason)
	}
	return &domain.Delegation{ID: 1, TaskID: taskID, Status: domain.DelegationPending}, nil
}

func (f *Fake) Delegations(_ context.Context, token string, filter backend.DelegationFilter) ([]domain.Delegation, error) {
	f.record("Delegations %s", filter.Direction)
	if f.DelegationsFn != nil {
		return f.DelegationsFn(token, filter)
	}
	return nil, nil
}

func (f *Fake) delegationOp(op string, id int64, reason string) error {
	if reason != "" {
		f.record("%s %d %s", op, id, reason)
	} else {
		f.record("%s %d", op, id)
	}
	if f.DelegationOpFn != nil {
		return f.DelegationOpFn(op, id, reason)
	}
	return nil
}

func (f *Fake) AcceptDelegation(_ context.Context, _ string, id int64) error {
	return f.delegationOp("AcceptDelegation", id, "")
}

func (f *Fake) RejectDelegation(_ context.Context, _ string, id int64, reason string) error {
	return f.delegationOp("RejectDelegation", id, reason)
}

func (f *Fake) CancelDelegation(_ context.Context, _ string, id int64) error {
	return f.delegationOp("CancelDelegation", id, "")
}

func (f *Fake) Dashboard(_ context.Context, token string) (*domain.Dashboard, error) {
	f.record("Dashboard")
	if f.DashboardFn != nil {
		return f.DashboardFn(token)
	}
	return &domain.Dashboard{}, nil
}

// Unauthorized is a ready-made 401 error.
func Unauthorized() error {
	return &backend.APIError{Status: 401, Message: "Unauthenticated."}
}

// Failure is a ready-made error with a backend message.
func Failure(status int, message string) error {
	return &backend.APIError{Status: status, Message: message}
}
