// Package backend is the client for the task management REST API.
package backend

import (
	"context"

	"github.com/taskmate/tmbot/internal/domain"
)

// Gateway is the set of backend operations the bot consumes. Every
// authenticated call takes the session's bearer token.
type Gateway interface {
	Login(ctx context.Context, login, password string) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*domain.User, error)

	Tasks(ctx context.Context, token string, f TaskFilter) ([]domain.Task, error)
	Task(ctx context.Context, token string, id int64) (*domain.Task, error)
	// UpdateTaskStatus sends JSON when files is empty and multipart otherwise.
	UpdateTaskStatus(ctx context.Context, token string, id int64, status string, files []File) (*domain.Task, error)

	// CurrentShift returns nil when the user has no open shift.
	CurrentShift(ctx context.Context, token string) (*domain.Shift, error)
	Shifts(ctx context.Context, token string, f ShiftFilter) ([]domain.Shift, error)
	OpenShift(ctx context.Context, token string, userID, dealershipID int64, photo File) (*domain.Shift, error)
	// CloseShift closes without a photo when photo is nil.
	CloseShift(ctx context.Context, token string, shiftID int64, photo *File) (*domain.Shift, error)

	ApproveResponse(ctx context.Context, token string, responseID int64) error
	ApproveAllResponses(ctx context.Context, token string, taskID int64) error
	RejectResponse(ctx context.Context, token string, responseID int64, reason string) error
	RejectAllResponses(ctx context.Context, token string, taskID int64, reason string) error

	Users(ctx context.Context, token string, f UserFilter) ([]domain.User, error)

	CreateDelegation(ctx context.Context, token string, taskID, toUserID int64, reason string) (*domain.Delegation, error)
	Delegations(ctx context.Context, token string, f DelegationFilter) ([]domain.Delegation, error)
	AcceptDelegation(ctx context.Context, token string, id int64) error
	RejectDelegation(ctx context.Context, token string, id int64, reason string) error
	CancelDelegation(ctx context.Context, token string, id int64) error

	Dashboard(ctx context.Context, token string) (*domain.Dashboard, error)
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// File is an upload attached to a multipart request.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// TaskFilter narrows GET /tasks. Zero values are omitted.
type TaskFilter struct {
	AssignedTo int64
	Status     string
	PerPage    int
	Page       int
}

// ShiftFilter narrows shift listings. Mine selects the caller's history.
type ShiftFilter struct {
	Mine    bool
	Status  string
	PerPage int
}

// UserFilter narrows GET /users.
type UserFilter struct {
	Role         string
	DealershipID int64
	PerPage      int
}

// DelegationFilter narrows GET /task-delegations.
type DelegationFilter struct {
	Direction string // "incoming" or "outgoing"
	Status    string
	PerPage   int
}
