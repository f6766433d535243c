package sdk

import (
	"context"
	"errors"
	"time"

	"github.com/celerix-dev/robot-ops/pkg/schema"
)

var (
	// ErrNotFound is matched by APIErrors carrying a 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is matched by APIErrors carrying a 401 or 403.
	ErrUnauthorized = errors.New("unauthorized")
)

// --- Functional Interfaces ---

// StateReader reads state records.
type StateReader interface {
	GetState(ctx context.Context, name string) (schema.StateRecord, error)
	ListStates(ctx context.Context) ([]schema.StateRecord, error)
}

// StateWriter mutates state records. Requires admin access.
type StateWriter interface {
	CreateState(ctx context.Context, req CreateStateRequest) (schema.StateRecord, error)
	UpdateState(ctx context.Context, name string, status schema.Status) (schema.StateRecord, error)
	DeleteState(ctx context.Context, name string) error
}

// Reporter fetches aggregate reports.
type Reporter interface {
	Summary(ctx context.Context, n int, interval string) (schema.Summary, error)
}

// Session manages the caller's identity.
type Session interface {
	Register(ctx context.Context, email, name, password string) error
	Login(ctx context.Context, email, password string) (LoginResponse, error)
	Logout(ctx context.Context) error
}

// UserAdmin manages accounts. Requires SuperAdmin access.
type UserAdmin interface {
	ModifyAccess(ctx context.Context, email string, access schema.Access) error
	DeleteUser(ctx context.Context, email string) error
	ListUsers(ctx context.Context) ([]schema.UserAccount, error)
}

// --- Composite Interfaces ---

// RobotOps is everything the service offers.
type RobotOps interface {
	StateReader
	StateWriter
	Reporter
	Session
	UserAdmin
}

type CreateStateRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      schema.Status `json:"status,omitempty"`
}

type LoginResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
