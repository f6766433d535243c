// Package engine implements the record store behind the robot-ops service.
package engine

import (
	"context"
	"time"

	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no state record has the requested name.
	ErrNotFound = errors.New("state not found")
	// ErrDuplicateName is returned when a state record with the same name already exists.
	ErrDuplicateName = errors.New("state name already exists")
	// ErrInvalidRecord is returned when a record violates a model invariant.
	ErrInvalidRecord = errors.New("invalid state record")
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrUserNotFound is returned when no account matches the requested email.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned when the email or name is already registered.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidPipeline is returned when an aggregation cannot be evaluated.
	ErrInvalidPipeline = errors.New("invalid aggregation pipeline")
)

// RecordStore holds the state records.
type RecordStore interface {
	// Insert stores a new record. The name is trimmed and the status defaults to idle.
	Insert(ctx context.Context, rec schema.StateRecord) (schema.StateRecord, error)
	// FindByName returns the record with the given name.
	FindByName(ctx context.Context, name string) (schema.StateRecord, error)
	// FindAll returns every record ordered by creation time.
	FindAll(ctx context.Context) ([]schema.StateRecord, error)
	// UpdateStatus changes the status of a record. Setting the current status
	// again returns the record untouched.
	UpdateStatus(ctx context.Context, name string, status schema.Status) (schema.StateRecord, error)
	// DeleteByName removes a record.
	DeleteByName(ctx context.Context, name string) error
}

// Aggregator evaluates grouping queries over the state records.
type Aggregator interface {
	Aggregate(ctx context.Context, p Pipeline) ([]Row, error)
}

// UserStore holds the registered accounts, keyed by email.
type UserStore interface {
	CreateUser(ctx context.Context, u schema.UserAccount) error
	FindUserByEmail(ctx context.Context, email string) (schema.UserAccount, error)
	SetAccess(ctx context.Context, email string, access schema.Access) (schema.UserAccount, error)
	DeleteUser(ctx context.Context, email string) error
	ListUsers(ctx context.Context) ([]schema.UserAccount, error)
}

// Store is the full contract implemented by every backend.
type Store interface {
	RecordStore
	Aggregator
	UserStore
	Close() error
}

// prepareInsert normalizes rec and stamps missing timestamps.
func prepareInsert(rec schema.StateRecord, now time.Time) (schema.StateRecord, error) {
	rec.Normalize()
	if rec.Name == "" {
		return rec, errors.Wrap(ErrInvalidRecord, "name is required")
	}
	if rec.Description == "" {
		return rec, errors.Wrap(ErrInvalidRecord, "description is required")
	}
	if rec.CreatedBy == "" {
		return rec, errors.Wrap(ErrInvalidRecord, "createdBy is required")
	}
	if !rec.Status.Valid() {
		return rec, errors.Wrapf(ErrInvalidStatus, "%q", rec.Status)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Microsecond)
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC().Truncate(time.Microsecond)
	return rec, nil
}

// touch returns the updatedAt value for a modification at now. The result is
// always strictly after createdAt so a modified record never looks untouched.
func touch(createdAt, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(createdAt) {
		return createdAt.Add(time.Microsecond)
	}
	return now
}

func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
