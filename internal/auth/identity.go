// Package auth implements account registration, credential checks and the
// identity tokens that carry an authenticated caller through a request.
package auth

import (
	"context"
	"time"

	"github.com/celerix-dev/robot-ops/pkg/schema"
)

// Access sets used by the HTTP policy. Membership is explicit; there is no
// implicit "at least" comparison.
var (
	AnyAccount  = []schema.Access{schema.AccessUser, schema.AccessAdmin, schema.AccessSuperAdmin}
	Admins      = []schema.Access{schema.AccessAdmin, schema.AccessSuperAdmin}
	SuperAdmins = []schema.Access{schema.AccessSuperAdmin}
)

// Identity is the authenticated caller. It is immutable once decoded.
type Identity struct {
	TokenID   string
	AccountID string
	Email     string
	Name      string
	Access    schema.Access
	ExpiresAt time.Time
}

// HasAccess reports whether the identity's access level is one of levels.
func (id Identity) HasAccess(levels ...schema.Access) bool {
	for _, l := range levels {
		if id.Access == l {
			return true
		}
	}
	return false
}

type identityKey struct{}

// WithIdentity returns a child context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
