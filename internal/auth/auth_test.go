package auth

import (
	"context"
	"testing"
	"time"

	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("thisis32byteslongsecretkey123456")

func newTestService(t *testing.T) (*Service, *Tokens) {
	t.Helper()
	store, err := engine.NewMemStore()
	require.NoError(t, err)
	tokens, err := NewTokens(testKey, time.Hour)
	require.NoError(t, err)
	return NewService(store, tokens), tokens
}

func TestTokens_IssueVerify(t *testing.T) {
	tokens, err := NewTokens(testKey, time.Hour)
	require.NoError(t, err)

	token, issued, err := tokens.Issue(schema.UserAccount{Email: "a@b.co", Name: "alice", Access: schema.AccessAdmin})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.TokenID)

	id, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, issued.TokenID, id.TokenID)
	assert.Equal(t, "alice", id.Name)
	assert.Equal(t, schema.AccessAdmin, id.Access)

	_, err = tokens.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_Expiry(t *testing.T) {
	tokens, err := NewTokens(testKey, time.Minute)
	require.NoError(t, err)
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	token, _, err := tokens.Issue(schema.UserAccount{Email: "a@b.co"})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokens_RevokeAndSweep(t *testing.T) {
	tokens, err := NewTokens(testKey, time.Minute)
	require.NoError(t, err)
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	token, id, err := tokens.Issue(schema.UserAccount{Email: "a@b.co"})
	require.NoError(t, err)
	tokens.Revoke(id)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Equal(t, 0, tokens.Sweep())

	now = now.Add(time.Hour)
	assert.Equal(t, 1, tokens.Sweep())
}

func TestIdentity_HasAccess(t *testing.T) {
	user := Identity{Access: schema.AccessUser}
	admin := Identity{Access: schema.AccessAdmin}
	super := Identity{Access: schema.AccessSuperAdmin}

	assert.False(t, user.HasAccess(Admins...))
	assert.True(t, admin.HasAccess(Admins...))
	assert.True(t, super.HasAccess(Admins...))
	assert.False(t, admin.HasAccess(SuperAdmins...))
	assert.True(t, user.HasAccess(AnyAccount...))
	assert.False(t, Identity{Access: "guest"}.HasAccess(AnyAccount...))
}

func TestIdentity_Context(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Email: "a@b.co"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "a@b.co", id.Email)
}

func TestService_RegisterLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	u, err := svc.Register(ctx, "alice@example.com", "alice", "pa55")
	require.NoError(t, err)
	assert.Equal(t, schema.AccessUser, u.Access)
	assert.NotEqual(t, "pa55", u.PasswordHash)

	_, err = svc.Register(ctx, "alice@example.com", "alice2", "pa55")
	assert.ErrorIs(t, err, engine.ErrDuplicateUser)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "bob@example.com", "pa55")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, id, err := svc.Login(ctx, "alice@example.com", "pa55")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Name)

	got, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id.TokenID, got.TokenID)

	svc.Logout(got)
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, "not-an-email", "n", "pa55")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.Register(ctx, "a@b.co", " ", "pa55")
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = svc.Register(ctx, "a@b.co", "n", "abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestService_AuthenticateSeesAccessChanges(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, "alice@example.com", "alice", "pa55")
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "alice@example.com", "pa55")
	require.NoError(t, err)

	_, err = svc.ModifyAccess(ctx, "alice@example.com", schema.AccessAdmin)
	require.NoError(t, err)
	id, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, schema.AccessAdmin, id.Access)

	_, err = svc.ModifyAccess(ctx, "alice@example.com", "root")
	assert.ErrorIs(t, err, ErrInvalidAccess)

	require.NoError(t, svc.DeleteUser(ctx, "alice@example.com"))
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_EnsureSuperAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.EnsureSuperAdmin(ctx, "root@example.com", "root", "changeme"))
	require.NoError(t, svc.EnsureSuperAdmin(ctx, "root@example.com", "root", "changeme"))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, schema.AccessSuperAdmin, users[0].Access)
}

func TestService_ReregisteredEmailDoesNotInheritTokens(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, "alice@example.com", "alice", "pa55")
	require.NoError(t, err)
	_, err = svc.ModifyAccess(ctx, "alice@example.com", schema.AccessAdmin)
	require.NoError(t, err)
	oldToken, _, err := svc.Login(ctx, "alice@example.com", "pa55")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, "alice@example.com"))
	reborn, err := svc.Register(ctx, "alice@example.com", "mallory", "w0rd")
	require.NoError(t, err)
	assert.NotEmpty(t, reborn.ID)

	_, err = svc.Authenticate(ctx, oldToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	newToken, _, err := svc.Login(ctx, "alice@example.com", "w0rd")
	require.NoError(t, err)
	id, err := svc.Authenticate(ctx, newToken)
	require.NoError(t, err)
	assert.Equal(t, reborn.ID, id.AccountID)
	assert.Equal(t, "mallory", id.Name)
	assert.Equal(t, schema.AccessUser, id.Access)
}
