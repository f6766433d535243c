package sdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/celerix-dev/robot-ops/internal/api"
	"github.com/celerix-dev/robot-ops/internal/auth"
	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/internal/report"
	"github.com/celerix-dev/robot-ops/internal/server"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/celerix-dev/robot-ops/pkg/sdk"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rootEmail = "root@example.com"
	password  = "s3cret"
)

func startDaemon(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := engine.NewMemStore()
	require.NoError(t, err)
	tokens, err := auth.NewTokens([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	svc := auth.NewService(store, tokens)
	require.NoError(t, svc.EnsureSuperAdmin(context.Background(), rootEmail, "root", password))

	srv := server.New(&api.Handler{Store: store, Reports: report.New(store), Auth: svc}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestClient_StateLifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := sdk.Connect(startDaemon(t))
	require.NoError(t, err)

	_, err = c.ListStates(ctx)
	assert.ErrorIs(t, err, sdk.ErrUnauthorized)

	login, err := c.Login(ctx, rootEmail, password)
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, login.Token, c.Token())

	rec, err := c.CreateState(ctx, sdk.CreateStateRequest{Name: "arm-7", Description: "pick and place"})
	require.NoError(t, err)
	assert.Equal(t, schema.StatusIdle, rec.Status)
	assert.Equal(t, "root", rec.CreatedBy)

	_, err = c.CreateState(ctx, sdk.CreateStateRequest{Name: "arm-7", Description: "dup"})
	var apiErr *sdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "State already exists", apiErr.Message)

	rec, err = c.UpdateState(ctx, "arm-7", schema.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, schema.StatusCompleted, rec.Status)

	got, err := c.GetState(ctx, "arm-7")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	all, err := c.ListStates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	sum, err := c.Summary(ctx, 1, "monthly")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalCount)
	assert.InDelta(t, 100.0, sum.SuccessRate, 1e-9)
	assert.Len(t, sum.TopPeakHours, 1)

	require.NoError(t, c.DeleteState(ctx, "arm-7"))
	_, err = c.GetState(ctx, "arm-7")
	assert.True(t, errors.Is(err, sdk.ErrNotFound))
}

func TestClient_Users(t *testing.T) {
	ctx := context.Background()
	addr := startDaemon(t)

	anon, err := sdk.Connect(addr)
	require.NoError(t, err)
	require.NoError(t, anon.Register(ctx, "op@example.com", "Operator", "hunter2"))
	_, err = anon.Login(ctx, "op@example.com", "wrong")
	assert.Error(t, err)

	op, err := sdk.Connect(addr)
	require.NoError(t, err)
	_, err = op.Login(ctx, "op@example.com", "hunter2")
	require.NoError(t, err)
	_, err = op.CreateState(ctx, sdk.CreateStateRequest{Name: "x", Description: "y"})
	assert.ErrorIs(t, err, sdk.ErrUnauthorized, "plain users cannot create")

	root, err := sdk.Connect(addr)
	require.NoError(t, err)
	_, err = root.Login(ctx, rootEmail, password)
	require.NoError(t, err)
	require.NoError(t, root.ModifyAccess(ctx, "op@example.com", schema.AccessAdmin))

	_, err = op.CreateState(ctx, sdk.CreateStateRequest{Name: "x", Description: "y"})
	assert.NoError(t, err, "promotion applies to the existing session")

	users, err := root.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, op.Logout(ctx))
	assert.Empty(t, op.Token())

	require.NoError(t, root.DeleteUser(ctx, "op@example.com"))
	assert.ErrorIs(t, root.DeleteUser(ctx, "op@example.com"), sdk.ErrNotFound)
}

func TestClient_RevokedTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	addr := startDaemon(t)

	c, err := sdk.Connect(addr)
	require.NoError(t, err)
	login, err := c.Login(ctx, rootEmail, password)
	require.NoError(t, err)

	reused, err := sdk.Connect(addr, sdk.WithToken(login.Token))
	require.NoError(t, err)
	_, err = reused.ListStates(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Logout(ctx))
	_, err = reused.ListStates(ctx)
	assert.ErrorIs(t, err, sdk.ErrUnauthorized)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(sdk.EnvAddr, "https://ops.example.com:7002/")
	t.Setenv(sdk.EnvToken, "tok")

	c, err := sdk.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "tok", c.Token())

	c, err = sdk.FromEnv(sdk.WithToken("override"))
	require.NoError(t, err)
	assert.Equal(t, "override", c.Token())
}

func TestAPIError(t *testing.T) {
	err := error(&sdk.APIError{StatusCode: http.StatusForbidden, Message: "Forbidden"})
	assert.ErrorIs(t, err, sdk.ErrUnauthorized)
	assert.NotErrorIs(t, err, sdk.ErrNotFound)
	assert.Equal(t, "robot-ops: 403 Forbidden", err.Error())
}
