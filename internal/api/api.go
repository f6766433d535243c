// Package api exposes the state and user resources over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/celerix-dev/robot-ops/internal/auth"
	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DefaultCookieName carries the session token for browser clients.
const DefaultCookieName = "robotops_session"

// Fixed 400 messages. Decoder and validation details stay in the logs.
const (
	msgInvalidBody   = "Invalid request body"
	msgInvalidStatus = "Invalid status"
	msgInvalidRecord = "Invalid state record"
)

// Handler serves the state and user routes on top of a record store, the
// report engine and the auth service.
type Handler struct {
	Store   engine.RecordStore
	Reports *report.Engine
	Auth    *auth.Service

	CookieName   string
	SecureCookie bool

	Log *logrus.Entry
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.Use(h.Authenticate())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	state := r.Group("/state")
	{
		state.POST("/createState", RequireAccess(auth.Admins...), h.CreateState)
		state.GET("/getState/:name", RequireAccess(auth.AnyAccount...), h.GetState)
		state.PUT("/updateState/:name", RequireAccess(auth.Admins...), h.UpdateState)
		state.DELETE("/deleteState/:name", RequireAccess(auth.Admins...), h.DeleteState)
		state.GET("/summary", RequireAccess(auth.AnyAccount...), h.GetSummary)
		state.GET("/getAll", RequireAccess(auth.AnyAccount...), h.GetAllStates)
	}

	user := r.Group("/user")
	{
		user.POST("/register", h.RegisterUser)
		user.POST("/login", h.Login)
		user.POST("/logout", RequireAccess(auth.AnyAccount...), h.Logout)
		user.PUT("/modify-access", RequireAccess(auth.SuperAdmins...), h.ModifyAccess)
		user.DELETE("/delete-user", RequireAccess(auth.SuperAdmins...), h.DeleteUser)
		user.GET("/view-all-users", RequireAccess(auth.SuperAdmins...), h.ViewAllUsers)
	}
}

func (h *Handler) logger() *logrus.Entry {
	if h.Log != nil {
		return h.Log
	}
	return logrus.WithField("component", "api")
}

func (h *Handler) cookieName() string {
	if h.CookieName != "" {
		return h.CookieName
	}
	return DefaultCookieName
}

// badRequest answers 400 with a fixed message under key and logs err at debug level.
func (h *Handler) badRequest(c *gin.Context, key, msg string, err error) {
	h.logger().WithError(err).WithField("path", c.FullPath()).Debug("rejected request")
	c.JSON(http.StatusBadRequest, gin.H{key: msg})
}

// internalError logs err and answers with an opaque 500.
func (h *Handler) internalError(c *gin.Context, key, what string, err error) {
	h.logger().WithError(err).WithField("path", c.FullPath()).Errorf("error %s", what)
	c.JSON(http.StatusInternalServerError, gin.H{key: "Internal Server Error"})
}

// RequestLogger logs one structured line per request.
func RequestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}
