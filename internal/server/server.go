// Package server hosts the HTTP API on a TCP or TLS listener.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/celerix-dev/robot-ops/internal/api"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Server runs the gin engine behind an http.Server, with optional TLS.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	cert   *tls.Certificate
	log    *logrus.Entry
}

// New builds the gin engine for h. Recovery and request logging run before
// authentication.
func New(h *api.Handler, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.WithField("component", "server")
	}
	if h.Log == nil {
		h.Log = log.WithField("component", "api")
	}

	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(log))
	h.Register(r)

	return &Server{
		engine: r,
		log:    log,
		http: &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       5 * time.Minute,
		},
	}
}

// SetCertificate enables TLS on the next Listen or Serve.
func (s *Server) SetCertificate(cert tls.Certificate) {
	s.cert = &cert
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Listen binds addr and serves until Shutdown.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after a clean Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if s.cert != nil {
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{*s.cert},
			MinVersion:   tls.VersionTLS12,
		})
	}
	s.log.WithFields(logrus.Fields{"addr": ln.Addr().String(), "tls": s.cert != nil}).Info("http server listening")

	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
