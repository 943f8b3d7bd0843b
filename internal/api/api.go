// Package api provides the HTTP surface of SevaFlow.
//
// It exposes endpoints for dialogue turns, session inspection and
// cancellation, and submission tracking. Channel integrations (WhatsApp
// relays, web chat frontends) call POST /v1/messages with each incoming
// user message and deliver the returned reply.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// DefaultTurnTimeout bounds one dialogue turn, including model calls.
const DefaultTurnTimeout = 60 * time.Second

// DialogueEngine is the part of the flow engine the API depends on.
type DialogueEngine interface {
	HandleTurn(ctx context.Context, sessionKey, documentTypeHint, message, language string) (string, error)
	ActiveSession(ctx context.Context, sessionKey string) (*models.CollectionSession, error)
	CancelSession(ctx context.Context, sessionKey string) error
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the SevaFlow HTTP API.
type Server struct {
	engine DialogueEngine
	repo   store.SubmissionRepo
	httpd  *http.Server
}

// NewServer creates an API server around the dialogue engine and the
// submission repo.
func NewServer(engine DialogueEngine, repo store.SubmissionRepo, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{engine: engine, repo: repo}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.messageHandler)
	mux.HandleFunc("GET /v1/sessions/{key}", s.getSessionHandler)
	mux.HandleFunc("DELETE /v1/sessions/{key}", s.deleteSessionHandler)
	mux.HandleFunc("GET /v1/submissions", s.listSubmissionsHandler)
	mux.HandleFunc("GET /health", s.healthHandler)

	s.httpd = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the HTTP server. It blocks until the server stops.
func (s *Server) Run() error {
	slog.Info("Server.Run: API listening", "addr", s.httpd.Addr)
	if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Server.Run: listen failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Server.Shutdown: stopping API server")
	return s.httpd.Shutdown(ctx)
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpd.Handler
}
