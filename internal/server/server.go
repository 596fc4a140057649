// Package server exposes the memory pipeline over HTTP: JSON endpoints for
// ingestion, search, and answering, plus a websocket event stream.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mindloom/mindloom/internal/config"
	"github.com/mindloom/mindloom/internal/engine"
)

// Server wires the engine to its HTTP surface.
type Server struct {
	engine *engine.Engine
	hub    *Hub
	cfg    *config.Config
	http   *http.Server
}

// New creates a server around the engine. The hub starts with the server.
func New(eng *engine.Engine, cfg *config.Config) *Server {
	return &Server{engine: eng, hub: NewHub(), cfg: cfg}
}

// Hub exposes the event hub so other components can publish.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/memories", s.handleIngest)
	mux.HandleFunc("GET /v1/memories/{id}", s.handleGetMemory)
	mux.HandleFunc("DELETE /v1/memories/{id}", s.handleDeleteMemory)
	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.HandleFunc("POST /v1/answer", s.handleAnswer)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.Handle("GET /v1/events", s.hub)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	limiter := rate.NewLimiter(rate.Limit(50), 100)
	var handler http.Handler = mux
	handler = rateLimit(handler, limiter)
	handler = requireAuth(handler, s.cfg.Security.APIToken)
	handler = securityHeaders(handler)
	return handler
}

// Start listens on the configured address and serves until ctx is canceled,
// then shuts down gracefully. onListen, when set, receives the bound address
// so callers can start on port 0.
func (s *Server) Start(ctx context.Context, onListen func(addr string)) error {
	go s.hub.Run()
	defer s.hub.Stop()

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if onListen != nil {
		onListen(listener.Addr().String())
	}

	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(listener)
	}()
	log.Printf("server: listening on %s", listener.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
