// Package httpapi is the HTTP side-channel: the entitlement-check
// endpoint clients poll at startup, a metrics sink, and an operator-only
// debug snapshot of the registry.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brassmonkey/registryd/internal/obslog"
	"github.com/brassmonkey/registryd/internal/registry"
)

// Server is the HTTP side-channel server.
type Server struct {
	reg  *registry.Registry
	port int

	mu      sync.Mutex
	server  *http.Server
	running bool
}

// New returns a Server bound to port, backed by reg for /debug/registry.
func New(reg *registry.Registry, port int) *Server {
	return &Server{reg: reg, port: port}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(corsMiddleware)
		r.Get("/bmregistry/getInfo.jsp", s.handleGetInfo)
		r.Post("/bmregistry/metrics", s.handleMetrics)
	})

	// Operator-only; no CORS, browsers have no business here.
	r.Get("/debug/registry", s.handleDebugRegistry)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}

// Start begins serving in a background goroutine. It returns once the
// listener is handed to net/http; bind failures surface asynchronously
// through the logger.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	addr := fmt.Sprintf("0.0.0.0:%d", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obslog.Global().Error("http", "listen on %s failed: %v", addr, err)
		}
	}()

	obslog.Global().Info("http", "listening on %s", addr)
	s.running = true
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.running = false
	s.server = nil
	return err
}
