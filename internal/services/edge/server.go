// Package edge hosts the asset cache behind an HTTP server. Every request
// outside the admin prefix is subject to cache interception; admin routes
// expose the install lifecycle and namespace management to the host.
package edge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/mybullandbear/bull-bear-cloud/internal/assetcache"
	"github.com/mybullandbear/bull-bear-cloud/internal/platform/timeouts"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
)

// Config defines the inputs for the edge server.
type Config struct {
	HTTPAddr string
	Cache    *assetcache.Cache
	Store    storage.Store
}

// Server hosts the edge HTTP server.
type Server struct {
	httpAddr   string
	httpServer *http.Server
}

// NewHandler assembles the edge routes. It is the test-oriented
// entrypoint; NewServer wraps it with a configured http.Server.
func NewHandler(config Config) (http.Handler, error) {
	if config.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if config.Store == nil {
		return nil, errors.New("store is required")
	}
	h := &handler{cache: config.Cache, store: config.Store}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/admin/install", h.handleInstall)
	mux.HandleFunc("/admin/namespaces", h.handleNamespaces)
	mux.HandleFunc("/admin/stats", h.handleStats)
	// Unknown admin paths must never reach the cache or the origin.
	mux.HandleFunc("/admin/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.Handle("/", config.Cache)

	return mux, nil
}

// NewServer builds a configured edge server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	handler, err := NewHandler(config)
	if err != nil {
		return nil, err
	}
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return &Server{httpAddr: httpAddr, httpServer: httpServer}, nil
}

// ListenAndServe runs the HTTP server until the context ends.
//
// On cancellation it performs a bounded shutdown so in-flight requests
// are drained before hard close.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("edge server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("edge cache listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
