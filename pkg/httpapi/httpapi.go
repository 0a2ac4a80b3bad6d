// Package httpapi is the thin HTTP transport over pkg/store: it decodes
// requests, calls the store, and maps error kinds onto status codes. It
// holds no business logic of its own.
//
// Routes:
//
//	GET    /libraries                       list libraries
//	POST   /libraries                       create library {name, metadata?, index_name?}
//	GET    /libraries/{id}                  get library
//	DELETE /libraries/{id}                  delete library
//	GET    /libraries/{id}/exists           existence check
//	GET    /libraries/{id}/chunks           list chunks
//	GET    /libraries/{id}/chunks/count     count chunks
//	POST   /libraries/{id}/chunks           upsert chunks {chunks, filters?}
//	DELETE /libraries/{id}/chunks           delete chunks {filters?}
//	POST   /libraries/{id}/search?k=5       search {query, filters?}
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/orneryd/vecstore/pkg/chunk"
	"github.com/orneryd/vecstore/pkg/filter"
	"github.com/orneryd/vecstore/pkg/index"
	"github.com/orneryd/vecstore/pkg/store"
	"github.com/orneryd/vecstore/pkg/vserr"
)

const defaultSearchK = 5

// Config holds the HTTP transport's own settings. It does not duplicate
// anything in config.Config, which governs the store beneath it.
type Config struct {
	Address      string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns sane defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		Address:      "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Server is the HTTP API server fronting a *store.Store.
//
// Lifecycle: construct with New, call Start to begin accepting
// connections in the background, call Stop for graceful shutdown.
type Server struct {
	config *Config
	store  *store.Store

	httpServer *http.Server
	listener   net.Listener
	started    time.Time
	closed     atomic.Bool

	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// New constructs a Server over the given store. Uses DefaultConfig if cfg
// is nil.
func New(s *store.Store, cfg *Config) (*Server, error) {
	if s == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{config: cfg, store: s}, nil
}

// Start binds the listener and begins serving in a background goroutine.
// It returns once the listener is bound; Addr reports where.
func (s *Server) Start() error {
	if s.closed.Load() {
		return fmt.Errorf("server closed")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.started = time.Now()

	s.httpServer = &http.Server{
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("http server error: %v\n", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the server's bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) buildRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/libraries", s.handleLibraries)
	mux.HandleFunc("/libraries/", s.handleLibraryByID)
	return s.recoveryMiddleware(s.metricsMiddleware(mux))
}

// --- middleware ---

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				fmt.Printf("PANIC: %v\n%s\n", rec, buf[:n])
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		next.ServeHTTP(w, r)
	})
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.store.ListLibraries())
	case http.MethodPost:
		s.createLibrary(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
	}
}

type createLibraryRequest struct {
	Name      string                  `json:"name"`
	Metadata  map[string]filter.Value `json:"metadata"`
	IndexName index.Kind              `json:"index_name"`
}

func (s *Server) createLibrary(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	idxKind := req.IndexName
	if idxKind == "" {
		idxKind = index.KindBruteForce
	}
	info := s.store.CreateLibrary(req.Name, req.Metadata, idxKind)
	s.writeJSON(w, http.StatusCreated, info)
}

// handleLibraryByID routes everything under /libraries/{id}[/...].
func (s *Server) handleLibraryByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/libraries/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "library id required")
		return
	}
	libID := parts[0]
	remaining := parts[1:]

	switch {
	case len(remaining) == 0:
		s.handleLibrary(w, r, libID)
	case len(remaining) == 1 && remaining[0] == "exists":
		s.handleExists(w, r, libID)
	case len(remaining) == 1 && remaining[0] == "chunks":
		s.handleChunks(w, r, libID)
	case len(remaining) == 2 && remaining[0] == "chunks" && remaining[1] == "count":
		s.handleChunkCount(w, r, libID)
	case len(remaining) == 1 && remaining[0] == "search":
		s.handleSearch(w, r, libID)
	default:
		s.writeError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request, libID string) {
	switch r.Method {
	case http.MethodGet:
		info, err := s.store.GetLibrary(libID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, info)
	case http.MethodDelete:
		if err := s.store.DeleteLibrary(libID); err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "GET or DELETE required")
	}
}

func (s *Server) handleExists(w http.ResponseWriter, r *http.Request, libID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"exists": s.store.Exists(libID)})
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request, libID string) {
	switch r.Method {
	case http.MethodGet:
		chunks, err := s.store.ListChunks(libID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, chunks)
	case http.MethodPost:
		s.upsertChunks(w, r, libID)
	case http.MethodDelete:
		s.deleteChunks(w, r, libID)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "GET, POST, or DELETE required")
	}
}

func (s *Server) handleChunkCount(w http.ResponseWriter, r *http.Request, libID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	count, err := s.store.CountChunks(libID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

type upsertChunksRequest struct {
	Chunks  []chunk.Chunk `json:"chunks"`
	Filters filter.Filter `json:"filters"`
}

func (s *Server) upsertChunks(w http.ResponseWriter, r *http.Request, libID string) {
	var req upsertChunksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	written, err := s.store.UpsertChunks(libID, req.Chunks, req.Filters)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, written)
}

type deleteChunksRequest struct {
	Filters filter.Filter `json:"filters"`
}

func (s *Server) deleteChunks(w http.ResponseWriter, r *http.Request, libID string) {
	var req deleteChunksRequest
	if r.Body != nil {
		// Absent body means "delete all"; only a malformed non-empty body
		// is an error.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusUnprocessableEntity, "invalid request body")
			return
		}
	}
	if err := s.store.DeleteChunks(libID, req.Filters); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type searchRequest struct {
	Query   []float32     `json:"query"`
	Filters filter.Filter `json:"filters"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, libID string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	k := defaultSearchK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, "k must be an integer")
			return
		}
		k = parsed
	}

	results, err := s.store.Search(libID, req.Query, k, req.Filters)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

// --- response helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.errorCount.Add(1)
	s.writeJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

// writeStoreError maps a pkg/vserr sentinel to the status codes fixed by
// the transport contract. Anything unrecognized becomes a generic 500;
// the core never leaks internal details to the caller.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vserr.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "library not found")
	case errors.Is(err, vserr.ErrBadDimension):
		s.writeError(w, http.StatusBadRequest, "query vector has the wrong dimension")
	case errors.Is(err, vserr.ErrBadPredicate):
		s.writeError(w, http.StatusUnprocessableEntity, "invalid filter predicate")
	case errors.Is(err, vserr.ErrNotBuilt), errors.Is(err, vserr.ErrInvariant), errors.Is(err, vserr.ErrIOError):
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
