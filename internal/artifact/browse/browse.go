// Package browse serves a completed run's manifest.json and metrics.json
// read-only over HTTP: a local-only mux.Router with a request-ID
// middleware and a uniform writeJSON/writeError pair. No write or
// control surface is exposed here — the artifact directory is always
// produced by internal/artifact.Writer beforehand.
package browse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Server is a local-only, read-only HTTP server over a runs_root directory.
type Server struct {
	router   *mux.Router
	server   *http.Server
	runsRoot string
	config   Config
}

// Config holds the HTTP server's bind address and timeouts.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig binds to localhost only: this is a read-only reporting
// surface, not a public API.
func DefaultConfig() Config {
	port := 8081
	if portStr := os.Getenv("ARTIFACT_BROWSE_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}
	return Config{
		Host:         "127.0.0.1",
		Port:         port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer builds a browse server rooted at runsRoot
// (<runs_root>/<play_id>/<symbol>/<run_id>/).
func NewServer(runsRoot string, config Config) *Server {
	router := mux.NewRouter()
	s := &Server{router: router, runsRoot: runsRoot, config: config}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)

	api := s.router.PathPrefix("/runs/{play}/{symbol}/{run_id}").Subrouter()
	api.HandleFunc("/manifest.json", s.serveArtifact("manifest.json")).Methods("GET")
	api.HandleFunc("/metrics.json", s.serveArtifact("metrics.json")).Methods("GET")

	s.router.HandleFunc("/health", s.health).Methods("GET")
	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func (s *Server) serveArtifact(fileName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		path := filepath.Join(s.runsRoot, vars["play"], vars["symbol"], vars["run_id"], fileName)

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				s.writeError(w, http.StatusNotFound, "run_not_found", fmt.Sprintf("no %s for this run", fileName))
				return
			}
			s.writeError(w, http.StatusInternalServerError, "read_failed", err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "endpoint_not_found", "the requested endpoint does not exist")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// Start runs the server until the process is shut down.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Address returns the bound host:port.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
