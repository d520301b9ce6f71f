// Package server exposes the read-only observability surface and thin
// mutation pass-throughs over the engine: repo info, bead listings,
// per-bead artifacts, windowed journal/decision reads, and an SSE tail
// of both logs. Filesystem artifacts remain the source of truth; every
// request re-reads from disk.
package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/robchristie/loom/internal/config"
	"github.com/robchristie/loom/internal/store"
)

// Server wires the engine to HTTP.
type Server struct {
	paths store.Paths
	cfg   config.Settings
	log   *slog.Logger
}

// New builds a Server for the configured repository. Logs rotate via
// lumberjack and mirror to stderr.
func New(cfg config.Settings) *Server {
	sink := io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   cfg.ServerLogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	})
	return &Server{
		paths: store.NewPaths(cfg.RepoRoot),
		cfg:   cfg,
		log:   slog.New(slog.NewTextHandler(sink, nil)),
	}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/repo", s.handleRepo)
	mux.HandleFunc("GET /api/beads", s.handleListBeads)
	mux.HandleFunc("GET /api/beads/{id}", s.handleGetBead)
	mux.HandleFunc("GET /api/beads/{id}/review", s.handleGetReview)
	mux.HandleFunc("GET /api/beads/{id}/grounding", s.handleGetGrounding)
	mux.HandleFunc("GET /api/beads/{id}/evidence", s.handleGetEvidence)
	mux.HandleFunc("GET /api/beads/{id}/openspec-ref", s.handleGetOpenSpecRef)
	mux.HandleFunc("GET /api/beads/{id}/artifacts", s.handleArtifactsIndex)
	mux.HandleFunc("GET /api/beads/{id}/journal", s.handleBeadJournal)
	mux.HandleFunc("GET /api/beads/{id}/decisions", s.handleBeadDecisions)

	mux.HandleFunc("POST /api/beads/{id}/transition", s.handleTransition)
	mux.HandleFunc("POST /api/beads/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/beads/{id}/abort", s.handleAbort)
	mux.HandleFunc("POST /api/beads/{id}/grounding/generate", s.handleGroundingGenerate)
	mux.HandleFunc("POST /api/beads/{id}/evidence/collect", s.handleEvidenceCollect)
	mux.HandleFunc("POST /api/beads/{id}/evidence/validate", s.handleEvidenceValidate)
	mux.HandleFunc("POST /api/beads/{id}/evidence/invalidate-if-stale", s.handleEvidenceInvalidate)
	mux.HandleFunc("POST /api/beads/{id}/openspec/sync", s.handleOpenSpecSync)

	mux.HandleFunc("GET /api/events", s.handleEvents)

	return s.logRequests(allowCORS(mux))
}

// allowCORS is permissive for development frontends; tighten before
// exposing the server beyond localhost.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	s.log.Info("loom server listening", "addr", s.cfg.ServeAddr, "repo", s.cfg.RepoRoot)
	return http.ListenAndServe(s.cfg.ServeAddr, s.Handler())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
