package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	votingcoordinator "voteverse/contexts/election/voting-coordinator"
	sessionauthority "voteverse/contexts/identity-access/session-authority"
	"voteverse/internal/platform/observability"
)

const sessionHeader = "X-Session-Id"

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	metrics  *observability.Metrics
	sessions sessionauthority.Module
	election votingcoordinator.Module
	http     *http.Server
}

// New registers both modules on one mux. metrics may be nil, in which case
// /metrics is not served.
func New(
	sessions sessionauthority.Module,
	election votingcoordinator.Module,
	metrics *observability.Metrics,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		metrics:  metrics,
		sessions: sessions,
		election: election,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler is the mux wrapped with request logging and metrics.
func (s *Server) Handler() http.Handler {
	return observability.Middleware(s.logger, s.metrics, s.mux)
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("POST /v1/sessions", s.handleOpenSession)
	s.mux.HandleFunc("GET /v1/sessions/current", s.handleCurrentSession)
	s.mux.HandleFunc("DELETE /v1/sessions/current", s.handleTerminateSession)
	s.mux.HandleFunc("POST /v1/sessions/verification", s.handleRequestVerification)
	s.mux.HandleFunc("POST /v1/sessions/verification/confirm", s.handleConfirmVerification)
	s.mux.HandleFunc("POST /v1/sessions/admin", s.handleAuthenticateAdmin)
	s.mux.HandleFunc("PUT /v1/sessions/district", s.handleSetDistrict)

	s.mux.HandleFunc("GET /v1/districts", s.handleListDistricts)
	s.mux.HandleFunc("GET /v1/districts/{district}/candidates", s.handleListCandidates)
	s.mux.HandleFunc("GET /v1/districts/{district}/voters", s.handleListVoters)
	s.mux.HandleFunc("POST /v1/ballots", s.handleCastVote)
	s.mux.HandleFunc("POST /v1/admin/districts/{district}/winner", s.handleMarkWinner)
	s.mux.HandleFunc("POST /v1/admin/results/publish", s.handlePublishResults)
	s.mux.HandleFunc("GET /v1/results", s.handleResults)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
