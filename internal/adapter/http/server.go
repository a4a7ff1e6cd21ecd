package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

const maxBodyBytes = 1 << 16

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Commands is the user-facing control surface behind the /v1 routes.
type Commands interface {
	SetRingerMode(ctx context.Context, mute bool) (domain.Outcome, error)
	SetDoNotDisturbMode(ctx context.Context, enable bool) (domain.Outcome, error)
	Permissions(ctx context.Context) (domain.PermissionState, domain.Pathway)
	RequestPermission(ctx context.Context, p domain.Permission) error
	Zones(ctx context.Context) ([]domain.Zone, error)
	Match(ctx context.Context, p domain.Position) (domain.Zone, bool, error)
}

// Server exposes health, readiness, metrics and the ringer command routes.
type Server struct {
	httpServer *http.Server
	commands   Commands
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the probe, metrics and /v1 routes.
func NewServer(addr string, ready ReadinessChecker, commands Commands, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		commands: commands,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/ringer", s.handleRinger)
	mux.HandleFunc("POST /v1/dnd", s.handleDND)
	mux.HandleFunc("GET /v1/permissions", s.handlePermissions)
	mux.HandleFunc("POST /v1/permissions/{permission}/request", s.handleRequestPermission)
	mux.HandleFunc("GET /v1/zones", s.handleZones)
	mux.HandleFunc("POST /v1/match", s.handleMatch)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type ringerRequest struct {
	Mute *bool `json:"mute"`
}

type dndRequest struct {
	Enable *bool `json:"enable"`
}

type matchRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type outcomeResponse struct {
	domain.Outcome
	Error string `json:"error,omitempty"`
}

func (s *Server) handleRinger(w http.ResponseWriter, r *http.Request) {
	var req ringerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Mute == nil {
		writeError(w, http.StatusBadRequest, errors.New(`"mute" is required`))
		return
	}
	out, err := s.commands.SetRingerMode(r.Context(), *req.Mute)
	s.writeOutcome(w, out, err)
}

func (s *Server) handleDND(w http.ResponseWriter, r *http.Request) {
	var req dndRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Enable == nil {
		writeError(w, http.StatusBadRequest, errors.New(`"enable" is required`))
		return
	}
	out, err := s.commands.SetDoNotDisturbMode(r.Context(), *req.Enable)
	s.writeOutcome(w, out, err)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	state, pathway := s.commands.Permissions(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": state,
		"pathway":     pathway,
	})
}

func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	p, err := domain.ParsePermission(r.PathValue("permission"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.commands.RequestPermission(r.Context(), p); err != nil {
		s.logger.Warn("permission request failed", "permission", p, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested", "permission": string(p)})
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.commands.Zones(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if zones == nil {
		zones = []domain.Zone{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, errors.New(`"lat" and "lon" are required`))
		return
	}

	zone, matched, err := s.commands.Match(r.Context(), domain.Position{Lat: *req.Lat, Lon: *req.Lon})
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	resp := map[string]any{"matched": matched}
	if matched {
		resp["zone"] = zone
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeOutcome maps an outcome to its HTTP status. err is non-nil only when
// the command never ran (shutdown or a cancelled request).
func (s *Server) writeOutcome(w http.ResponseWriter, out domain.Outcome, err error) {
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, outcomeStatus(out.Kind), outcomeResponse{Outcome: out, Error: out.ErrorMessage()})
}

func outcomeStatus(kind domain.OutcomeKind) int {
	switch kind {
	case domain.OutcomeApplied, domain.OutcomeUnchanged:
		return http.StatusOK
	case domain.OutcomeDenied:
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
