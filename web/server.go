// ABOUTME: HTTP API server for triggering and inspecting HubSpot syncs
// ABOUTME: Routes sync, status, and health endpoints through the shared middleware chain
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clear-match/clearmatch/db"
	"github.com/clear-match/clearmatch/models"
	"go.uber.org/zap"
)

// SyncRunner runs one sync for an organization.
type SyncRunner interface {
	Sync(ctx context.Context, organizationID, actorID string) models.SyncResult
}

// StateReader reads persisted sync bookkeeping.
type StateReader interface {
	GetSyncState(ctx context.Context, organizationID, service string) (*models.SyncState, error)
}

// Deps are the server's collaborators.
type Deps struct {
	Syncer SyncRunner
	State  StateReader
	// Ping reports storage health; nil means always healthy.
	Ping                  func(ctx context.Context) error
	JWTSecret             string
	DefaultOrganizationID string
	Logger                *zap.Logger
}

type Server struct {
	deps    Deps
	logger  *zap.Logger
	handler http.Handler
}

func NewServer(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{deps: deps, logger: log}

	api := http.NewServeMux()
	api.HandleFunc("/api/hubspot/sync", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: s.handleSync,
	}))
	api.HandleFunc("/api/hubspot/sync/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.handleStatus,
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.handleHealth,
	}))
	mux.Handle("/api/", Auth(deps.JWTSecret)(api))

	s.handler = Chain(mux, RequestID, Recover(log), AccessLog(log))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}

type syncRequest struct {
	OrganizationID string `json:"organizationId"`
	// ActorID is only honoured when auth is disabled.
	ActorID string `json:"actorId"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	orgID, ok := s.resolveOrganization(w, r, req.OrganizationID)
	if !ok {
		return
	}

	actorID := strings.TrimSpace(req.ActorID)
	if p, authed := PrincipalFrom(r.Context()); authed {
		actorID = p.Subject
	}
	if actorID == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_actor", "actorId is required")
		return
	}

	// A started run outlives the request; a client disconnect must not cut it short.
	result := s.deps.Syncer.Sync(context.WithoutCancel(r.Context()), orgID, actorID)

	status := http.StatusOK
	switch {
	case result.Success:
	case result.InProgress:
		status = http.StatusConflict
	default:
		status = http.StatusBadGateway
	}
	WriteJSON(w, status, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	orgID, ok := s.resolveOrganization(w, r, r.URL.Query().Get("organizationId"))
	if !ok {
		return
	}

	state, err := s.deps.State.GetSyncState(r.Context(), orgID, models.ServiceHubSpotContacts)
	if errors.Is(err, db.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no sync has run for this organization")
		return
	}
	if err != nil {
		s.logger.Error("failed to read sync state", zap.String("organization_id", orgID), zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to read sync state")
		return
	}

	WriteJSON(w, http.StatusOK, state)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		if err := s.deps.Ping(r.Context()); err != nil {
			WriteError(w, r, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveOrganization picks the explicit organization, then the token's, then the default.
// A token bound to one organization may not act on another.
func (s *Server) resolveOrganization(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	p, authed := PrincipalFrom(r.Context())

	if authed && p.OrganizationID != "" {
		if requested != "" && requested != p.OrganizationID {
			WriteError(w, r, http.StatusForbidden, "forbidden", "token is not valid for this organization")
			return "", false
		}
		return p.OrganizationID, true
	}

	if requested != "" {
		return requested, true
	}
	if s.deps.DefaultOrganizationID != "" {
		return s.deps.DefaultOrganizationID, true
	}

	WriteError(w, r, http.StatusBadRequest, "missing_organization", "organizationId is required")
	return "", false
}
