// Package server exposes the action pipeline, trust policy, and feature
// registration over HTTP JSON for the app's frontends and feature services.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/luminos-app/agentcore/internal/auth"
	"github.com/luminos-app/agentcore/internal/metrics"
	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/luminos-app/agentcore/internal/storage"
	"github.com/luminos-app/agentcore/internal/trust"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Registry *registry.Registry
	Local    trust.LocalCache  // nil disables local trust caching
	Remote   trust.RemoteStore // nil disables remote trust sync
	Writer   storage.EventWriter
	Metrics  *metrics.Metrics // nil disables instrumentation
	Auth     auth.Authenticator
	Logger   *zap.Logger

	// ResyncSchedule is an optional cron spec for periodic remote trust
	// re-fetch on each session, e.g. "@every 5m".
	ResyncSchedule string

	sessions *sessionManager
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	deps.sessions = newSessionManager(deps)

	mux := http.NewServeMux()

	// Action pipeline (model orchestrator + confirmation surface)
	mux.HandleFunc("POST /v1/actions", deps.authMiddleware(deps.handleProposeAction))
	mux.HandleFunc("POST /v1/actions/{action_id}/approve", deps.authMiddleware(deps.handleApproveAction))
	mux.HandleFunc("POST /v1/actions/{action_id}/deny", deps.authMiddleware(deps.handleDenyAction))

	// Session lifecycle
	mux.HandleFunc("DELETE /v1/sessions/{user_id}", deps.authMiddleware(deps.handleDropSession))

	// Trust policy
	mux.HandleFunc("GET /v1/trust", deps.authMiddleware(deps.handleGetTrust))
	mux.HandleFunc("PUT /v1/trust", deps.authMiddleware(deps.handleUpdateTrust))
	mux.HandleFunc("POST /v1/trust/revoke", deps.authMiddleware(deps.handleRevokeTrust))

	// Feature registration (webhook-backed pages)
	mux.HandleFunc("POST /v1/pages", deps.authMiddleware(deps.handleRegisterPage))
	mux.HandleFunc("DELETE /v1/pages/{page_id}", deps.authMiddleware(deps.handleUnregisterPage))
	mux.HandleFunc("POST /v1/pages/{page_id}/activate", deps.authMiddleware(deps.handleActivatePage))

	// Model context material
	mux.HandleFunc("GET /v1/capabilities", deps.authMiddleware(deps.handleCapabilities))
	mux.HandleFunc("GET /v1/context", deps.authMiddleware(deps.handleContext))

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return requestLogging(mux, deps.Logger)
}

// authMiddleware validates the Bearer agk_ key before the handler runs.
func (d *Dependencies) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearerToken(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Missing or invalid Authorization header"})
			return
		}
		if _, err := d.Auth.Authenticate(r.Context(), token); err != nil {
			d.Logger.Warn("auth failed", zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Invalid API key"})
			return
		}
		next(w, r)
	}
}

// requestLogging logs method, path, status, and latency for every request.
func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
