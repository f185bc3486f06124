package server

import (
	"net/http"
	"sync"

	"github.com/luminos-app/agentcore/internal/pipeline"
	"github.com/luminos-app/agentcore/internal/trust"
	"go.uber.org/zap"
)

// session holds the per-user half of the system: the trust store initialized
// for that user, the pipeline bound to it, and the pending confirmations the
// surface has not answered yet. The registry, audit writer, and metrics are
// shared across sessions.
type session struct {
	trust    *trust.Store
	pipeline *pipeline.Pipeline

	mu      sync.Mutex
	pending map[string]*pipeline.AgentAction
}

// takePending removes and returns a pending action, if present.
func (s *session) takePending(actionID string) (*pipeline.AgentAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.pending[actionID]
	if ok {
		delete(s.pending, actionID)
	}
	return a, ok
}

// putPending stores an action awaiting confirmation.
func (s *session) putPending(a *pipeline.AgentAction) {
	s.mu.Lock()
	s.pending[a.ID] = a
	s.mu.Unlock()
}

// sessionManager creates sessions lazily, one per user id. A session's trust
// store is initialized exactly once, on first use after login, and lives
// until the frontend reports logout via the session-drop route. Memory is
// bounded by the concurrently-logged-in user population; there is no idle
// eviction.
type sessionManager struct {
	deps *Dependencies

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionManager(deps *Dependencies) *sessionManager {
	return &sessionManager{
		deps:     deps,
		sessions: make(map[string]*session),
	}
}

func (m *sessionManager) get(userID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}

	ts := trust.NewStore(trust.StoreConfig{
		Local:  m.deps.Local,
		Remote: m.deps.Remote,
		Logger: m.deps.Logger,
	})
	ts.Initialize(userID)
	if m.deps.ResyncSchedule != "" {
		if err := ts.StartResync(m.deps.ResyncSchedule); err != nil {
			m.deps.Logger.Warn("trust resync schedule rejected",
				zap.String("schedule", m.deps.ResyncSchedule),
				zap.Error(err),
			)
		}
	}

	s := &session{
		trust: ts,
		pipeline: pipeline.New(pipeline.Config{
			Registry: m.deps.Registry,
			Trust:    ts,
			Writer:   m.deps.Writer,
			Metrics:  m.deps.Metrics,
			Logger:   m.deps.Logger,
		}),
		pending: make(map[string]*pipeline.AgentAction),
	}
	m.sessions[userID] = s
	return s
}

// drop removes a user's session on logout: stops the resync cron, wipes
// trust state, and forgets any pending confirmations. Reports whether a
// session existed.
func (m *sessionManager) drop(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.trust.StopResync()
	s.trust.Clear()
	return true
}

// handleDropSession ends a user's session on logout. Trust answers for that
// user fall back to ask-everything until the next request re-initializes.
func (d *Dependencies) handleDropSession(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !d.sessions.drop(userID) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "No session for that user"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": "logged_out"})
}
