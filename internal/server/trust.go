package server

import (
	"net/http"

	"github.com/luminos-app/agentcore/internal/trust"
)

// handleGetTrust returns the user's full trust mapping, always total.
func (d *Dependencies) handleGetTrust(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "user_id is required"})
		return
	}

	sess := d.sessions.get(userID)
	writeJSON(w, http.StatusOK, trustToResp(userID, sess.trust.Settings()))
}

// handleUpdateTrust sets one category's trust level.
func (d *Dependencies) handleUpdateTrust(w http.ResponseWriter, r *http.Request) {
	var req UpdateTrustReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "user_id is required"})
		return
	}

	category := trust.Category(req.Category)
	level := trust.Level(req.Level)
	if !category.Valid() || !level.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "unknown category or level"})
		return
	}

	sess := d.sessions.get(req.UserID)
	sess.trust.Update(category, level)
	if d.Metrics != nil {
		d.Metrics.TrustUpdates.WithLabelValues(req.Category, req.Level).Inc()
	}
	writeJSON(w, http.StatusOK, trustToResp(req.UserID, sess.trust.Settings()))
}

// handleRevokeTrust resets every category to ask.
func (d *Dependencies) handleRevokeTrust(w http.ResponseWriter, r *http.Request) {
	var req RevokeTrustReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "user_id is required"})
		return
	}

	sess := d.sessions.get(req.UserID)
	sess.trust.RevokeAll()
	writeJSON(w, http.StatusOK, trustToResp(req.UserID, sess.trust.Settings()))
}

func trustToResp(userID string, s trust.Settings) TrustResp {
	settings := make(map[string]string, len(s))
	for c, l := range s {
		settings[string(c)] = string(l)
	}
	return TrustResp{UserID: userID, Settings: settings}
}
