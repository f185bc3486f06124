package server

import (
	"net/http"

	"github.com/luminos-app/agentcore/internal/pipeline"
	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/luminos-app/agentcore/internal/validate"
	"go.uber.org/zap"
)

// handleProposeAction accepts a model tool call, classifies it against the
// user's trust policy, and either executes immediately (auto-trusted) or
// parks it for confirmation.
func (d *Dependencies) handleProposeAction(w http.ResponseWriter, r *http.Request) {
	var req ProposeActionReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.UserID == "" || req.ToolName == "" || req.ToolCallID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "user_id, tool_name, and tool_call_id are required"})
		return
	}

	// Pre-flight parameter check for registered actions with declarations.
	// Advisory only for in-process features; authoritative for webhook pages
	// whose handler is outside this process.
	if match := d.Registry.FindAction(req.ToolName); match != nil && len(match.Action.Parameters) > 0 {
		if err := validate.Params(match.Action.Parameters, req.Params); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Detail: err.Error()})
			return
		}
	}

	sess := d.sessions.get(req.UserID)
	action := sess.pipeline.CreateAgentAction(pipeline.ProposedAction{
		ToolName:    req.ToolName,
		ToolCallID:  req.ToolCallID,
		Label:       req.Label,
		Description: req.Description,
		Category:    req.Category,
		Params:      req.Params,
	})

	if action.Status() == pipeline.StatusProposed {
		sess.putPending(action)
		writeJSON(w, http.StatusAccepted, actionToResp(action))
		return
	}

	// Auto-trusted: execute inline.
	result := sess.pipeline.ExecuteAgentAction(r.Context(), action, req.UserID)
	d.Logger.Debug("auto-trusted action executed",
		zap.String("action_id", action.ID),
		zap.Bool("success", result.Success),
	)
	writeJSON(w, http.StatusOK, actionToResp(action))
}

// handleApproveAction resolves a pending confirmation as approved and
// executes the action.
func (d *Dependencies) handleApproveAction(w http.ResponseWriter, r *http.Request) {
	actionID := r.PathValue("action_id")

	var req ApproveActionReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "user_id is required"})
		return
	}

	sess := d.sessions.get(req.UserID)
	action, ok := sess.takePending(actionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "No pending action with that id"})
		return
	}

	sess.pipeline.ApproveAgentAction(r.Context(), action, req.AlwaysTrust, req.UserID)
	writeJSON(w, http.StatusOK, actionToResp(action))
}

// handleDenyAction resolves a pending confirmation as denied.
func (d *Dependencies) handleDenyAction(w http.ResponseWriter, r *http.Request) {
	actionID := r.PathValue("action_id")

	var req DenyActionReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "user_id is required"})
		return
	}

	sess := d.sessions.get(req.UserID)
	action, ok := sess.takePending(actionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "No pending action with that id"})
		return
	}

	sess.pipeline.DenyAgentAction(action, req.UserID)
	writeJSON(w, http.StatusOK, actionToResp(action))
}

// handleCapabilities returns the deterministic capability summary used as
// system-prompt material.
func (d *Dependencies) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TextResp{Text: d.Registry.CapabilitySummary()})
}

// handleContext returns the per-turn enriched context.
func (d *Dependencies) handleContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TextResp{Text: d.Registry.EnrichedContext()})
}

func actionToResp(a *pipeline.AgentAction) ActionResp {
	resp := ActionResp{
		ActionID:  a.ID,
		ToolName:  a.ToolName,
		Label:     a.Label,
		Category:  a.Category,
		Status:    string(a.Status()),
		CreatedAt: a.CreatedAt,
	}
	if result := a.Result(); result != nil {
		resp.Result = resultToResp(result)
	}
	return resp
}

func resultToResp(r *registry.ActionResult) *ActionResultResp {
	return &ActionResultResp{
		Success: r.Success,
		Message: r.Message,
		Data:    r.Data,
	}
}
