package server

import (
	"time"

	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/luminos-app/agentcore/internal/trust"
)

// ErrorResp is the uniform error body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

// ProposeActionReq is the model orchestrator's request to run a tool call.
type ProposeActionReq struct {
	UserID      string         `json:"user_id"`
	ToolName    string         `json:"tool_name"`
	ToolCallID  string         `json:"tool_call_id"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Category    trust.Category `json:"category,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// ActionResultResp is the reduced result view returned to callers.
type ActionResultResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ActionResp describes an action's state after an operation.
type ActionResp struct {
	ActionID  string            `json:"action_id"`
	ToolName  string            `json:"tool_name"`
	Label     string            `json:"label,omitempty"`
	Category  trust.Category    `json:"category"`
	Status    string            `json:"status"`
	Result    *ActionResultResp `json:"result,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ApproveActionReq carries the user's approval of a pending action.
type ApproveActionReq struct {
	UserID      string `json:"user_id"`
	AlwaysTrust bool   `json:"always_trust"`
}

// DenyActionReq carries the user's denial of a pending action.
type DenyActionReq struct {
	UserID string `json:"user_id"`
}

// TrustResp returns a user's full trust mapping.
type TrustResp struct {
	UserID   string            `json:"user_id"`
	Settings map[string]string `json:"settings"`
}

// UpdateTrustReq sets one category's trust level.
type UpdateTrustReq struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Level    string `json:"level"`
}

// RevokeTrustReq resets every category to ask.
type RevokeTrustReq struct {
	UserID string `json:"user_id"`
}

// WebhookActionDef declares one action whose side effect runs behind a
// feature-owned webhook endpoint.
type WebhookActionDef struct {
	ID                   string                     `json:"id"`
	Label                string                     `json:"label"`
	Description          string                     `json:"description"`
	Category             trust.Category             `json:"category"`
	RequiresConfirmation bool                       `json:"requires_confirmation"`
	Parameters           []registry.ActionParameter `json:"parameters,omitempty"`
	ExecuteURL           string                     `json:"execute_url"`
}

// RegisterPageReq is a feature's registration payload.
type RegisterPageReq struct {
	PageID       string                `json:"page_id"`
	Name         string                `json:"name"`
	Capabilities []registry.Capability `json:"capabilities,omitempty"`
	Actions      []WebhookActionDef    `json:"actions,omitempty"`
	ContextURL   string                `json:"context_url,omitempty"`
}

// PageResp acknowledges a page mutation.
type PageResp struct {
	PageID  string `json:"page_id"`
	Name    string `json:"name"`
	Actions int    `json:"actions"`
}

// TextResp wraps a plain-text payload (capability summary, context).
type TextResp struct {
	Text string `json:"text"`
}

// webhookExecuteReq is the body POSTed to a feature's execute_url.
type webhookExecuteReq struct {
	ActionID string         `json:"action_id"`
	UserID   string         `json:"user_id"`
	Params   map[string]any `json:"params"`
}
