package pipeline

import (
	"sync"
	"time"

	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/luminos-app/agentcore/internal/trust"
)

// Status is an AgentAction's position in its lifecycle.
//
//	proposed --(trust==auto)--> approved --> executing --> executed
//	proposed --(user approves)--> approved --> executing --> executed
//	proposed --(user denies)--> denied
//	approved/executing --(handler error or Success=false)--> failed
//
// executed, denied, and failed are terminal; the rest are transient.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusApproved  Status = "approved"
	StatusExecuting Status = "executing"
	StatusExecuted  Status = "executed"
	StatusDenied    Status = "denied"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusDenied || s == StatusFailed
}

// ProposedAction is the model's raw tool-call request.
type ProposedAction struct {
	ToolName    string         `json:"tool_name"`
	ToolCallID  string         `json:"tool_call_id"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Category    trust.Category `json:"category"`
	Params      map[string]any `json:"params"`
}

// AgentAction is the pipeline's tracked instance of one proposed action.
// Mutated only by the pipeline; never persisted directly — only its terminal
// outcome reaches the action log.
type AgentAction struct {
	ID          string
	ToolName    string
	Label       string
	Description string
	Category    trust.Category
	Params      map[string]any
	CreatedAt   time.Time

	mu     sync.Mutex
	status Status
	result *registry.ActionResult
}

// Status returns the current lifecycle status.
func (a *AgentAction) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Result returns the recorded result, nil until a terminal transition.
func (a *AgentAction) Result() *registry.ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}
