// Package pipeline is the authorization and execution state machine for
// model-proposed actions: classify against the trust policy, execute through
// the registry, and log every terminal outcome.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/luminos-app/agentcore/internal/metrics"
	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/luminos-app/agentcore/internal/storage"
	"github.com/luminos-app/agentcore/internal/trust"
	"go.uber.org/zap"
)

// Pipeline turns proposed tool calls into classified, executed, and audited
// agent actions. None of its operations return errors: every foreseeable
// failure is modeled as an ActionResult, so callers inspect Success and
// Message instead of wrapping calls in error handling.
type Pipeline struct {
	registry *registry.Registry
	trust    *trust.Store
	writer   storage.EventWriter
	metrics  *metrics.Metrics // nil disables instrumentation
	logger   *zap.Logger
}

// Config holds the pipeline's dependencies. Metrics may be nil.
type Config struct {
	Registry *registry.Registry
	Trust    *trust.Store
	Writer   storage.EventWriter
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		registry: cfg.Registry,
		trust:    cfg.Trust,
		writer:   cfg.Writer,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// CreateAgentAction classifies a proposal into an AgentAction. Pure
// classification: one trust read picks the initial status, nothing executes
// and nothing is logged. A proposal whose category is auto-trusted skips the
// proposed state entirely and starts out approved.
func (p *Pipeline) CreateAgentAction(proposal ProposedAction) *AgentAction {
	category := proposal.Category
	if !category.Valid() {
		category = trust.ResolveCategory(proposal.ToolName)
	}

	status := StatusApproved
	if p.trust.NeedsConfirmation(category) {
		status = StatusProposed
	}

	return &AgentAction{
		ID:          proposal.ToolCallID,
		ToolName:    proposal.ToolName,
		Label:       proposal.Label,
		Description: proposal.Description,
		Category:    category,
		Params:      proposal.Params,
		CreatedAt:   time.Now(),
		status:      status,
	}
}

// ExecuteAgentAction runs the action's registered handler and records the
// terminal outcome. Every return path that transitions the action writes
// exactly one audit entry. An action already in a terminal state is not
// re-executed: its recorded result comes back and no new entry is written,
// so a duplicate approval cannot double-fire a side effect.
func (p *Pipeline) ExecuteAgentAction(ctx context.Context, action *AgentAction, userID string) *registry.ActionResult {
	action.mu.Lock()
	if action.status.Terminal() {
		result := action.result
		action.mu.Unlock()
		if result != nil {
			return result
		}
		return &registry.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Action %q already reached state %s.", action.ToolName, action.Status()),
		}
	}
	action.status = StatusExecuting
	action.mu.Unlock()

	match := p.registry.FindAction(action.ToolName)
	if match == nil {
		// Legitimate race: the owning feature unmounted after the model
		// proposed the call.
		result := &registry.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Action %q is not available right now.", action.ToolName),
		}
		p.finish(action, userID, StatusFailed, result)
		return result
	}

	result, err := p.invoke(ctx, match.Action, action.Params, userID)
	if err != nil {
		message := err.Error()
		if message == "" {
			message = "The action could not be completed."
		}
		result = &registry.ActionResult{Success: false, Message: message}
		p.finish(action, userID, StatusFailed, result)
		return result
	}
	if result == nil {
		result = &registry.ActionResult{
			Success: false,
			Message: "The action returned no result.",
		}
	}

	status := StatusExecuted
	if !result.Success {
		status = StatusFailed
	}
	p.finish(action, userID, status, result)
	return result
}

// ApproveAgentAction records the user's approval and executes. With
// alwaysTrust, the category is elevated to auto before execution, so this
// and every later proposal in the same category benefit immediately. An
// approval arriving after the action already reached a terminal state (a
// late approve racing a deny) changes nothing: no elevation, no execution,
// the recorded result comes back.
func (p *Pipeline) ApproveAgentAction(ctx context.Context, action *AgentAction, alwaysTrust bool, userID string) *registry.ActionResult {
	action.mu.Lock()
	terminal := action.status.Terminal()
	if action.status == StatusProposed {
		action.status = StatusApproved
	}
	action.mu.Unlock()

	if alwaysTrust && !terminal {
		p.trust.Update(action.Category, trust.LevelAuto)
		if p.metrics != nil {
			p.metrics.TrustUpdates.WithLabelValues(string(action.Category), string(trust.LevelAuto)).Inc()
		}
	}

	return p.ExecuteAgentAction(ctx, action, userID)
}

// DenyAgentAction records the user's denial. Nothing executes; one denied
// audit entry is written. Calling it on an already-terminal action is safe
// and writes nothing.
func (p *Pipeline) DenyAgentAction(action *AgentAction, userID string) {
	result := &registry.ActionResult{
		Success: false,
		Message: "The user declined this action.",
	}

	action.mu.Lock()
	if action.status.Terminal() {
		action.mu.Unlock()
		return
	}
	action.status = StatusDenied
	action.result = result
	action.mu.Unlock()

	if p.metrics != nil {
		p.metrics.ActionsDenied.WithLabelValues(string(action.Category)).Inc()
	}
	p.logAction(userID, action, storage.StatusDenied, result)
}

// invoke runs the feature handler with panic isolation. Handlers are
// arbitrary feature code; a panic normalizes to an error like any other
// unexpected fault.
func (p *Pipeline) invoke(ctx context.Context, def *registry.ActionDefinition, params map[string]any, userID string) (result *registry.ActionResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("action handler panicked",
				zap.String("action_id", def.ID),
				zap.Any("panic", rec),
			)
			result = nil
			err = fmt.Errorf("action handler panicked: %v", rec)
		}
	}()
	return def.Execute(ctx, params, userID)
}

// finish records a terminal transition: status, result, metrics, one audit
// entry.
func (p *Pipeline) finish(action *AgentAction, userID string, status Status, result *registry.ActionResult) {
	action.mu.Lock()
	action.status = status
	action.result = result
	action.mu.Unlock()

	if p.metrics != nil {
		switch status {
		case StatusExecuted:
			p.metrics.ActionsExecuted.WithLabelValues(string(action.Category)).Inc()
		case StatusFailed:
			p.metrics.ActionsFailed.WithLabelValues(string(action.Category)).Inc()
		}
	}

	logStatus := storage.StatusExecuted
	if status == StatusFailed {
		logStatus = storage.StatusFailed
	}
	p.logAction(userID, action, logStatus, result)
}

// logAction writes one audit entry. A logging failure is warned about and
// never masks the execution outcome already computed for the caller.
func (p *Pipeline) logAction(userID string, action *AgentAction, status string, result *registry.ActionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Warn("action log write failed",
				zap.String("action_id", action.ID),
				zap.Any("panic", rec),
			)
		}
	}()

	paramsJSON := "{}"
	if len(action.Params) > 0 {
		b, err := json.Marshal(action.Params)
		if err != nil {
			p.logger.Warn("action params not serializable",
				zap.String("action_id", action.ID),
				zap.Error(err),
			)
		} else {
			paramsJSON = string(b)
		}
	}

	p.writer.Write(&storage.ActionEvent{
		EventID:       uuid.New().String(),
		UserID:        userID,
		ActionID:      action.ID,
		ToolName:      action.ToolName,
		Category:      string(action.Category),
		ParamsJSON:    paramsJSON,
		Status:        status,
		ResultSuccess: result.Success,
		ResultMessage: result.Message,
		Timestamp:     time.Now(),
	})
}
