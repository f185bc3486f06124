package registry

import (
	"context"

	"github.com/luminos-app/agentcore/internal/trust"
)

// CapabilityCategory classifies what kind of observation a capability grants.
type CapabilityCategory string

const (
	CapabilityRead     CapabilityCategory = "read"
	CapabilityWrite    CapabilityCategory = "write"
	CapabilityNavigate CapabilityCategory = "navigate"
)

// Capability describes something the assistant can observe about a feature.
// Immutable once registered; owned by the registering feature.
type Capability struct {
	ID          string             `json:"id"`
	Label       string             `json:"label"`
	Description string             `json:"description"`
	Category    CapabilityCategory `json:"category"`
}

// ParameterType is the declared type of one action input.
type ParameterType string

const (
	ParameterString  ParameterType = "string"
	ParameterNumber  ParameterType = "number"
	ParameterBoolean ParameterType = "boolean"
)

// ActionParameter declares one input to an action. Declarative only — the
// core describes parameters to the model but does not enforce them; features
// validate their own inputs.
type ActionParameter struct {
	Name        string        `json:"name"`
	Type        ParameterType `json:"type"`
	Required    bool          `json:"required"`
	Description string        `json:"description"`
	Enum        []string      `json:"enum,omitempty"`
}

// ActionResult is the normalized outcome of executing an action. Message is
// human-readable and shown to both user and model; Data is an arbitrary
// payload that never reaches the audit log.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ExecuteFunc is the feature-supplied side effect behind an action.
// Expected business failures come back as Success=false, not as an error;
// errors are reserved for truly unexpected faults, which the pipeline
// converts into a failure result anyway.
type ExecuteFunc func(ctx context.Context, params map[string]any, userID string) (*ActionResult, error)

// ActionDefinition is an executable capability. The core never constructs
// one, only invokes it.
type ActionDefinition struct {
	ID                   string
	Label                string
	Description          string
	Category             trust.Category
	RequiresConfirmation bool // feature-declared default; trust policy may override
	Parameters           []ActionParameter
	Execute              ExecuteFunc
}

// ContextFunc lazily computes a feature-specific textual summary for the
// assistant's context. May fail or panic; the registry isolates both.
type ContextFunc func() (string, error)

// PageRegistration is a feature's full contribution: what the assistant may
// see and do while the feature is mounted. Lifecycle is owned by the
// feature — created on mount, removed on unmount.
type PageRegistration struct {
	PageID       string
	Name         string
	Capabilities []Capability
	Actions      []ActionDefinition
	GetContext   ContextFunc
}

// ActionMatch is the page/action pair located by FindAction.
type ActionMatch struct {
	Page   *PageRegistration
	Action *ActionDefinition
}
