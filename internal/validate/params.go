// Package validate checks proposal params against an action's declared
// parameters. The core pipeline does not call it — features own their input
// validation — but surfaces that accept untyped params from outside the
// process use it as a pre-flight check.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaFor builds a JSON Schema document for an action's declared
// parameters. Undeclared params are allowed — the declaration describes,
// it does not close the object.
func SchemaFor(decl []registry.ActionParameter) map[string]any {
	properties := make(map[string]any, len(decl))
	var required []string
	for _, p := range decl {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, v := range p.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Params validates a params map against the declared parameters. Returns a
// descriptive error on the first violation, nil when the params conform.
func Params(decl []registry.ActionParameter, params map[string]any) error {
	if len(decl) == 0 {
		return nil
	}

	schemaBytes, err := json.Marshal(SchemaFor(decl))
	if err != nil {
		return fmt.Errorf("validate: marshal schema: %w", err)
	}
	var schemaObj any
	if err := json.Unmarshal(schemaBytes, &schemaObj); err != nil {
		return fmt.Errorf("validate: unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("params.json", schemaObj); err != nil {
		return fmt.Errorf("validate: compile schema: %w", err)
	}
	sch, err := c.Compile("params.json")
	if err != nil {
		return fmt.Errorf("validate: compile schema: %w", err)
	}

	// Round-trip params through JSON so numbers and nested values carry the
	// types the validator expects.
	paramBytes, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("validate: params not serializable: %w", err)
	}
	var paramObj any
	if err := json.Unmarshal(paramBytes, &paramObj); err != nil {
		return fmt.Errorf("validate: params not valid JSON: %w", err)
	}

	if err := sch.Validate(paramObj); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}
