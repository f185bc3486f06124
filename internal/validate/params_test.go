package validate

import (
	"strings"
	"testing"

	"github.com/luminos-app/agentcore/internal/registry"
)

var likeParams = []registry.ActionParameter{
	{Name: "storyId", Type: registry.ParameterString, Required: true, Description: "Story to like"},
	{Name: "count", Type: registry.ParameterNumber, Description: "Reaction count"},
	{Name: "mood", Type: registry.ParameterString, Enum: []string{"happy", "sad"}},
}

func TestParams_Valid(t *testing.T) {
	err := Params(likeParams, map[string]any{
		"storyId": "story-42",
		"count":   3,
		"mood":    "happy",
	})
	if err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}

func TestParams_MissingRequired(t *testing.T) {
	err := Params(likeParams, map[string]any{"count": 1})
	if err == nil {
		t.Fatal("missing required param accepted")
	}
	if !strings.Contains(err.Error(), "storyId") {
		t.Fatalf("error should name the missing param: %v", err)
	}
}

func TestParams_WrongType(t *testing.T) {
	err := Params(likeParams, map[string]any{
		"storyId": "story-42",
		"count":   "three",
	})
	if err == nil {
		t.Fatal("string passed for a number param")
	}
}

func TestParams_EnumViolation(t *testing.T) {
	err := Params(likeParams, map[string]any{
		"storyId": "story-42",
		"mood":    "furious",
	})
	if err == nil {
		t.Fatal("out-of-enum value accepted")
	}
}

func TestParams_UndeclaredParamsAllowed(t *testing.T) {
	err := Params(likeParams, map[string]any{
		"storyId": "story-42",
		"extra":   true,
	})
	if err != nil {
		t.Fatalf("undeclared param should pass through: %v", err)
	}
}

func TestParams_NoDeclaration(t *testing.T) {
	if err := Params(nil, map[string]any{"anything": "goes"}); err != nil {
		t.Fatalf("empty declaration should accept anything: %v", err)
	}
}

func TestSchemaFor_Shape(t *testing.T) {
	schema := SchemaFor(likeParams)

	if schema["type"] != "object" {
		t.Fatalf("type = %v, want object", schema["type"])
	}
	required, _ := schema["required"].([]string)
	if len(required) != 1 || required[0] != "storyId" {
		t.Fatalf("required = %v", schema["required"])
	}
	props := schema["properties"].(map[string]any)
	mood := props["mood"].(map[string]any)
	enum, _ := mood["enum"].([]any)
	if len(enum) != 2 {
		t.Fatalf("mood enum = %v", mood["enum"])
	}
}
