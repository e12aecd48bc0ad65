// Package tool defines the capability contract the model calls through:
// an id, a one-line description, a JSON-schema parameter shape, and an
// execute function. The registry is a flat id→Tool map; agent-level
// filtering happens in the engine, never here.
package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Tool is one capability exposed to the model.
type Tool interface {
	ID() string
	Description() string

	// Parameters returns the tool's JSON Schema, passed to the provider so
	// the model can shape its arguments.
	Parameters() json.RawMessage

	// Execute runs the tool. It may block on I/O and must honor ctx.
	Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error)
}

// Context carries per-call state into Execute.
type Context struct {
	SessionID string
	CallID    string
	Agent     string
	WorkDir   string
}

// Result is a tool outcome: a short title, the output handed back to the
// model, and free-form metadata for diagnostics.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ArgNormalizer is implemented by tools whose accepted call shapes are
// looser than their schema. Models routinely emit a bare string where an
// object is expected, or prefix a path with a "path:" label; NormalizeArgs
// rewrites those into the canonical shape so the call succeeds instead of
// failing the turn.
type ArgNormalizer interface {
	// NormalizeArgs rewrites raw into the tool's canonical input shape,
	// given the working directory in effect for the call. It returns raw
	// unchanged when no normalization applies.
	NormalizeArgs(raw json.RawMessage, workDir string) json.RawMessage
}

// normalizeStringArg coerces a bare JSON string into {"<field>": value},
// stripping a leading "path:" or "path :" label first. Anything that isn't
// a JSON string is returned unchanged.
func normalizeStringArg(raw json.RawMessage, field string) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed[0] != '"' {
		return raw
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	s = stripPathLabel(s)

	obj, err := json.Marshal(map[string]string{field: s})
	if err != nil {
		return raw
	}
	return obj
}

// stripPathLabel removes a "path:" or "path :" prefix some models prepend
// to a raw path value.
func stripPathLabel(s string) string {
	lower := strings.ToLower(s)
	for _, label := range []string{"path:", "path :"} {
		if strings.HasPrefix(lower, label) {
			return strings.TrimSpace(s[len(label):])
		}
	}
	return s
}

// SchemaInfo converts a tool's JSON Schema into the eino tool descriptor
// the provider layer sends with a request.
func SchemaInfo(t Tool) *schema.ToolInfo {
	var js struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	params := map[string]*schema.ParameterInfo{}

	if err := json.Unmarshal(t.Parameters(), &js); err == nil {
		required := map[string]bool{}
		for _, r := range js.Required {
			required[r] = true
		}
		for name, prop := range js.Properties {
			kind := schema.String
			switch prop.Type {
			case "integer":
				kind = schema.Integer
			case "number":
				kind = schema.Number
			case "boolean":
				kind = schema.Boolean
			case "array":
				kind = schema.Array
			case "object":
				kind = schema.Object
			}
			params[name] = &schema.ParameterInfo{Type: kind, Desc: prop.Description, Required: required[name]}
		}
	}

	return &schema.ToolInfo{
		Name:        t.ID(),
		Desc:        t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}
