// Package tools implements the tool execution layer: a registry of named
// tools whose inputs are validated against a JSON Schema before dispatch,
// plus the concrete file and shell tools that read/write/search the local
// filesystem (§4.3).
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/openclaude/agentcore/internal/config"
	"github.com/openclaude/agentcore/internal/provider"
)

// ToolResult is the uniform result of a tool invocation (§4.3).
type ToolResult struct {
	Output   string
	IsError  bool
	Metadata map[string]any
}

// ExecContext carries everything a tool invocation needs beyond its input:
// the working directory, the sandbox boundary, an optional deadline, and
// an optional output sink. When Progress is non-nil, the bash tool copies
// its output there as it is produced. agent.Loop hands its ExecBase to
// every tool unchanged and does not connect Progress to
// Observer.OnToolProgress, so the loop never calls that hook.
type ExecContext struct {
	CWD      string
	Sandbox  *Sandbox
	Deadline time.Time // zero means no deadline
	Progress io.Writer // may be nil
}

// Tool is a single callable tool: a name, a JSON Schema for its input, and
// an invoke operation. Implementations should be stateless and safe for
// concurrent invocation, since the agent loop may run several tool calls
// from one assistant message concurrently (§4.5 step 6a).
type Tool interface {
	Name() string
	Description() string
	// Schema returns the tool's input JSON Schema as a JSON-marshalable
	// document. Go-typed values such as []string are fine: the registry
	// round-trips it through encoding/json before compiling it, so
	// jsonschema.Compiler.AddResource always sees the shape json.Unmarshal
	// into `any` produces.
	Schema() map[string]any
	Invoke(ctx context.Context, input json.RawMessage, cx ExecContext) (ToolResult, error)
}

// registered pairs a Tool with its compiled schema.
type registered struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry is the name→handler map described in §9's dynamic-dispatch
// design note: dispatch is a single map lookup, and everything
// tool-specific lives behind the Tool interface and its schema.
type Registry struct {
	tools map[string]*registered
	order []string
}

// NewRegistry compiles every tool's schema once and returns a ready
// registry. A schema that fails to compile is a programmer error (not a
// runtime condition), so NewRegistry fails fast rather than deferring the
// problem to the first call.
func NewRegistry(toolList []Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*registered, len(toolList))}
	for _, t := range toolList {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}
		compiler := jsonschema.NewCompiler()
		resourceID := "schema:" + name
		schemaJSON, err := json.Marshal(t.Schema())
		if err != nil {
			return nil, fmt.Errorf("tool %s: marshal schema: %w", name, err)
		}
		var schemaDoc any
		if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
			return nil, fmt.Errorf("tool %s: decode schema: %w", name, err)
		}
		if err := compiler.AddResource(resourceID, schemaDoc); err != nil {
			return nil, fmt.Errorf("tool %s: add schema resource: %w", name, err)
		}
		schema, err := compiler.Compile(resourceID)
		if err != nil {
			return nil, fmt.Errorf("tool %s: compile schema: %w", name, err)
		}
		r.tools[name] = &registered{tool: t, schema: schema}
		r.order = append(r.order, name)
	}
	return r, nil
}

// Names returns registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out) // deterministic for spec listings; registration order is preserved in Specs
	return out
}

// Specs returns the provider-facing tool specs for the Context sent to the
// adapter (§4.2's Context.Tools).
func (r *Registry) Specs() []provider.ToolSpec {
	specs := make([]provider.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		reg := r.tools[name]
		schemaJSON, _ := json.Marshal(reg.tool.Schema())
		specs = append(specs, provider.ToolSpec{
			Name:        name,
			Description: reg.tool.Description(),
			InputSchema: schemaJSON,
		})
	}
	return specs
}

// Invoke validates input against the tool's schema and, on success,
// dispatches to it. Validation failure and an unknown tool name both
// yield a ToolResult with IsError=true and a machine-readable metadata
// entry, per §4.3 — they are never returned as Go errors, since both are
// ordinary, expected outcomes the model can react to on its next turn.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage, cx ExecContext) ToolResult {
	reg, ok := r.tools[name]
	if !ok {
		return ToolResult{
			IsError:  true,
			Output:   fmt.Sprintf("unknown tool: %s", name),
			Metadata: map[string]any{"error_kind": "unknown_tool"},
		}
	}

	var doc any
	if err := json.Unmarshal(input, &doc); err != nil {
		return ToolResult{
			IsError:  true,
			Output:   fmt.Sprintf("invalid input json: %v", err),
			Metadata: map[string]any{"error_kind": "validation"},
		}
	}
	if err := reg.schema.Validate(doc); err != nil {
		return ToolResult{
			IsError:  true,
			Output:   fmt.Sprintf("input failed schema validation: %v", err),
			Metadata: map[string]any{"error_kind": "validation"},
		}
	}

	result, err := reg.tool.Invoke(ctx, input, cx)
	if err != nil {
		return ToolResult{
			IsError:  true,
			Output:   err.Error(),
			Metadata: map[string]any{"error_kind": "execution"},
		}
	}
	return result
}

// DefaultTools returns the seven file/shell tools §4.3/§6 name, in a
// stable order.
func DefaultTools(limits config.Limits) []Tool {
	return []Tool{
		&ReadTool{},
		&WriteTool{},
		&EditTool{},
		&GrepTool{},
		&FindTool{},
		&LsTool{},
		&BashTool{Limits: limits},
	}
}
