package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LsTool lists a directory's entries alphabetically, directories suffixed
// with `/` (§4.3, §6).
type LsTool struct{}

func (t *LsTool) Name() string { return "ls" }

func (t *LsTool) Description() string {
	return "List a directory's entries alphabetically; directories are suffixed with /."
}

func (t *LsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to list.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "Maximum number of entries to return.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *LsTool) Invoke(ctx context.Context, input json.RawMessage, cx ExecContext) (ToolResult, error) {
	var payload struct {
		Path  string `json:"path"`
		Limit *int   `json:"limit"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if payload.Path == "" {
		return ToolResult{IsError: true, Output: "path is required"}, nil
	}

	path, err := cx.Sandbox.ResolvePath(payload.Path, true)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names[i] = name
	}
	sort.Strings(names)

	truncated := false
	if payload.Limit != nil && *payload.Limit > 0 && len(names) > *payload.Limit {
		names = names[:*payload.Limit]
		truncated = true
	}

	return ToolResult{
		Output:   strings.Join(names, "\n"),
		Metadata: map[string]any{"count": len(names), "truncated": truncated},
	}, nil
}
