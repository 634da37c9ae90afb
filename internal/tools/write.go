package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteTool writes full file contents to disk, atomically (§4.3, §6).
type WriteTool struct{}

func (t *WriteTool) Name() string { return "write" }

func (t *WriteTool) Description() string {
	return "Write content to a file, creating it (and parent directories) if needed."
}

func (t *WriteTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file to write.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Full file contents to write.",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteTool) Invoke(ctx context.Context, input json.RawMessage, cx ExecContext) (ToolResult, error) {
	var payload struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if payload.Path == "" {
		return ToolResult{IsError: true, Output: "path is required"}, nil
	}

	path, err := cx.Sandbox.ResolvePath(payload.Path, false)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}

	if parent := filepath.Dir(path); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return ToolResult{IsError: true, Output: err.Error()}, nil
		}
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return ToolResult{IsError: true, Output: "path is a directory"}, nil
		}
		mode = info.Mode().Perm()
	} else if !os.IsNotExist(err) {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}

	if err := writeAtomic(path, []byte(payload.Content), mode); err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("write failed: %v", err)}, nil
	}

	return ToolResult{
		Output:   fmt.Sprintf("wrote %d bytes to %s", len(payload.Content), path),
		Metadata: map[string]any{"bytes_written": len(payload.Content)},
	}, nil
}
