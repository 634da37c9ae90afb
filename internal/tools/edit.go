package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EditTool replaces a single exact occurrence of old with new in a file
// (§4.3: "requires the old string to occur exactly once"; §6).
type EditTool struct{}

func (t *EditTool) Name() string { return "edit" }

func (t *EditTool) Description() string {
	return "Replace one exact occurrence of `old` with `new` in a file. Fails if `old` occurs zero or more than once."
}

func (t *EditTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file to edit.",
			},
			"old": map[string]any{
				"type":        "string",
				"description": "Exact text to replace; must occur exactly once in the file.",
			},
			"new": map[string]any{
				"type":        "string",
				"description": "Replacement text.",
			},
		},
		"required": []string{"path", "old", "new"},
	}
}

func (t *EditTool) Invoke(ctx context.Context, input json.RawMessage, cx ExecContext) (ToolResult, error) {
	var payload struct {
		Path string `json:"path"`
		Old  string `json:"old"`
		New  string `json:"new"`
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

	info, err := os.Stat(path)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}
	if info.IsDir() {
		return ToolResult{IsError: true, Output: fmt.Sprintf("%s is a directory", path)}, nil
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}
	content := string(original)

	count := strings.Count(content, payload.Old)
	switch count {
	case 0:
		return ToolResult{
			IsError:  true,
			Output:   "NotFound: old string does not occur in the file",
			Metadata: map[string]any{"error_kind": "NotFound"},
		}, nil
	case 1:
		// proceed
	default:
		return ToolResult{
			IsError:  true,
			Output:   fmt.Sprintf("Ambiguous: old string occurs %d times", count),
			Metadata: map[string]any{"error_kind": "Ambiguous"},
		}, nil
	}

	updated := strings.Replace(content, payload.Old, payload.New, 1)

	if err := writeAtomic(path, []byte(updated), info.Mode().Perm()); err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("write failed: %v", err)}, nil
	}

	return ToolResult{Output: diffPreview(payload.Old, payload.New)}, nil
}

// diffPreview renders a minimal before/after preview of the replaced text,
// in the same spirit as the teacher's unified-diff-flavored edit output
// without pulling in a diff library for a single-hunk replacement.
func diffPreview(old, new string) string {
	var b strings.Builder
	for _, line := range strings.Split(old, "\n") {
		fmt.Fprintf(&b, "-%s\n", line)
	}
	for _, line := range strings.Split(new, "\n") {
		fmt.Fprintf(&b, "+%s\n", line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// writeAtomic writes data to a temp file in dir(path) and renames it into
// place, so a crash mid-write never leaves a partially-written file (§4.3:
// "write to a temporary file in the same directory, then rename").
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".agentcore-*")
	if err != nil {
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
