package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGrepFindsMatchesWithContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	content := "alpha\nbeta\nneedle\ngamma\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cx := newTestExecContext(t, dir)
	tool := &GrepTool{}
	input, _ := json.Marshal(map[string]any{"pattern": "needle", "path": dir, "context": 1})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if !strings.Contains(result.Output, "needle") {
		t.Fatalf("expected match in output, got %q", result.Output)
	}
	if !strings.Contains(result.Output, "beta") {
		t.Fatalf("expected one line of context before match, got %q", result.Output)
	}
	if result.Metadata["matches"].(int) != 1 {
		t.Fatalf("expected 1 match, got %v", result.Metadata["matches"])
	}
}

func TestGrepRejectsInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	cx := newTestExecContext(t, dir)
	tool := &GrepTool{}
	input, _ := json.Marshal(map[string]any{"pattern": "("})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected invalid regex to be reported as an error result")
	}
}

func TestGrepRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "match"
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cx := newTestExecContext(t, dir)
	tool := &GrepTool{}
	input, _ := json.Marshal(map[string]any{"pattern": "match", "path": dir, "limit": 3})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Metadata["matches"].(int) != 3 {
		t.Fatalf("expected limit of 3 matches, got %v", result.Metadata["matches"])
	}
}
