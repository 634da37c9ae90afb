package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestExecContext(t *testing.T, dir string) ExecContext {
	t.Helper()
	return ExecContext{CWD: dir, Sandbox: NewSandbox([]string{dir})}
}

func TestEditRequiresExactlyOneOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("foo bar foo"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cx := newTestExecContext(t, dir)
	tool := &EditTool{}

	input, _ := json.Marshal(map[string]string{"path": path, "old": "foo", "new": "baz"})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.IsError || result.Metadata["error_kind"] != "Ambiguous" {
		t.Fatalf("expected Ambiguous error, got %+v", result)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "foo bar foo" {
		t.Fatalf("file was modified despite ambiguous match: %q", data)
	}
}

func TestEditNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cx := newTestExecContext(t, dir)
	tool := &EditTool{}

	input, _ := json.Marshal(map[string]string{"path": path, "old": "missing", "new": "x"})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.IsError || result.Metadata["error_kind"] != "NotFound" {
		t.Fatalf("expected NotFound error, got %+v", result)
	}
}

func TestEditRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	original := "line one\nline two\nline three\n"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cx := newTestExecContext(t, dir)
	tool := &EditTool{}

	fwd, _ := json.Marshal(map[string]string{"path": path, "old": "line two", "new": "line TWO"})
	if result, err := tool.Invoke(context.Background(), fwd, cx); err != nil || result.IsError {
		t.Fatalf("forward edit failed: %+v, err=%v", result, err)
	}

	back, _ := json.Marshal(map[string]string{"path": path, "old": "line TWO", "new": "line two"})
	if result, err := tool.Invoke(context.Background(), back, cx); err != nil || result.IsError {
		t.Fatalf("reverse edit failed: %+v, err=%v", result, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != original {
		t.Fatalf("round trip did not restore byte-identical content: %q != %q", data, original)
	}
}

func TestEditAtomicWritePreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("foo"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cx := newTestExecContext(t, dir)
	tool := &EditTool{}

	input, _ := json.Marshal(map[string]string{"path": path, "old": "foo", "new": "bar"})
	if result, err := tool.Invoke(context.Background(), input, cx); err != nil || result.IsError {
		t.Fatalf("edit failed: %+v, err=%v", result, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600 preserved, got %v", info.Mode().Perm())
	}
}
