package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteCreatesFileAndParentDirs(t *testing.T) {
	dir := t.TempDir()
	cx := newTestExecContext(t, dir)
	tool := &WriteTool{}

	path := filepath.Join(dir, "nested", "out.txt")
	input, _ := json.Marshal(map[string]string{"path": path, "content": "hello world"})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil || result.IsError {
		t.Fatalf("write failed: %+v, err=%v", result, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("unexpected content: %q", data)
	}
	if result.Metadata["bytes_written"] != len("hello world") {
		t.Fatalf("expected bytes_written metadata, got %+v", result.Metadata)
	}
}

func TestReadOffsetAndLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	content := "l1\nl2\nl3\nl4\nl5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cx := newTestExecContext(t, dir)
	tool := &ReadTool{}

	input, _ := json.Marshal(map[string]any{"path": path, "offset": 2, "limit": 2})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil || result.IsError {
		t.Fatalf("read failed: %+v, err=%v", result, err)
	}
	if !strings.Contains(result.Output, "l2") || !strings.Contains(result.Output, "l3") {
		t.Fatalf("expected lines 2-3 in windowed output, got %q", result.Output)
	}
	if strings.Contains(result.Output, "l4") {
		t.Fatalf("expected limit to exclude line 4, got %q", result.Output)
	}
}

func TestReadRejectsBinaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin.dat")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cx := newTestExecContext(t, dir)
	tool := &ReadTool{}

	input, _ := json.Marshal(map[string]string{"path": path})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected binary file to be rejected")
	}
}

func TestFindSortsByMtimeDesc(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "older.txt")
	newer := filepath.Join(dir, "newer.txt")
	if err := os.WriteFile(older, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(newer, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	newTime := mustStat(t, newer).ModTime()
	oldTime := newTime.Add(-1 * time.Hour)
	if err := os.Chtimes(older, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	cx := newTestExecContext(t, dir)
	tool := &FindTool{}
	input, _ := json.Marshal(map[string]string{"pattern": "*.txt", "path": dir})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil || result.IsError {
		t.Fatalf("find failed: %+v, err=%v", result, err)
	}
	lines := strings.Split(strings.TrimSpace(result.Output), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "newer.txt") {
		t.Fatalf("expected newer.txt first, got %v", lines)
	}
}

func TestLsSuffixesDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cx := newTestExecContext(t, dir)
	tool := &LsTool{}
	input, _ := json.Marshal(map[string]string{"path": dir})
	result, err := tool.Invoke(context.Background(), input, cx)
	if err != nil || result.IsError {
		t.Fatalf("ls failed: %+v, err=%v", result, err)
	}
	if !strings.Contains(result.Output, "sub/") {
		t.Fatalf("expected directory suffixed with /, got %q", result.Output)
	}
	if !strings.Contains(result.Output, "file.txt") {
		t.Fatalf("expected file.txt listed, got %q", result.Output)
	}
}

func mustStat(t *testing.T, path string) os.FileInfo {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	return info
}
