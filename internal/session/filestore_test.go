package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cwd := filepath.Join(dir, "work", "proj")

	fs, err := CreateFile(dir, cwd)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	u1, err := fs.AppendMessage(Message{Role: RoleUser, Content: []ContentBlock{TextBlock("hi")}})
	if err != nil {
		t.Fatalf("append user: %v", err)
	}
	a1, err := fs.AppendMessage(Message{Role: RoleAssistant, Content: []ContentBlock{TextBlock("hello")}})
	if err != nil {
		t.Fatalf("append assistant: %v", err)
	}
	path := fs.Path()
	if err := fs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer reopened.Close()

	path2 := reopened.ActivePath()
	if len(path2) != 2 {
		t.Fatalf("expected 2 messages on active path, got %d", len(path2))
	}
	if path2[0].ID != u1.ID || path2[1].ID != a1.ID {
		t.Fatalf("active path out of order: %+v", path2)
	}
	if reopened.Cursor() != a1.ID {
		t.Fatalf("expected cursor %s, got %s", a1.ID, reopened.Cursor())
	}
}

func TestFileStorePartialWriteRecovery(t *testing.T) {
	dir := t.TempDir()
	cwd := filepath.Join(dir, "proj")

	fs, err := CreateFile(dir, cwd)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := fs.AppendMessage(Message{Role: RoleUser, Content: []ContentBlock{TextBlock("one")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := fs.AppendMessage(Message{Role: RoleAssistant, Content: []ContentBlock{TextBlock("two")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	path := fs.Path()
	if err := fs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	goodLen := len(full)

	// Simulate a crash mid-write: append a truncated trailing record with
	// no terminating newline.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString(`{"type":"message","id":"broken`); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	f.Close()

	reopened, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath after partial write: %v", err)
	}
	defer reopened.Close()

	if len(reopened.ActivePath()) != 2 {
		t.Fatalf("expected the 2 valid messages to survive recovery, got %d", len(reopened.ActivePath()))
	}

	recovered, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recovered: %v", err)
	}
	if len(recovered) != goodLen {
		t.Fatalf("expected truncation back to %d bytes, got %d", goodLen, len(recovered))
	}

	// Further appends after recovery must succeed.
	if _, err := reopened.AppendMessage(Message{Role: RoleUser, Content: []ContentBlock{TextBlock("three")}}); err != nil {
		t.Fatalf("append after recovery: %v", err)
	}
}

func TestFileStoreBranching(t *testing.T) {
	dir := t.TempDir()
	cwd := filepath.Join(dir, "proj")

	fs, err := CreateFile(dir, cwd)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer fs.Close()

	var msgs []Message
	for i := 0; i < 5; i++ {
		m, err := fs.AppendMessage(Message{Role: RoleUser, Content: []ContentBlock{TextBlock("m")}})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		msgs = append(msgs, m)
	}

	if err := fs.Fork(msgs[2].ID); err != nil {
		t.Fatalf("fork: %v", err)
	}
	branch, err := fs.AppendMessage(Message{Role: RoleUser, Content: []ContentBlock{TextBlock("branch")}})
	if err != nil {
		t.Fatalf("append branch: %v", err)
	}
	if branch.Parent != msgs[2].ID {
		t.Fatalf("expected branch parent %s, got %s", msgs[2].ID, branch.Parent)
	}

	leaves := fs.Leaves()
	if len(leaves) != 2 {
		t.Fatalf("expected 2 leaves after branching, got %d: %v", len(leaves), leaves)
	}
}

func TestFileStoreLockBusy(t *testing.T) {
	dir := t.TempDir()
	cwd := filepath.Join(dir, "proj")

	fs, err := CreateFile(dir, cwd)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer fs.Close()

	if _, err := OpenPath(fs.Path()); err == nil {
		t.Fatalf("expected ErrSessionBusy opening an already-locked session")
	}
}

func TestHeaderJSONShape(t *testing.T) {
	dir := t.TempDir()
	cwd := filepath.Join(dir, "proj")
	fs, err := CreateFile(dir, cwd)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer fs.Close()

	raw, err := os.ReadFile(fs.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	firstLine := raw
	if idx := indexByte(raw, '\n'); idx >= 0 {
		firstLine = raw[:idx]
	}
	if err := json.Unmarshal(firstLine, &doc); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if doc["type"] != "session" {
		t.Fatalf("expected type session, got %v", doc["type"])
	}
	if doc["version"].(float64) != SchemaVersion {
		t.Fatalf("expected version %d, got %v", SchemaVersion, doc["version"])
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
