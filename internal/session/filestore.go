package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// FileStore is the on-disk, append-only JSONL conversation log (§4.4).
// One FileStore instance owns one session file exclusively for its
// lifetime, enforced by an advisory lock (§4.4 "Append operation").
type FileStore struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	lock   *flock.Flock
	header Header
	tree   *tree
	cursor string
}

var _ Store = (*FileStore)(nil)

// CreateFile starts a brand new session file under
// <sessionsDir>/<project_slug>/<ISO-timestamp>.jsonl (§4.4) and writes its
// header as the first line.
func CreateFile(sessionsDir, cwd string) (*FileStore, error) {
	created := time.Now()
	path := NewSessionPath(sessionsDir, cwd, created)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("session: create project dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("session: acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrSessionBusy
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
		return nil, fmt.Errorf("session: open file: %w", err)
	}

	header := newHeader(cwd, created)
	fs := &FileStore{path: path, file: f, lock: lock, header: header, tree: newTree(), cursor: RootID}
	if err := fs.writeLine(header); err != nil {
		f.Close()
		return nil, err
	}
	return fs, nil
}

// OpenPath opens and replays an existing session file at an explicit path
// (§4.4 "--session <path>").
func OpenPath(path string) (*FileStore, error) {
	return openExisting(path)
}

// OpenContinue opens the most-recently-modified session file for cwd's
// project slug (§4.4 "--continue").
func OpenContinue(sessionsDir, cwd string) (*FileStore, error) {
	path, err := MostRecentSessionPath(sessionsDir, cwd)
	if err != nil {
		return nil, err
	}
	return openExisting(path)
}

func openExisting(path string) (*FileStore, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("session: acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrSessionBusy
	}

	header, t, cursor, err := loadAndRecover(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("session: reopen file: %w", err)
	}

	return &FileStore{path: path, file: f, lock: lock, header: header, tree: t, cursor: cursor}, nil
}

// loadAndRecover reads path line by line (§4.4 "Load operation"). A
// malformed final line is recovered by truncating the file to the last
// valid "\n" boundary (I5); any other malformed line, or a missing/invalid
// header, is ErrSessionCorrupt.
func loadAndRecover(path string) (Header, *tree, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Header{}, nil, "", fmt.Errorf("session: read file: %w", err)
	}

	t := newTree()
	cursor := RootID
	var header Header
	haveHeader := false

	pos := 0
	validThrough := 0
	lineNo := 0
	for pos < len(raw) {
		lineNo++
		nl := bytes.IndexByte(raw[pos:], '\n')
		var line []byte
		var consumed int
		if nl < 0 {
			line = raw[pos:]
			consumed = len(line)
		} else {
			line = raw[pos : pos+nl]
			consumed = nl + 1
		}
		isFinalLine := pos+consumed >= len(raw)
		line = bytes.TrimRight(line, "\r")

		if len(bytes.TrimSpace(line)) == 0 {
			pos += consumed
			validThrough = pos
			continue
		}

		var disc record
		parseErr := json.Unmarshal(line, &disc)
		if parseErr == nil && lineNo == 1 && disc.Type == "session" {
			parseErr = json.Unmarshal(line, &header)
			if parseErr == nil {
				haveHeader = true
			}
		} else if parseErr == nil && lineNo == 1 {
			return Header{}, nil, "", ErrSessionCorrupt
		} else if parseErr == nil {
			parseErr = insertRecord(t, disc.Type, line, &cursor)
		}

		if parseErr != nil {
			if isFinalLine {
				// Partial or malformed trailing write (I5): recover by
				// truncating to the last good boundary and stop reading.
				break
			}
			return Header{}, nil, "", fmt.Errorf("%w: line %d: %v", ErrSessionCorrupt, lineNo, parseErr)
		}

		pos += consumed
		validThrough = pos
	}

	if !haveHeader {
		return Header{}, nil, "", ErrSessionCorrupt
	}

	if validThrough < len(raw) {
		// Trailing bytes never resolved into a complete, valid record:
		// a partial write. Truncate to the last good boundary (I5).
		if err := os.Truncate(path, int64(validThrough)); err != nil {
			return Header{}, nil, "", fmt.Errorf("session: truncate partial write: %w", err)
		}
	}

	return header, t, cursor, nil
}

// insertRecord decodes one non-header record by its "type" discriminator
// and inserts it into t, advancing cursor to the new node's id.
func insertRecord(t *tree, recType string, line []byte, cursor *string) error {
	switch recType {
	case "message":
		var r messageRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		msg := Message{ID: r.ID, Parent: r.Parent, Role: r.Role, Content: r.Content, Timestamp: r.Timestamp}
		if err := t.insert(&node{id: msg.ID, parent: msg.Parent, kind: nodeMessage, message: &msg}); err != nil {
			return err
		}
		*cursor = msg.ID
	case "model_change":
		var r modelChangeRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		mc := &ModelChange{ID: r.ID, Parent: r.Parent, Model: r.Model, Timestamp: r.Timestamp}
		if err := t.insert(&node{id: mc.ID, parent: mc.Parent, kind: nodeModelChange, modelChange: mc}); err != nil {
			return err
		}
		*cursor = mc.ID
	case "thinking_change":
		var r thinkingChangeRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		tc := &ThinkingChange{ID: r.ID, Parent: r.Parent, Level: r.Level, Timestamp: r.Timestamp}
		if err := t.insert(&node{id: tc.ID, parent: tc.Parent, kind: nodeThinkingChange, thinkingChange: tc}); err != nil {
			return err
		}
		*cursor = tc.ID
	case "compaction":
		var r compactionRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		c := &Compaction{ID: r.ID, Parent: r.Parent, Summary: r.Summary, Timestamp: r.Timestamp}
		if err := t.insert(&node{id: c.ID, parent: c.Parent, kind: nodeCompaction, compaction: c}); err != nil {
			return err
		}
		*cursor = c.ID
	default:
		// Unrecognized record types are ignored rather than treated as
		// corruption, so a future schema addition degrades gracefully on
		// an older build.
	}
	return nil
}

func (fs *FileStore) Header() Header { return fs.header }

// writeLine marshals rec, appends it with a trailing '\n', and fsyncs
// (§4.4: "O_APPEND write-then-fsync semantics where available").
func (fs *FileStore) writeLine(rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}
	data = append(data, '\n')
	if _, err := fs.file.Write(data); err != nil {
		return fmt.Errorf("session: write record: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("session: fsync: %w", err)
	}
	return nil
}

func (fs *FileStore) AppendMessage(msg Message) (Message, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Parent == "" {
		msg.Parent = fs.cursor
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if !fs.tree.has(msg.Parent) {
		return Message{}, ErrUnknownParent
	}
	rec := messageRecord{Type: "message", ID: msg.ID, Parent: msg.Parent, Role: msg.Role, Content: msg.Content, Timestamp: msg.Timestamp}
	if err := fs.writeLine(rec); err != nil {
		return Message{}, err
	}
	if err := fs.tree.insert(&node{id: msg.ID, parent: msg.Parent, kind: nodeMessage, message: &msg}); err != nil {
		return Message{}, err
	}
	fs.cursor = msg.ID
	return msg, nil
}

func (fs *FileStore) AppendModelChange(model string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	id := uuid.NewString()
	ts := time.Now()
	rec := modelChangeRecord{Type: "model_change", ID: id, Parent: fs.cursor, Model: model, Timestamp: ts}
	if err := fs.writeLine(rec); err != nil {
		return err
	}
	mc := &ModelChange{ID: id, Parent: rec.Parent, Model: model, Timestamp: ts}
	if err := fs.tree.insert(&node{id: id, parent: rec.Parent, kind: nodeModelChange, modelChange: mc}); err != nil {
		return err
	}
	fs.cursor = id
	return nil
}

func (fs *FileStore) AppendThinkingChange(level string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	id := uuid.NewString()
	ts := time.Now()
	rec := thinkingChangeRecord{Type: "thinking_change", ID: id, Parent: fs.cursor, Level: level, Timestamp: ts}
	if err := fs.writeLine(rec); err != nil {
		return err
	}
	tc := &ThinkingChange{ID: id, Parent: rec.Parent, Level: level, Timestamp: ts}
	if err := fs.tree.insert(&node{id: id, parent: rec.Parent, kind: nodeThinkingChange, thinkingChange: tc}); err != nil {
		return err
	}
	fs.cursor = id
	return nil
}

func (fs *FileStore) AppendCompaction(summary string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	id := uuid.NewString()
	ts := time.Now()
	rec := compactionRecord{Type: "compaction", ID: id, Parent: fs.cursor, Summary: summary, Timestamp: ts}
	if err := fs.writeLine(rec); err != nil {
		return err
	}
	c := &Compaction{ID: id, Parent: rec.Parent, Summary: summary, Timestamp: ts}
	if err := fs.tree.insert(&node{id: id, parent: rec.Parent, kind: nodeCompaction, compaction: c}); err != nil {
		return err
	}
	fs.cursor = id
	return nil
}

func (fs *FileStore) ActivePath() []Message {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tree.messagesAlong(fs.cursor)
}

func (fs *FileStore) ActiveContext() (string, []Message) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tree.activeContext(fs.cursor)
}

func (fs *FileStore) Fork(parentID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.tree.has(parentID) {
		return ErrUnknownParent
	}
	fs.cursor = parentID
	return nil
}

func (fs *FileStore) Cursor() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.cursor
}

func (fs *FileStore) Leaves() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tree.leaves()
}

// Path returns the file's on-disk location.
func (fs *FileStore) Path() string { return fs.path }

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var err error
	if fs.file != nil {
		err = fs.file.Close()
		fs.file = nil
	}
	if fs.lock != nil {
		_ = fs.lock.Unlock()
		_ = os.Remove(fs.lock.Path())
		fs.lock = nil
	}
	return err
}
