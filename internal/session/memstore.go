package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the `--no-session` sink (§4.4 "Continuation"): it
// satisfies Store exactly like the file-backed implementation, including
// Fork, but never writes anything to disk.
type MemoryStore struct {
	mu     sync.Mutex
	header Header
	tree   *tree
	cursor string
}

// NewMemoryStore constructs an in-memory-only store.
func NewMemoryStore(cwd string) *MemoryStore {
	return &MemoryStore{
		header: newHeader(cwd, time.Now()),
		tree:   newTree(),
		cursor: RootID,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Header() Header { return m.header }

func (m *MemoryStore) AppendMessage(msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Parent == "" {
		msg.Parent = m.cursor
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if !m.tree.has(msg.Parent) {
		return Message{}, ErrUnknownParent
	}
	if err := m.tree.insert(&node{id: msg.ID, parent: msg.Parent, kind: nodeMessage, message: &msg}); err != nil {
		return Message{}, err
	}
	m.cursor = msg.ID
	return msg, nil
}

func (m *MemoryStore) AppendModelChange(model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	mc := &ModelChange{ID: id, Parent: m.cursor, Model: model, Timestamp: time.Now()}
	if err := m.tree.insert(&node{id: id, parent: mc.Parent, kind: nodeModelChange, modelChange: mc}); err != nil {
		return err
	}
	m.cursor = id
	return nil
}

func (m *MemoryStore) AppendThinkingChange(level string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	tc := &ThinkingChange{ID: id, Parent: m.cursor, Level: level, Timestamp: time.Now()}
	if err := m.tree.insert(&node{id: id, parent: tc.Parent, kind: nodeThinkingChange, thinkingChange: tc}); err != nil {
		return err
	}
	m.cursor = id
	return nil
}

func (m *MemoryStore) AppendCompaction(summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	c := &Compaction{ID: id, Parent: m.cursor, Summary: summary, Timestamp: time.Now()}
	if err := m.tree.insert(&node{id: id, parent: c.Parent, kind: nodeCompaction, compaction: c}); err != nil {
		return err
	}
	m.cursor = id
	return nil
}

func (m *MemoryStore) ActivePath() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.messagesAlong(m.cursor)
}

func (m *MemoryStore) ActiveContext() (string, []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.activeContext(m.cursor)
}

func (m *MemoryStore) Fork(parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tree.has(parentID) {
		return ErrUnknownParent
	}
	m.cursor = parentID
	return nil
}

func (m *MemoryStore) Cursor() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

func (m *MemoryStore) Leaves() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.leaves()
}

func (m *MemoryStore) Close() error { return nil }
