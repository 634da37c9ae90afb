package session

import "time"

// Store is the interface the agent loop programs against (§4.4, §4.5).
// Both the file-backed implementation and the `--no-session` in-memory
// sink satisfy it identically, which resolves open question (a) in §9:
// there is no special-cased divergent branching behavior to write.
type Store interface {
	// AppendMessage assigns an id/timestamp if msg's are zero, appends it
	// as a child of the current cursor, persists it, and advances the
	// cursor to the new message. Returns the stored message (with its
	// assigned id/timestamp filled in).
	AppendMessage(msg Message) (Message, error)
	// AppendModelChange records a model-change meta-event as a child of
	// the cursor and advances the cursor to it.
	AppendModelChange(model string) error
	// AppendThinkingChange records a thinking-level meta-event.
	AppendThinkingChange(level string) error
	// AppendCompaction records a compaction marker. Per §4.4 this never
	// mutates the on-disk history of earlier messages; it only appends a
	// new record noting that a summary stood in for them in the Context
	// built for some provider call.
	AppendCompaction(summary string) error
	// ActivePath returns the root-to-leaf walk of Messages (meta-events
	// excluded) ending at the current cursor.
	ActivePath() []Message
	// ActiveContext returns the latest compaction summary on the path to
	// the cursor (empty if none) and the Messages that follow it, for
	// building a compacted provider.Context without mutating history.
	ActiveContext() (summary string, messages []Message)
	// Fork repositions the cursor to parentID; the next Append call
	// branches from there, creating a sibling of parentID's existing
	// children (§4.4 "Branching").
	Fork(parentID string) error
	// Cursor returns the id the next Append will extend (RootID if the
	// conversation is still empty).
	Cursor() string
	// Leaves returns every childless node id in the tree, for inspecting
	// branch structure.
	Leaves() []string
	// Header returns the session's header record.
	Header() Header
	// Close releases any resources the store holds (e.g. an advisory
	// file lock). Safe to call more than once.
	Close() error
}

// newHeader builds a fresh v3 header for cwd.
func newHeader(cwd string, created time.Time) Header {
	return Header{Type: "session", Version: SchemaVersion, CWD: cwd, Created: created}
}
