// Package session implements the append-only, tree-structured JSONL
// conversation log (§3 data model, §4.4, §6 file format v3).
package session

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the current session file schema (§3).
const SchemaVersion = 3

// RootID is the parent value of every record with no real parent: the
// session's single root marker (I1: "a forest with a single root marker
// per session file" collapses, by construction, to one literal tree since
// every top-level message shares this one parent value).
const RootID = "root"

// Role identifies the speaker of a Message (§3).
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
	RoleSystemNote Role = "system_note"
)

// BlockKind discriminates ContentBlock's tagged variant (§3).
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockThinking   BlockKind = "thinking"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockImage      BlockKind = "image"
)

// ContentBlock is one tagged segment of a Message's content (§3). Only the
// fields relevant to Type are populated; the rest are left zero and
// omitted from the JSON encoding.
type ContentBlock struct {
	Type string `json:"type"`

	// text, thinking
	Body      string `json:"body,omitempty"`
	Signature string `json:"signature,omitempty"` // thinking only

	// tool_use, tool_result
	CallID string `json:"call_id,omitempty"`

	// tool_use
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	Output   string         `json:"output,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// image
	MediaType string `json:"media_type,omitempty"`
	Bytes     []byte `json:"bytes,omitempty"`
}

// TextBlock constructs a text content block.
func TextBlock(body string) ContentBlock { return ContentBlock{Type: string(BlockText), Body: body} }

// ThinkingBlock constructs a thinking content block.
func ThinkingBlock(body, signature string) ContentBlock {
	return ContentBlock{Type: string(BlockThinking), Body: body, Signature: signature}
}

// ToolUseBlock constructs a tool_use content block.
func ToolUseBlock(callID, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: string(BlockToolUse), CallID: callID, Name: name, Input: input}
}

// ToolResultBlock constructs a tool_result content block.
func ToolResultBlock(callID, output string, isError bool, metadata map[string]any) ContentBlock {
	return ContentBlock{Type: string(BlockToolResult), CallID: callID, Output: output, IsError: isError, Metadata: metadata}
}

// ImageBlock constructs an image content block.
func ImageBlock(mediaType string, bytes []byte) ContentBlock {
	return ContentBlock{Type: string(BlockImage), MediaType: mediaType, Bytes: bytes}
}

// Message is a node in the conversation tree (§3).
type Message struct {
	ID        string         `json:"id"`
	Parent    string         `json:"parent"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	Timestamp time.Time      `json:"ts"`
}

// Header is the first line of every session file (§6).
type Header struct {
	Type    string    `json:"type"` // always "session"
	Version int       `json:"version"`
	CWD     string    `json:"cwd"`
	Created time.Time `json:"created"`
}

// record is the on-disk discriminator every subsequent line carries.
type record struct {
	Type string `json:"type"`
}

// messageRecord is a "message" line (§6).
type messageRecord struct {
	Type      string         `json:"type"` // "message"
	ID        string         `json:"id"`
	Parent    string         `json:"parent"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	Timestamp time.Time      `json:"ts"`
}

// ModelChange is a "model_change" meta-event (§3, §6).
type ModelChange struct {
	ID        string    `json:"id"`
	Parent    string    `json:"parent"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"ts"`
}

type modelChangeRecord struct {
	Type      string    `json:"type"` // "model_change"
	ID        string    `json:"id"`
	Parent    string    `json:"parent"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"ts"`
}

// ThinkingChange is a "thinking_change" meta-event.
type ThinkingChange struct {
	ID        string    `json:"id"`
	Parent    string    `json:"parent"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"ts"`
}

type thinkingChangeRecord struct {
	Type      string    `json:"type"` // "thinking_change"
	ID        string    `json:"id"`
	Parent    string    `json:"parent"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"ts"`
}

// Compaction is a "compaction" meta-event: it records that a summary
// replaced older messages in the Context built for the provider, without
// touching the on-disk history (§4.4, §9 glossary).
type Compaction struct {
	ID        string    `json:"id"`
	Parent    string    `json:"parent"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"ts"`
}

type compactionRecord struct {
	Type      string    `json:"type"` // "compaction"
	ID        string    `json:"id"`
	Parent    string    `json:"parent"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"ts"`
}
