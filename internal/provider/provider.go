// Package provider defines the canonical context/event vocabulary the
// agent loop speaks, independent of any one provider's wire dialect. Only
// one concrete adapter ships with this package (provider/anthropic); any
// other provider's wire dialect is out of scope per the core's boundary.
package provider

import (
	"context"
	"encoding/json"
)

// Role identifies the speaker of a Message within a Context.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is the adapter-facing view of one conversation turn's content,
// built by the agent loop from the session's active path.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// BlockKind discriminates ContentBlock.Kind.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockThinking   BlockKind = "thinking"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockImage      BlockKind = "image"
)

// ContentBlock mirrors the data model's tagged content-block variant
// (see session.ContentBlock) in the shape the adapter needs to serialize
// a request; only the fields relevant to a given Kind are populated.
type ContentBlock struct {
	Kind BlockKind

	Text string // BlockText, BlockThinking

	CallID string          // BlockToolUse, BlockToolResult
	Name   string          // BlockToolUse
	Input  json.RawMessage // BlockToolUse

	Output  string // BlockToolResult
	IsError bool   // BlockToolResult

	MediaType string // BlockImage
	Bytes     []byte // BlockImage
}

// ToolSpec describes one callable tool to the provider, mirroring the
// tool layer's registered name/schema without importing the tools package
// (the adapter must not depend on tool implementations, only their specs).
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Context is the canonical request payload: system prompt, ordered
// messages along the active path, and the tools available this turn.
type Context struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// StreamOptions configures one streaming request.
type StreamOptions struct {
	Model         string
	MaxTokens     int
	Temperature   *float64
	Thinking      bool
	StopSequences []string
}

// EventKind discriminates StreamEvent.Kind.
type EventKind string

const (
	EventMessageStart      EventKind = "message_start"
	EventContentBlockStart EventKind = "content_block_start"
	EventContentBlockDelta EventKind = "content_block_delta"
	EventContentBlockStop  EventKind = "content_block_stop"
	EventMessageDelta      EventKind = "message_delta"
	EventMessageStop       EventKind = "message_stop"
	EventPing              EventKind = "ping"
	EventError             EventKind = "error"
)

// DeltaKind discriminates the payload carried by a ContentBlockDelta event.
type DeltaKind string

const (
	DeltaText             DeltaKind = "text"
	DeltaThinking         DeltaKind = "thinking"
	DeltaThinkingSig      DeltaKind = "thinking_signature"
	DeltaToolInputJSONFrag DeltaKind = "tool_input_json_fragment"
)

// Usage reports token accounting, when the provider supplies it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// StreamEvent is the entire vocabulary the agent loop understands (§4.2).
// Exactly the fields relevant to Kind are populated; the rest are zero.
type StreamEvent struct {
	Kind StreamEventKind

	// MessageStart
	MessageID string
	Role      Role
	Model     string

	// ContentBlockStart / ContentBlockDelta / ContentBlockStop
	Index     int
	BlockKind BlockKind // ContentBlockStart only
	CallID    string    // ContentBlockStart, block_kind=tool_use
	ToolName  string    // ContentBlockStart, block_kind=tool_use

	DeltaKind DeltaKind
	Delta     string // text, thinking, or thinking_signature payload
	JSONFrag  string // tool_input_json_fragment payload

	// MessageDelta
	StopReason string
	Usage      *Usage

	// Error
	ErrorKind    string
	ErrorMessage string
}

// StreamEventKind is an alias kept distinct from EventKind only to avoid
// a name collision in the struct field above; both refer to the same set
// of values.
type StreamEventKind = EventKind

// Adapter is the provider contract: build a wire request from Context and
// StreamOptions, and stream back canonical StreamEvents. Implementations
// own retries per their own policy (§4.2) but must stop retrying once any
// non-Ping event has reached the caller.
type Adapter interface {
	Stream(ctx context.Context, cx Context, opts StreamOptions) (*Stream, error)
}

// Stream is a live, cancellable event source. Events is closed after the
// terminal event (MessageStop or Error) or when ctx is cancelled. A
// failure that ends the stream early is reported as an Error event on
// Events itself; Stream carries no separate error value.
type Stream struct {
	Events <-chan StreamEvent
	// Close aborts the underlying HTTP request; Events is then closed
	// without being drained.
	Close func()
}
