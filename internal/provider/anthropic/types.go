package anthropic

import "encoding/json"

// wireMessage is one entry of the request's "messages" array.
type wireMessage struct {
	Role    string       `json:"role"`
	Content []wireBlock  `json:"content"`
}

// wireBlock is the wire shape of a content block, covering every variant
// the canonical provider.ContentBlock can carry.
type wireBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	Source *wireImageSource `json:"source,omitempty"`
}

type wireImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// wireRequest is the request body posted to the Messages-API-shaped
// endpoint.
type wireRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
	StopSeqs    []string      `json:"stop_sequences,omitempty"`
	Thinking    *wireThinking `json:"thinking,omitempty"`
}

type wireThinking struct {
	Type string `json:"type"`
}

// wireEvent is the JSON payload carried by the "data:" line of one SSE
// event; fields are a union of every event type's shape (§4.2 canonical
// StreamEvent table), left zero when not applicable.
type wireEvent struct {
	Type string `json:"type"`

	Message *struct {
		ID    string `json:"id"`
		Role  string `json:"role"`
		Model string `json:"model"`
	} `json:"message"`

	Index int `json:"index"`

	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`

	Delta *struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		Thinking     string `json:"thinking"`
		Signature    string `json:"signature"`
		PartialJSON  string `json:"partial_json"`
		StopReason   string `json:"stop_reason"`
	} `json:"delta"`

	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`

	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
