package agent

import (
	"encoding/json"

	"github.com/openclaude/agentcore/internal/provider"
	"github.com/openclaude/agentcore/internal/session"
	"github.com/openclaude/agentcore/internal/tools"
)

// Observer receives the loop's hooks (§4.5 "Observer hooks"). It is
// synchronous with respect to the loop: a slow observer backpressures
// turn progress, which is intentional (§4.5 — the loop never buffers
// ahead of a slow consumer).
type Observer interface {
	OnStreamEvent(ev provider.StreamEvent)
	OnMessageAppended(msg session.Message)
	OnToolStart(callID, name string, input json.RawMessage)
	OnToolProgress(callID string, chunk []byte)
	OnToolEnd(callID string, result tools.ToolResult)
	OnError(err error)
}

// NoopObserver implements Observer with empty methods so callers can embed
// it and override only the hooks they care about.
type NoopObserver struct{}

func (NoopObserver) OnStreamEvent(provider.StreamEvent)             {}
func (NoopObserver) OnMessageAppended(session.Message)              {}
func (NoopObserver) OnToolStart(string, string, json.RawMessage)    {}
func (NoopObserver) OnToolProgress(string, []byte)                  {}
func (NoopObserver) OnToolEnd(string, tools.ToolResult)             {}
func (NoopObserver) OnError(error)                                  {}

var _ Observer = NoopObserver{}
