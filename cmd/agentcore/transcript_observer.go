package main

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openclaude/agentcore/internal/agent"
	"github.com/openclaude/agentcore/internal/provider"
	"github.com/openclaude/agentcore/internal/session"
	"github.com/openclaude/agentcore/internal/tools"
)

// transcriptObserver implements agent.Observer by writing one JSON object
// per line to w — the flat event transcript §12 calls for, not a TUI.
// Writes are serialized since the agent loop dispatches tool calls
// concurrently and may call OnToolStart/OnToolEnd from several goroutines
// at once (§4.5 step 6a).
type transcriptObserver struct {
	mu  sync.Mutex
	enc *json.Encoder
	log zerolog.Logger
}

func newTranscriptObserver(w io.Writer, log zerolog.Logger) *transcriptObserver {
	return &transcriptObserver{enc: json.NewEncoder(w), log: log}
}

func (o *transcriptObserver) emit(ev transcriptEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(ev); err != nil {
		o.log.Error().Err(err).Msg("failed to encode transcript event")
	}
}

func (o *transcriptObserver) OnStreamEvent(ev provider.StreamEvent) {
	o.log.Debug().Str("event_kind", string(ev.Kind)).Int("index", ev.Index).Msg("stream event")
	te := transcriptEvent{
		Type:      "stream_event",
		Kind:      string(ev.Kind),
		MessageID: ev.MessageID,
		Index:     ev.Index,
	}
	switch ev.Kind {
	case provider.EventContentBlockDelta:
		te.Text = ev.Delta
	case provider.EventError:
		te.Error = ev.ErrorKind + ": " + ev.ErrorMessage
	}
	o.emit(te)
}

func (o *transcriptObserver) OnMessageAppended(msg session.Message) {
	o.emit(transcriptEvent{
		Type:      "message_appended",
		MessageID: msg.ID,
		Role:      string(msg.Role),
	})
}

func (o *transcriptObserver) OnToolStart(callID, name string, input json.RawMessage) {
	o.log.Info().Str("call_id", callID).Str("tool", name).Msg("tool start")
	o.emit(transcriptEvent{Type: "tool_start", CallID: callID, Name: name, Input: input})
}

func (o *transcriptObserver) OnToolProgress(callID string, chunk []byte) {
	o.emit(transcriptEvent{Type: "tool_progress", CallID: callID, Text: string(chunk)})
}

func (o *transcriptObserver) OnToolEnd(callID string, result tools.ToolResult) {
	o.log.Info().Str("call_id", callID).Bool("is_error", result.IsError).Msg("tool end")
	o.emit(transcriptEvent{Type: "tool_end", CallID: callID, Output: result.Output, IsError: result.IsError})
}

func (o *transcriptObserver) OnError(err error) {
	o.log.Error().Err(err).Msg("turn aborted")
	o.emit(transcriptEvent{Type: "error", Error: err.Error()})
}

var _ agent.Observer = (*transcriptObserver)(nil)
