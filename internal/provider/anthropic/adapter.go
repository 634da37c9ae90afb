// Package anthropic is the one canonical Provider Adapter this core ships:
// it targets an Anthropic-Messages-API-shaped streaming endpoint, and its
// StreamEvent vocabulary is the literal source of provider.StreamEvent.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/openclaude/agentcore/internal/provider"
	"github.com/openclaude/agentcore/internal/sse"
)

// idleTimeout bounds the gap between successive byte reads of the
// response body (§5: "idle-data timeout (60s between bytes)").
const idleTimeout = 60 * time.Second

// connectTimeout bounds request setup / response-header arrival (§5: "10s").
const connectTimeout = 10 * time.Second

// Adapter implements provider.Adapter on top of Client (client.go).
type Adapter struct {
	client *Client
	log    zerolog.Logger
}

// New constructs an Adapter.
func New(baseURL, apiKey string, log zerolog.Logger) *Adapter {
	return &Adapter{client: NewClient(baseURL, apiKey, connectTimeout, log), log: log}
}

var _ provider.Adapter = (*Adapter)(nil)

// Stream implements provider.Adapter.
func (a *Adapter) Stream(ctx context.Context, cx provider.Context, opts provider.StreamOptions) (*provider.Stream, error) {
	req := buildWireRequest(cx, opts)

	resp, err := a.client.openStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	events := make(chan provider.StreamEvent, 16)
	streamCtx, cancel := context.WithCancel(ctx)

	go a.pump(streamCtx, resp.Body, events)

	return &provider.Stream{
		Events: events,
		Close: func() {
			cancel()
			resp.Body.Close()
		},
	}, nil
}

// toolAccumulator buffers tool_input_json_fragment deltas for one block
// index so the adapter can validate the assembled JSON at ContentBlockStop,
// per §4.2's tool-call-assembly contract. Fragments are never parsed
// incrementally.
type toolAccumulator struct {
	builder []byte
}

// pump reads the response body under an idle-data timeout, decodes SSE
// frames, translates them to canonical StreamEvents, and emits them in
// order. It closes events on EOF, context cancellation, or a terminal
// event (message_stop or error).
func (a *Adapter) pump(ctx context.Context, body io.ReadCloser, events chan<- provider.StreamEvent) {
	defer close(events)
	defer body.Close()

	reader := &idleTimeoutReader{r: body, timeout: idleTimeout}
	dec := sse.New()
	toolInputs := map[int]*toolAccumulator{}
	toolBlockAtIndex := map[int]bool{}

	emit := func(ev provider.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	buf := make([]byte, 32*1024)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := reader.Read(buf)
		if n > 0 {
			raw, feedErr := dec.Feed(buf[:n])
			if feedErr != nil {
				a.log.Error().Err(feedErr).Msg("sse decode overflow")
				emit(provider.StreamEvent{Kind: provider.EventError, ErrorKind: "sse_overflow", ErrorMessage: feedErr.Error()})
				return
			}
			for _, re := range raw {
				if !a.translate(re, toolInputs, toolBlockAtIndex, emit) {
					return
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				if final, closeErr := dec.Close(); closeErr == nil && final != nil {
					a.translate(*final, toolInputs, toolBlockAtIndex, emit)
				}
			} else {
				a.log.Warn().Err(err).Msg("anthropic stream read error")
				emit(provider.StreamEvent{Kind: provider.EventError, ErrorKind: "transport", ErrorMessage: err.Error()})
			}
			return
		}
	}
}

// translate converts one raw SSE event into zero or one canonical
// StreamEvents and forwards it via emit. It returns false if the stream
// should stop (terminal event or consumer gone).
func (a *Adapter) translate(raw sse.Event, toolInputs map[int]*toolAccumulator, toolBlockAtIndex map[int]bool, emit func(provider.StreamEvent) bool) bool {
	var w wireEvent
	name := raw.Name
	if name == "" {
		// Some gateways omit "event:" and rely solely on the JSON "type"
		// field; peek at it before deciding this frame is unparseable.
		_ = json.Unmarshal([]byte(raw.Data), &w)
		name = w.Type
	} else if raw.Data != "" {
		if err := json.Unmarshal([]byte(raw.Data), &w); err != nil {
			emit(provider.StreamEvent{Kind: provider.EventError, ErrorKind: "protocol", ErrorMessage: "malformed event json: " + err.Error()})
			return false
		}
	}

	switch name {
	case "message_start":
		ev := provider.StreamEvent{Kind: provider.EventMessageStart}
		if w.Message != nil {
			ev.MessageID = w.Message.ID
			ev.Role = provider.Role(w.Message.Role)
			ev.Model = w.Message.Model
		}
		return emit(ev)

	case "content_block_start":
		if w.ContentBlock == nil {
			return true
		}
		kind := provider.BlockText
		switch w.ContentBlock.Type {
		case "tool_use":
			kind = provider.BlockToolUse
			toolInputs[w.Index] = &toolAccumulator{}
			toolBlockAtIndex[w.Index] = true
		case "thinking":
			kind = provider.BlockThinking
		}
		return emit(provider.StreamEvent{
			Kind:      provider.EventContentBlockStart,
			Index:     w.Index,
			BlockKind: kind,
			CallID:    w.ContentBlock.ID,
			ToolName:  w.ContentBlock.Name,
		})

	case "content_block_delta":
		if w.Delta == nil {
			return true
		}
		ev := provider.StreamEvent{Kind: provider.EventContentBlockDelta, Index: w.Index}
		switch w.Delta.Type {
		case "text_delta":
			ev.DeltaKind = provider.DeltaText
			ev.Delta = w.Delta.Text
		case "thinking_delta":
			ev.DeltaKind = provider.DeltaThinking
			ev.Delta = w.Delta.Thinking
		case "signature_delta":
			ev.DeltaKind = provider.DeltaThinkingSig
			ev.Delta = w.Delta.Signature
		case "input_json_delta":
			ev.DeltaKind = provider.DeltaToolInputJSONFrag
			ev.JSONFrag = w.Delta.PartialJSON
			if acc, ok := toolInputs[w.Index]; ok {
				acc.builder = append(acc.builder, w.Delta.PartialJSON...)
			}
		default:
			return true
		}
		return emit(ev)

	case "content_block_stop":
		if toolBlockAtIndex[w.Index] {
			acc := toolInputs[w.Index]
			if len(acc.builder) == 0 {
				acc.builder = []byte("{}")
			}
			var probe any
			if err := json.Unmarshal(acc.builder, &probe); err != nil {
				emit(provider.StreamEvent{
					Kind:         provider.EventError,
					ErrorKind:    "tool_input_parse",
					ErrorMessage: fmt.Sprintf("block %d: %s", w.Index, err.Error()),
				})
				return false
			}
		}
		return emit(provider.StreamEvent{Kind: provider.EventContentBlockStop, Index: w.Index})

	case "message_delta":
		ev := provider.StreamEvent{Kind: provider.EventMessageDelta}
		if w.Delta != nil {
			ev.StopReason = w.Delta.StopReason
		}
		if w.Usage != nil {
			ev.Usage = &provider.Usage{InputTokens: w.Usage.InputTokens, OutputTokens: w.Usage.OutputTokens}
		}
		return emit(ev)

	case "message_stop":
		emit(provider.StreamEvent{Kind: provider.EventMessageStop})
		return false

	case "ping":
		return emit(provider.StreamEvent{Kind: provider.EventPing})

	case "error":
		ev := provider.StreamEvent{Kind: provider.EventError}
		if w.Error != nil {
			ev.ErrorKind = w.Error.Type
			ev.ErrorMessage = w.Error.Message
		}
		emit(ev)
		return false

	default:
		a.log.Debug().Str("event", name).Msg("ignoring unrecognized sse event")
		return true
	}
}

// buildWireRequest translates a canonical Context/StreamOptions pair into
// the wire request shape.
func buildWireRequest(cx provider.Context, opts provider.StreamOptions) wireRequest {
	req := wireRequest{
		Model:       opts.Model,
		System:      cx.System,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      true,
		StopSeqs:    opts.StopSequences,
	}
	if opts.Thinking {
		req.Thinking = &wireThinking{Type: "enabled"}
	}
	for _, m := range cx.Messages {
		req.Messages = append(req.Messages, wireMessage{Role: string(m.Role), Content: blocksToWire(m.Content)})
	}
	for _, t := range cx.Tools {
		req.Tools = append(req.Tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return req
}

func blocksToWire(blocks []provider.ContentBlock) []wireBlock {
	out := make([]wireBlock, 0, len(blocks))
	for _, b := range blocks {
		wb := wireBlock{Type: string(b.Kind)}
		switch b.Kind {
		case provider.BlockText, provider.BlockThinking:
			wb.Text = b.Text
		case provider.BlockToolUse:
			wb.ID = b.CallID
			wb.Name = b.Name
			wb.Input = b.Input
		case provider.BlockToolResult:
			wb.ToolUseID = b.CallID
			wb.Content = b.Output
			wb.IsError = b.IsError
		case provider.BlockImage:
			wb.Source = &wireImageSource{Type: "base64", MediaType: b.MediaType, Data: string(b.Bytes)}
		}
		out = append(out, wb)
	}
	return out
}

// idleTimeoutReader fails a Read that produces no bytes for longer than
// timeout, distinguishing a genuinely stalled provider from backpressure
// on the consumer.
type idleTimeoutReader struct {
	r       io.Reader
	timeout time.Duration
}

type readResult struct {
	n   int
	err error
}

func (t *idleTimeoutReader) Read(p []byte) (int, error) {
	ch := make(chan readResult, 1)
	go func() {
		n, err := t.r.Read(p)
		ch <- readResult{n, err}
	}()
	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(t.timeout):
		return 0, fmt.Errorf("anthropic: idle read timeout after %s", t.timeout)
	}
}
