package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openclaude/agentcore/internal/provider"
)

const streamHelloFixture = "event: message_start\n" +
	"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"role\":\"assistant\",\"model\":\"claude-x\"}}\n\n" +
	"event: content_block_start\n" +
	"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\"}}\n\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"hi\"}}\n\n" +
	"event: content_block_stop\n" +
	"data: {\"type\":\"content_block_stop\",\"index\":0}\n\n" +
	"event: message_delta\n" +
	"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":2}}\n\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n\n"

func TestAdapterStreamTranslatesHelloWorld(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, streamHelloFixture)
	}))
	defer srv.Close()

	a := New(srv.URL, "test-key", zerolog.Nop())
	s, err := a.Stream(context.Background(), provider.Context{}, provider.StreamOptions{Model: "claude-x", MaxTokens: 64})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var kinds []provider.EventKind
	for ev := range s.Events {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == provider.EventMessageStart && ev.MessageID != "msg_1" {
			t.Fatalf("message id = %q, want msg_1", ev.MessageID)
		}
		if ev.Kind == provider.EventContentBlockDelta && ev.Delta != "hi" {
			t.Fatalf("delta text = %q, want hi", ev.Delta)
		}
	}

	want := []provider.EventKind{
		provider.EventMessageStart,
		provider.EventContentBlockStart,
		provider.EventContentBlockDelta,
		provider.EventContentBlockStop,
		provider.EventMessageDelta,
		provider.EventMessageStop,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events %v, want %d %v", len(kinds), kinds, len(want), want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestAdapterToolInputParseFailureEmitsError(t *testing.T) {
	fixture := "event: message_start\n" +
		"data: {\"type\":\"message_start\",\"message\":{\"id\":\"m\",\"role\":\"assistant\",\"model\":\"x\"}}\n\n" +
		"event: content_block_start\n" +
		"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"tool_use\",\"id\":\"call_1\",\"name\":\"ls\"}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{not json\"}}\n\n" +
		"event: content_block_stop\n" +
		"data: {\"type\":\"content_block_stop\",\"index\":0}\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, fixture)
	}))
	defer srv.Close()

	a := New(srv.URL, "", zerolog.Nop())
	s, err := a.Stream(context.Background(), provider.Context{}, provider.StreamOptions{Model: "x"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var sawError bool
	for ev := range s.Events {
		if ev.Kind == provider.EventError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("expected an Error event for malformed tool input JSON")
	}
}

func TestAdapterStopsRetryingAfterFirstEvent(t *testing.T) {
	// A successful connection whose stream is consumed to the end must
	// reach the server exactly once: §4.2 forbids retrying once any
	// non-Ping StreamEvent has been emitted, and this adapter only ever
	// retries at dial time (before returning from Stream), so a single
	// complete stream exercises the boundary.
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, streamHelloFixture)
	}))
	defer srv.Close()

	a := New(srv.URL, "", zerolog.Nop())
	s, err := a.Stream(context.Background(), provider.Context{}, provider.StreamOptions{Model: "x"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	for range s.Events {
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
