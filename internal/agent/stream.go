package agent

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openclaude/agentcore/internal/apperr"
	"github.com/openclaude/agentcore/internal/provider"
	"github.com/openclaude/agentcore/internal/session"
)

// blockAccum buffers one content block's pieces as deltas arrive (§4.2).
// tool_use input arrives as a sequence of JSON fragments that only parse
// once concatenated, so Input is assembled in a bytes.Buffer and its raw
// bytes become the tool_use block's Input at MessageStop; the adapter has
// already rejected unparseable input at ContentBlockStop.
type blockAccum struct {
	kind     provider.BlockKind
	callID   string
	toolName string
	text     bytes.Buffer
	sig      bytes.Buffer
	input    bytes.Buffer
}

// accumulateAssistantMessage drains one stream to completion, forwarding
// every event to obs, and returns the assistant message it describes.
// Per §4.2 a stream ends in exactly one of MessageStop or an Error event;
// anything else (the channel closing early, ctx cancellation) is reported
// as apperr.ErrProviderProtocol / apperr.ErrCancelled.
func accumulateAssistantMessage(ctx context.Context, stream *provider.Stream, obs Observer) (session.Message, error) {
	blocks := map[int]*blockAccum{}
	var order []int
	msg := session.Message{Role: session.RoleAssistant}

	for {
		select {
		case <-ctx.Done():
			return session.Message{}, apperr.Wrap(apperr.ErrCancelled, ctx.Err())

		case ev, ok := <-stream.Events:
			if !ok {
				return session.Message{}, apperr.Wrap(apperr.ErrProviderProtocol,
					fmt.Errorf("stream closed before message_stop"))
			}
			obs.OnStreamEvent(ev)

			switch ev.Kind {
			case provider.EventMessageStart:
				// Nothing to accumulate; message id/model are transport
				// metadata the loop doesn't persist onto session.Message.

			case provider.EventContentBlockStart:
				order = append(order, ev.Index)
				blocks[ev.Index] = &blockAccum{kind: ev.BlockKind, callID: ev.CallID, toolName: ev.ToolName}

			case provider.EventContentBlockDelta:
				b, known := blocks[ev.Index]
				if !known {
					continue
				}
				switch ev.DeltaKind {
				case provider.DeltaText:
					b.text.WriteString(ev.Delta)
				case provider.DeltaThinking:
					b.text.WriteString(ev.Delta)
				case provider.DeltaThinkingSig:
					b.sig.WriteString(ev.Delta)
				case provider.DeltaToolInputJSONFrag:
					b.input.WriteString(ev.JSONFrag)
				}

			case provider.EventContentBlockStop:
				// Block content is fully buffered; final assembly happens
				// once the whole message is ordered, at MessageStop.

			case provider.EventMessageDelta:
				// Carries stop_reason/usage; the loop doesn't currently
				// branch on either, so there's nothing to buffer.

			case provider.EventMessageStop:
				msg.Content = make([]session.ContentBlock, 0, len(order))
				for _, idx := range order {
					b := blocks[idx]
					switch b.kind {
					case provider.BlockText:
						msg.Content = append(msg.Content, session.TextBlock(b.text.String()))
					case provider.BlockThinking:
						msg.Content = append(msg.Content, session.ThinkingBlock(b.text.String(), b.sig.String()))
					case provider.BlockToolUse:
						msg.Content = append(msg.Content, session.ToolUseBlock(b.callID, b.toolName, append([]byte(nil), b.input.Bytes()...)))
					}
				}
				return msg, nil

			case provider.EventPing:
				// Keepalive only.

			case provider.EventError:
				return session.Message{}, apperr.Wrap(apperr.ErrProviderProtocol,
					fmt.Errorf("%s: %s", ev.ErrorKind, ev.ErrorMessage))
			}
		}
	}
}
