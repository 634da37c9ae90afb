package agent

import (
	"github.com/openclaude/agentcore/internal/provider"
	"github.com/openclaude/agentcore/internal/session"
)

// toProviderMessages translates the active path's session.Messages into
// the adapter-facing provider.Message shape. tool_result messages are
// sent back under the "user" role, which is the wire convention every
// Anthropic-Messages-API-shaped endpoint expects (a tool result is a
// content block inside the next *user* turn, never its own role);
// system_note records carry out-of-band commentary and are folded into
// the system prompt by the caller instead of appearing as a turn.
func toProviderMessages(msgs []session.Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		role := provider.RoleUser
		switch m.Role {
		case session.RoleUser, session.RoleToolResult:
			role = provider.RoleUser
		case session.RoleAssistant:
			role = provider.RoleAssistant
		case session.RoleSystemNote:
			continue
		}
		out = append(out, provider.Message{Role: role, Content: toProviderBlocks(m.Content)})
	}
	return out
}

func toProviderBlocks(blocks []session.ContentBlock) []provider.ContentBlock {
	out := make([]provider.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		pb := provider.ContentBlock{Kind: provider.BlockKind(b.Type)}
		switch session.BlockKind(b.Type) {
		case session.BlockText, session.BlockThinking:
			pb.Text = b.Body
		case session.BlockToolUse:
			pb.CallID = b.CallID
			pb.Name = b.Name
			pb.Input = b.Input
		case session.BlockToolResult:
			pb.CallID = b.CallID
			pb.Output = b.Output
			pb.IsError = b.IsError
		case session.BlockImage:
			pb.MediaType = b.MediaType
			pb.Bytes = b.Bytes
		}
		out = append(out, pb)
	}
	return out
}

// systemNoteText concatenates any system_note content in msgs, for
// folding into the system prompt sent to the provider.
func systemNoteText(msgs []session.Message) string {
	var out string
	for _, m := range msgs {
		if m.Role != session.RoleSystemNote {
			continue
		}
		for _, b := range m.Content {
			if b.Type == string(session.BlockText) {
				if out != "" {
					out += "\n"
				}
				out += b.Body
			}
		}
	}
	return out
}
