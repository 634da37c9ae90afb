package agent

import "strings"

// DefaultSystemPrompt returns the base system prompt for tool usage.
func DefaultSystemPrompt(toolNames []string) string {
	builder := strings.Builder{}
	// Include a concise identity and high-level tool guidance.
	builder.WriteString("You are a terminal coding assistant.\n")
	builder.WriteString("Use tools when you need to read or modify files or run commands.\n")
	if len(toolNames) > 0 {
		// Enumerate tools to encourage explicit tool calls.
		builder.WriteString("Available tools: ")
		builder.WriteString(strings.Join(toolNames, ", "))
		builder.WriteString(".\n")
	}
	builder.WriteString("When a tool is required, call it instead of guessing.\n")
	builder.WriteString("Provide clear, concise responses.")
	return builder.String()
}
