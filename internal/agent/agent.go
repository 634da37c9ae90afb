// Package agent implements the turn-cycle orchestrator (§4.5): it drives
// the conversation between the session store, the provider adapter, and
// the tool registry, dispatching concurrent-but-ordered tool calls within
// a turn and reporting every step to an Observer.
package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/openclaude/agentcore/internal/apperr"
	"github.com/openclaude/agentcore/internal/provider"
	"github.com/openclaude/agentcore/internal/session"
	"github.com/openclaude/agentcore/internal/tools"
)

// defaultMaxTokens is used when Config.MaxTokens is left unset, so a
// Context always carries a positive max_tokens (§4.2, §6) instead of
// silently sending 0.
const defaultMaxTokens = 4096

// Config bounds the loop's own behavior, distinct from the tool-execution
// limits tools.ExecContext carries (§4.3, §4.5, §5).
type Config struct {
	MaxTurns      int
	Model         string
	MaxTokens     int
	Temperature   *float64
	Thinking      bool
	StopSequences []string
}

// Loop wires the session store, provider adapter, and tool registry
// together into the turn cycle described in §4.5.
type Loop struct {
	Store    session.Store
	Adapter  provider.Adapter
	Tools    *tools.Registry
	ExecBase tools.ExecContext
	Config   Config
	Observer Observer
}

// observer returns the configured Observer, defaulting to a no-op so the
// loop never has to nil-check it.
func (l *Loop) observer() Observer {
	if l.Observer != nil {
		return l.Observer
	}
	return NoopObserver{}
}

// Run drives the turn cycle (§4.5) starting from a new user message, until
// the assistant produces a tool_use-free message, a fatal error occurs, or
// ctx is cancelled.
func (l *Loop) Run(ctx context.Context, userText string) error {
	userMsg := session.Message{
		Role:    session.RoleUser,
		Content: []session.ContentBlock{session.TextBlock(userText)},
	}
	appended, err := l.Store.AppendMessage(userMsg)
	if err != nil {
		return apperr.Wrap(apperr.ErrSessionIO, err)
	}
	l.observer().OnMessageAppended(appended)

	return l.runTurns(ctx)
}

// runTurns implements steps 2-7 of §4.5's turn algorithm, looping back to
// step 2 whenever the assistant's message contains tool_use blocks.
func (l *Loop) runTurns(ctx context.Context) error {
	maxTurns := l.Config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 64
	}
	maxTokens := l.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	for turn := 0; turn < maxTurns; turn++ {
		summary, active := l.Store.ActiveContext()
		cx := provider.Context{
			System:   l.systemPrompt(active, summary),
			Messages: toProviderMessages(active),
			Tools:    l.Tools.Specs(),
		}
		opts := provider.StreamOptions{
			Model:         l.Config.Model,
			MaxTokens:     maxTokens,
			Temperature:   l.Config.Temperature,
			Thinking:      l.Config.Thinking,
			StopSequences: l.Config.StopSequences,
		}

		stream, err := l.Adapter.Stream(ctx, cx, opts)
		if err != nil {
			wrapped := apperr.Wrap(apperr.ErrProviderTransport, err)
			l.observer().OnError(wrapped)
			return wrapped
		}

		assistantMsg, err := accumulateAssistantMessage(ctx, stream, l.observer())
		stream.Close()
		if err != nil {
			l.observer().OnError(err)
			return err
		}

		appended, err := l.Store.AppendMessage(assistantMsg)
		if err != nil {
			wrapped := apperr.Wrap(apperr.ErrSessionIO, err)
			l.observer().OnError(wrapped)
			return wrapped
		}
		l.observer().OnMessageAppended(appended)

		calls := toolUseCalls(appended)
		if len(calls) == 0 {
			return nil
		}

		resultMsg, err := l.dispatchTools(ctx, calls)
		if err != nil {
			l.observer().OnError(err)
			return err
		}

		appendedResult, err := l.Store.AppendMessage(resultMsg)
		if err != nil {
			wrapped := apperr.Wrap(apperr.ErrSessionIO, err)
			l.observer().OnError(wrapped)
			return wrapped
		}
		l.observer().OnMessageAppended(appendedResult)
	}

	return apperr.Wrap(apperr.ErrInvariantViolation, fmt.Errorf("exceeded max turns (%d) without reaching a tool-free message", maxTurns))
}

// systemPrompt folds any compaction summary and system_note content from
// the active path into the base tool-listing prompt.
func (l *Loop) systemPrompt(active []session.Message, compactionSummary string) string {
	base := DefaultSystemPrompt(l.Tools.Names())
	if compactionSummary != "" {
		base += "\n\nEarlier conversation summary:\n" + compactionSummary
	}
	if note := systemNoteText(active); note != "" {
		base += "\n\n" + note
	}
	return base
}

// toolUseCalls extracts the tool_use blocks from an assistant message, in
// the order the model emitted them.
func toolUseCalls(msg session.Message) []session.ContentBlock {
	var calls []session.ContentBlock
	for _, b := range msg.Content {
		if b.Type == string(session.BlockToolUse) {
			calls = append(calls, b)
		}
	}
	return calls
}

// dispatchTools runs every call concurrently via errgroup (§4.5 step 6a)
// but writes into an index-keyed slice rather than append order, so the
// tool_result blocks land back in the original call order independent of
// completion order (§5 ordering guarantees). A cancelled ctx propagates to
// every in-flight tool through the group's derived context (§4.5 step 6b,
// §5 cancellation); dispatchTools itself never fails a call with a Go
// error — a tool failure is absorbed into its ToolResult's IsError, per
// the tool layer's contract — so the only error this can return is the
// group's own context cancellation.
func (l *Loop) dispatchTools(ctx context.Context, calls []session.ContentBlock) (session.Message, error) {
	results := make([]session.ContentBlock, len(calls))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		group.Go(func() error {
			l.observer().OnToolStart(call.CallID, call.Name, call.Input)
			result := l.Tools.Invoke(groupCtx, call.Name, call.Input, l.ExecBase)
			l.observer().OnToolEnd(call.CallID, result)
			results[i] = session.ToolResultBlock(call.CallID, result.Output, result.IsError, result.Metadata)
			return groupCtx.Err()
		})
	}

	if err := group.Wait(); err != nil {
		return session.Message{}, apperr.Wrap(apperr.ErrCancelled, err)
	}
	return session.Message{Role: session.RoleToolResult, Content: results}, nil
}

// Compact records a "compaction" meta-event: a summary that stands in for
// older messages the next Context build should omit, without touching the
// on-disk history (§3, §9 glossary).
func (l *Loop) Compact(summary string) error {
	return l.Store.AppendCompaction(summary)
}
