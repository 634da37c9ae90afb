// Command agentcore is the thin CLI host described in §12: it resolves
// provider config and a session store from flags/environment, wires the
// five core components together, and prints the resulting StreamEvents
// and tool activity as a line-delimited JSON transcript. It contains no
// business logic of its own — every decision here is a literal
// translation of a flag or environment variable into a constructor
// argument for a component the core packages already specify.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openclaude/agentcore/internal/agent"
	"github.com/openclaude/agentcore/internal/config"
	"github.com/openclaude/agentcore/internal/provider/anthropic"
	"github.com/openclaude/agentcore/internal/session"
	"github.com/openclaude/agentcore/internal/tools"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runFlags struct {
	sessionDir     string
	sessionPath    string
	continueLS     bool
	noSession      bool
	forkID         string
	maxTurns       int
	timeout        int
	model          string
	maxTokens      int
	temperature    float64
	temperatureSet bool
	thinking       bool
	debug          bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentcore",
		Short: "Minimal driver for the agentcore turn-cycle engine",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run one user turn to completion and print its event transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("temperature") {
				flags.temperatureSet = true
			}
			return runOnce(cmd.Context(), flags, args[0])
		},
	}
	home, _ := os.UserHomeDir()
	defaultSessionDir := filepath.Join(home, ".agentcore", "sessions")

	cmd.Flags().StringVar(&flags.sessionDir, "session-dir", defaultSessionDir, "root directory for session files")
	cmd.Flags().StringVar(&flags.sessionPath, "session", "", "open an explicit session file path")
	cmd.Flags().BoolVar(&flags.continueLS, "continue", false, "continue the most recent session for this directory")
	cmd.Flags().BoolVar(&flags.noSession, "no-session", false, "use an in-memory session that is never persisted")
	cmd.Flags().StringVar(&flags.forkID, "fork", "", "fork from the given message id before appending the new turn")
	cmd.Flags().IntVar(&flags.maxTurns, "max-turns", 0, "override the agent loop's max turn count (0 = default)")
	cmd.Flags().IntVar(&flags.timeout, "timeout", 0, "override the default shell tool timeout in seconds (0 = default)")
	cmd.Flags().StringVar(&flags.model, "model", "", "override AGENTCORE_MODEL")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "override the per-turn max_tokens sent to the provider (0 = default)")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", 0, "override the provider sampling temperature")
	cmd.Flags().BoolVar(&flags.thinking, "thinking", false, "request extended thinking from the provider")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "log at debug level to stderr")
	return cmd
}

func runOnce(ctx context.Context, flags *runFlags, prompt string) error {
	logLevel := zerolog.InfoLevel
	if flags.debug {
		logLevel = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(logLevel).With().Timestamp().Logger()

	providerCfg := resolveProviderConfig(flags)
	if providerCfg.APIKey == "" {
		return fmt.Errorf("AGENTCORE_API_KEY is not set")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	store, err := resolveStore(flags, cwd)
	if err != nil {
		return fmt.Errorf("resolve session store: %w", err)
	}
	defer store.Close()

	if flags.forkID != "" {
		if err := store.Fork(flags.forkID); err != nil {
			return fmt.Errorf("fork %s: %w", flags.forkID, err)
		}
	}

	limits := config.DefaultLimits()
	if flags.maxTurns > 0 {
		limits.MaxTurns = flags.maxTurns
	}
	if flags.timeout > 0 {
		limits.DefaultShellTimeoutSeconds = flags.timeout
	}

	sandbox := tools.NewSandbox([]string{cwd})
	registry, err := tools.NewRegistry(tools.DefaultTools(limits))
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	adapterLog := logger.With().Str("component", "provider").Logger()
	adapter := anthropic.New(providerCfg.APIBaseURL, providerCfg.APIKey, adapterLog)

	loop := &agent.Loop{
		Store:   store,
		Adapter: adapter,
		Tools:   registry,
		ExecBase: tools.ExecContext{
			CWD:     cwd,
			Sandbox: sandbox,
		},
		Config: agent.Config{
			MaxTurns:    limits.MaxTurns,
			Model:       providerCfg.DefaultModel,
			MaxTokens:   flags.maxTokens,
			Temperature: temperaturePtr(flags),
			Thinking:    flags.thinking,
		},
		Observer: newTranscriptObserver(os.Stdout, logger.With().Str("component", "agent").Logger()),
	}

	return loop.Run(ctx, prompt)
}

// temperaturePtr returns nil unless --temperature was explicitly passed,
// so an unset flag leaves StreamOptions.Temperature nil rather than
// forcing a wire value of 0.
func temperaturePtr(flags *runFlags) *float64 {
	if !flags.temperatureSet {
		return nil
	}
	t := flags.temperature
	return &t
}

func resolveProviderConfig(flags *runFlags) config.ProviderConfig {
	cfg := config.ProviderConfig{
		APIBaseURL:   os.Getenv("AGENTCORE_API_BASE_URL"),
		APIKey:       os.Getenv("AGENTCORE_API_KEY"),
		DefaultModel: os.Getenv("AGENTCORE_MODEL"),
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.anthropic.com"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-5"
	}
	if flags.model != "" {
		cfg.DefaultModel = flags.model
	}
	return cfg
}

// resolveStore implements §4.4's continuation semantics directly: exactly
// one of --no-session, --session, --continue, or "start fresh" applies.
func resolveStore(flags *runFlags, cwd string) (session.Store, error) {
	switch {
	case flags.noSession:
		return session.NewMemoryStore(cwd), nil
	case flags.sessionPath != "":
		return session.OpenPath(flags.sessionPath)
	case flags.continueLS:
		return session.OpenContinue(flags.sessionDir, cwd)
	default:
		return session.CreateFile(flags.sessionDir, cwd)
	}
}

// transcriptEvent is the single JSON shape every line of stdout takes,
// discriminated by Type — a flat event transcript, never a styled or
// interactive view (§12).
type transcriptEvent struct {
	Type      string          `json:"type"`
	Kind      string          `json:"kind,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Index     int             `json:"index,omitempty"`
	Text      string          `json:"text,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    string          `json:"output,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Role      string          `json:"role,omitempty"`
	Error     string          `json:"error,omitempty"`
}
