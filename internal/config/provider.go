// Package config holds the scalar values the core needs but never loads
// itself: provider endpoint/credentials and the operational limits that
// bound tool execution. Flag parsing and config-file discovery belong to
// the command host (§1 Non-goals); this package only defines the structs
// the host populates and hands to the agent loop's constructor.
package config

// ProviderConfig describes how to reach the one canonical provider
// adapter (§4.2). Populated by the command host from flags/env, never
// read from a file by the core itself.
type ProviderConfig struct {
	// APIBaseURL is the provider's Messages-API-shaped endpoint.
	APIBaseURL string
	// APIKey authenticates outbound requests.
	APIKey string
	// DefaultModel is used when the command host supplies no override.
	DefaultModel string
	// Pricing holds per-model cost metadata for the host's own cost
	// reporting; the core itself enforces no budget ceiling (§4/§7 name
	// no such control).
	Pricing map[string]ModelPricing
}

// ModelPricing is per-million-token pricing for one model.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// Limits bounds tool execution and turn count (§4.3, §4.5, §5).
type Limits struct {
	// MaxTurns caps the number of turn-cycle iterations the agent loop
	// runs before returning an error instead of looping forever.
	MaxTurns int
	// DefaultShellTimeoutSeconds is used when a bash call omits `timeout`.
	DefaultShellTimeoutSeconds int
	// MaxShellTimeoutSeconds hard-caps any requested `timeout`, even one
	// the model supplies explicitly (§4.3: "hard cap enforced by config").
	MaxShellTimeoutSeconds int
	// RollingBufferBytes bounds the shell tool's live output buffer
	// (§4.3 step 2: "bounded size (e.g. 1 MiB)").
	RollingBufferBytes int
}

// DefaultLimits returns the limits named literally in the spec text.
func DefaultLimits() Limits {
	return Limits{
		MaxTurns:                   64,
		DefaultShellTimeoutSeconds: 120,
		MaxShellTimeoutSeconds:     600,
		RollingBufferBytes:         1 << 20,
	}
}
