// Package provider defines the Provider interface and the wire-codec adapters.
//
// Every text-generation backend the gateway can talk to implements the
// Provider interface. The rest of the gateway — fallback policy, sentence
// buffering, the facade — works with these unified types, so it never needs
// to know which wire format is actually serving a request.
package provider

import "context"

// Provider is the interface that every text-generation backend must satisfy.
// Go interfaces are implicit: any struct that has these three methods
// automatically implements Provider — no "implements" keyword needed.
type Provider interface {
	// Name returns the adapter identifier, e.g. "responses" or "chat".
	// Used for logging and the session result's provider field.
	Name() string

	// Complete sends a request and returns the full assembled result.
	// This is the non-streaming path.
	//
	// The context.Context parameter carries cancellation signals and
	// deadlines. If the caller gives up, ctx gets cancelled and the
	// adapter should stop waiting for the upstream API.
	Complete(ctx context.Context, req *Request) (*Result, error)

	// CompleteStream sends a request and returns a channel that delivers
	// text deltas as they arrive from the upstream API.
	//
	// The returned channel is receive-only (<-chan) — the caller can read
	// from it but not write to it. The adapter creates the channel
	// internally, writes deltas to it, and closes it when the stream ends.
	// A mid-stream failure arrives as a Delta with Err set, followed by
	// the channel closing.
	CompleteStream(ctx context.Context, req *Request) (<-chan Delta, error)
}

// ---------------------------------------------------------------------------
// Unified request/result types
// ---------------------------------------------------------------------------

// Effort is the requested reasoning effort. EffortOff means the caller wants
// no visible "thinking" at all; the gateway suppresses reasoning output
// downstream regardless of what the provider sends.
type Effort string

const (
	EffortOff    Effort = "off"
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Request is the canonical completion request. The gateway builds one of
// these from caller-supplied prompt text; adapters translate it into their
// backend-specific wire format. Treat it as immutable once constructed.
type Request struct {
	System string // system prompt (opaque to the gateway)
	User   string // user content (opaque to the gateway)
	Effort Effort // requested reasoning effort

	// BaseURL, when non-empty, overrides the adapter's configured base
	// address for this one request. Used for LAN-style redirects of the
	// primary provider.
	BaseURL string
}

// Result is the assembled outcome of a non-streaming completion.
type Result struct {
	Answer    string `json:"answer"`
	Reasoning string `json:"reasoning,omitempty"`
	Provider  string `json:"provider"`
}

// Delta is one fragment of a streaming response. Reasoning selects which
// channel the text belongs to: the visible answer or the model's "thinking"
// side channel.
type Delta struct {
	Reasoning bool
	Text      string

	// Err is set when the stream failed mid-flight (connection dropped,
	// read error). The channel closes right after an error delta.
	Err error
}

// ---------------------------------------------------------------------------
// Connection settings
// ---------------------------------------------------------------------------

// Settings pairs a wire codec with everything it needs to reach its backend.
// Read-only after construction; shared freely across concurrent sessions.
type Settings struct {
	BaseURL string
	APIKey  string

	// Model is the default model identifier. Tiers, when present, maps a
	// reasoning effort onto a model id, so a "high" request can route to a
	// bigger model than a "low" one. An effort with no tier entry falls
	// back to Model.
	Model string
	Tiers map[Effort]string

	MaxTokens   int
	Temperature float64
	TopP        float64
}

// model resolves the model id for a given effort via the tier table.
func (s *Settings) model(effort Effort) string {
	if m, ok := s.Tiers[effort]; ok && m != "" {
		return m
	}
	return s.Model
}

// baseURL resolves the effective base address for one request, honoring a
// per-request override.
func (s *Settings) baseURL(req *Request) string {
	if req.BaseURL != "" {
		return req.BaseURL
	}
	return s.BaseURL
}
