// Package gateway orchestrates one logical completion call end to end:
// build the request, try the primary provider, apply the fallback policy,
// try the secondary if permitted, and guarantee the caller sees exactly one
// terminal signal.
//
// The gateway deals only in the Provider interface and the canonical Event
// type — it has no idea which wire format is behind either slot.
package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/howard-nolan/coachgate/internal/fallback"
	"github.com/howard-nolan/coachgate/internal/provider"
	"github.com/howard-nolan/coachgate/internal/sentence"
)

// ErrNoProvider means the routing hint resolved to a sequence with no
// configured provider in it (e.g. remote-only with no secondary set up).
var ErrNoProvider = errors.New("no provider configured for this route")

// Gateway is the single entry point for completion calls. Construct it once
// at process start and share it across sessions — everything it holds is
// read-only.
type Gateway struct {
	primary   provider.Provider
	secondary provider.Provider // may be nil
	policy    fallback.Policy
	log       zerolog.Logger
}

// New creates a Gateway. secondary may be nil, in which case every failure
// of the primary is terminal regardless of the trigger set.
func New(primary, secondary provider.Provider, policy fallback.Policy, log zerolog.Logger) *Gateway {
	return &Gateway{
		primary:   primary,
		secondary: secondary,
		policy:    policy,
		log:       log,
	}
}

// ---------------------------------------------------------------------------
// Request + routing
// ---------------------------------------------------------------------------

// Route is the caller's routing hint.
type Route struct {
	// Mode is one of "", "local", "lan", "remote".
	//   ""       use the configured fallback ordering
	//   "local"  primary only — never leave the machine
	//   "lan"    configured ordering, but redirect the primary to Addr
	//   "remote" secondary only — skip the local backend entirely
	Mode string `json:"mode,omitempty"`

	// Addr is the replacement base address for the primary in lan mode,
	// e.g. "http://192.168.1.40:1234/v1".
	Addr string `json:"addr,omitempty"`
}

// Request is one logical completion call as the caller sees it: opaque
// prompt text plus an effort level and a routing hint.
type Request struct {
	System string          `json:"system"`
	User   string          `json:"user"`
	Effort provider.Effort `json:"effort,omitempty"`
	Route  Route           `json:"route"`
}

// resolve turns the routing hint into the effective policy for this call
// and the primary's base-address override (empty = none).
func (g *Gateway) resolve(r Route) (fallback.Policy, string) {
	switch r.Mode {
	case "local":
		return g.policy.WithOrdering(fallback.PrimaryOnly), ""
	case "lan":
		return g.policy, r.Addr
	case "remote":
		return g.policy.WithOrdering(fallback.SecondaryOnly), ""
	default:
		return g.policy, ""
	}
}

func (g *Gateway) providerFor(slot fallback.Slot) provider.Provider {
	if slot == fallback.Primary {
		return g.primary
	}
	return g.secondary
}

// attempt pairs a resolved provider with the slot it came from — the slot
// matters because the address override applies to the primary only.
type attempt struct {
	slot fallback.Slot
	prov provider.Provider
}

func (g *Gateway) attempts(policy fallback.Policy) []attempt {
	var out []attempt
	for _, slot := range policy.Ordering.Sequence() {
		if p := g.providerFor(slot); p != nil {
			out = append(out, attempt{slot: slot, prov: p})
		}
	}
	return out
}

func buildRequest(req Request, slot fallback.Slot, addr string) *provider.Request {
	preq := &provider.Request{
		System: req.System,
		User:   req.User,
		Effort: req.Effort,
	}
	if slot == fallback.Primary {
		preq.BaseURL = addr
	}
	return preq
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Narrate runs a one-shot free-form narration call.
func (g *Gateway) Narrate(ctx context.Context, req Request) (*provider.Result, error) {
	return g.complete(ctx, req, "narrate")
}

// NarrateStream runs a streaming free-form narration call. The returned
// channel delivers canonical events and closes after the terminal
// typing-end event. It never blocks forever: every send is abandoned when
// ctx is cancelled.
func (g *Gateway) NarrateStream(ctx context.Context, req Request) <-chan Event {
	return g.stream(ctx, req, "narrate")
}

// Remark runs a one-shot short persona-voiced remark call. Identical
// machinery to Narrate — the op label keeps the two distinguishable in
// logs, and callers shape the prompt.
func (g *Gateway) Remark(ctx context.Context, req Request) (*provider.Result, error) {
	return g.complete(ctx, req, "remark")
}

// RemarkStream runs a streaming persona-voiced remark call.
func (g *Gateway) RemarkStream(ctx context.Context, req Request) <-chan Event {
	return g.stream(ctx, req, "remark")
}

// ---------------------------------------------------------------------------
// One-shot engine
// ---------------------------------------------------------------------------

func (g *Gateway) complete(ctx context.Context, req Request, op string) (*provider.Result, error) {
	policy, addr := g.resolve(req.Route)
	attempts := g.attempts(policy)
	if len(attempts) == 0 {
		return nil, ErrNoProvider
	}

	log := g.log.With().Str("op", op).Str("session", uuid.NewString()).Logger()

	for i, at := range attempts {
		hasNext := i+1 < len(attempts)

		res, err := at.prov.Complete(ctx, buildRequest(req, at.slot, addr))
		if err != nil {
			trigger := fallback.Classify(err)
			if policy.ShouldRetry(trigger, false, hasNext) {
				log.Warn().
					Str("provider", at.prov.Name()).
					Str("trigger", string(trigger)).
					Err(err).
					Msg("attempt failed, trying next provider")
				continue
			}
			return nil, err
		}

		// A well-formed but empty answer is a policy question, not an
		// error: retry if empty-output is in the trigger set, otherwise
		// accept it as final. When the retry also comes back empty there
		// is no third attempt — hasNext is false and the empty result is
		// accepted.
		if res.Answer == "" && policy.ShouldRetry(fallback.TriggerEmptyOutput, false, hasNext) {
			log.Warn().
				Str("provider", at.prov.Name()).
				Msg("empty output, trying next provider")
			continue
		}

		return finalize(req, res), nil
	}

	return nil, ErrNoProvider
}

// finalize applies the post-assembly reasoning suppression: if the caller
// disabled reasoning, it is discarded no matter which channel produced it.
// This is the only place that rule lives, which is what makes it uniform
// across both codecs.
func finalize(req Request, res *provider.Result) *provider.Result {
	if req.Effort == provider.EffortOff || req.Effort == "" {
		res.Reasoning = ""
	}
	return res
}

// ---------------------------------------------------------------------------
// Streaming engine
// ---------------------------------------------------------------------------

// Session state machine:
//
//	Idle → Connecting(primary) → Emitting → Completed            → Ended
//	                           ↘ FailedNoOutput → Connecting(secondary) → ...
//	                           ↘ FailedWithOutput → Errored      → Ended
//
// Ended is terminal: the typing-end event goes out, the channel closes, and
// nothing is ever emitted afterward.
func (g *Gateway) stream(ctx context.Context, req Request, op string) <-chan Event {
	out := make(chan Event)

	s := &session{
		gw:  g,
		ctx: ctx,
		req: req,
		out: out,
		log: g.log.With().Str("op", op).Str("session", uuid.NewString()).Logger(),
	}
	s.policy, s.addr = g.resolve(req.Route)

	go s.run()
	return out
}

// session owns all mutable state for one streaming call: the sentence
// buffer, the typing/produced flags, and the output channel. Nothing here
// is shared between sessions.
type session struct {
	gw  *Gateway
	ctx context.Context
	req Request
	out chan<- Event
	log zerolog.Logger

	policy fallback.Policy
	addr   string

	typed    bool // typing-start has been emitted
	produced bool // any sentence/reasoning event has been emitted
}

func (s *session) run() {
	defer close(s.out)

	attempts := s.gw.attempts(s.policy)
	if len(attempts) == 0 {
		s.emit(ErrorEvent(ErrNoProvider.Error()))
		s.emit(TypingEnded())
		return
	}

	for i, at := range attempts {
		err := s.streamFrom(at)
		if err == nil {
			s.emit(TypingEnded())
			return
		}

		// Cancellation is not a session outcome — the caller walked away.
		// Emit nothing further.
		if s.ctx.Err() != nil {
			return
		}

		trigger := fallback.Classify(err)
		hasNext := i+1 < len(attempts)

		// The produced flag enforces the one-provider invariant: after
		// any delivered output, no trigger permits a provider switch.
		if s.policy.ShouldRetry(trigger, s.produced, hasNext) {
			s.log.Warn().
				Str("provider", at.prov.Name()).
				Str("trigger", string(trigger)).
				Err(err).
				Msg("stream failed before output, trying next provider")
			continue
		}

		s.log.Error().
			Str("provider", at.prov.Name()).
			Str("trigger", string(trigger)).
			Err(err).
			Msg("stream failed")
		s.emit(ErrorEvent(err.Error()))
		s.emit(TypingEnded())
		return
	}
}

// streamFrom runs one provider attempt to completion. A nil return means
// the stream ended on its own and its final flush has been emitted.
func (s *session) streamFrom(at attempt) error {
	deltas, err := at.prov.CompleteStream(s.ctx, buildRequest(s.req, at.slot, s.addr))
	if err != nil {
		return err
	}

	// Fresh buffer per attempt: a failed primary must not leak half a
	// sentence into the secondary's output.
	buf := &sentence.Buffer{}

	for d := range deltas {
		if d.Err != nil {
			// An errored stream gets no forced flush — whatever is
			// sitting in the accumulators was never completed.
			return d.Err
		}
		if !s.emitUnits(buf.Feed(d.Reasoning, d.Text)) {
			return s.ctx.Err()
		}
	}

	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}

	// End-of-stream flush: catches a trailing clause with no terminal
	// punctuation. Only streams that end on their own get this.
	s.emitUnits(buf.Flush())
	return nil
}

func (s *session) emitUnits(units []sentence.Unit) bool {
	for _, u := range units {
		if u.Reasoning && s.suppressReasoning() {
			continue
		}
		if !s.typed {
			if !s.emit(TypingStarted()) {
				return false
			}
			s.typed = true
		}

		ev := Sentence(u.Text)
		if u.Reasoning {
			ev = Reasoning(u.Text)
		}
		if !s.emit(ev) {
			return false
		}
		s.produced = true
	}
	return true
}

func (s *session) suppressReasoning() bool {
	return s.req.Effort == provider.EffortOff || s.req.Effort == ""
}

// emit delivers one event unless the caller has cancelled. A false return
// means cancellation was observed; the session must go silent.
func (s *session) emit(ev Event) bool {
	select {
	case s.out <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}
