// Package fallback holds the pure decision logic for retrying a failed
// primary-provider call against a secondary provider.
//
// Nothing in here performs I/O. The gateway observes a failure (or a
// suspicious result), classifies it into a Trigger, and asks the Policy
// whether a retry is allowed. Keeping this a pure function makes the whole
// retry matrix testable without a single network connection.
package fallback

import (
	"context"
	"errors"
	"net"

	"github.com/howard-nolan/coachgate/internal/provider"
)

// ---------------------------------------------------------------------------
// Ordering
// ---------------------------------------------------------------------------

// Ordering selects which providers a session may use, and in what order.
type Ordering string

const (
	PrimaryOnly          Ordering = "primary-only"
	SecondaryOnly        Ordering = "secondary-only"
	PrimaryThenSecondary Ordering = "primary-then-secondary"
	SecondaryThenPrimary Ordering = "secondary-then-primary"
)

// Slot identifies one of the two configured providers.
type Slot int

const (
	Primary Slot = iota
	Secondary
)

// Sequence resolves the ordering into the attempt sequence. An unknown
// ordering resolves to primary-then-secondary, the default mode.
func (o Ordering) Sequence() []Slot {
	switch o {
	case PrimaryOnly:
		return []Slot{Primary}
	case SecondaryOnly:
		return []Slot{Secondary}
	case SecondaryThenPrimary:
		return []Slot{Secondary, Primary}
	default:
		return []Slot{Primary, Secondary}
	}
}

// ---------------------------------------------------------------------------
// Triggers
// ---------------------------------------------------------------------------

// Trigger is the classified cause of a failed or unsatisfactory attempt.
type Trigger string

const (
	TriggerNetworkError Trigger = "network-error"
	TriggerTimeout      Trigger = "timeout"
	TriggerHTTP5xx      Trigger = "http-5xx"
	TriggerHTTP429      Trigger = "http-429"
	TriggerHTTP4xx      Trigger = "http-4xx"
	TriggerEmptyOutput  Trigger = "empty-output"
	TriggerMalformed    Trigger = "malformed-response"
)

// Classify maps an error from a provider attempt onto a Trigger.
//
// HTTP statuses are checked first because an *provider.HTTPError is the
// most specific signal we have; everything that isn't one of our typed
// errors and isn't a timeout is treated as a network-level failure
// (connection refused/reset, DNS, ...).
func Classify(err error) Trigger {
	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 429:
			return TriggerHTTP429
		case httpErr.Status >= 500 && httpErr.Status < 600:
			return TriggerHTTP5xx
		case httpErr.Status >= 400:
			return TriggerHTTP4xx
		default:
			// A redirect or other oddity where a body was expected.
			return TriggerMalformed
		}
	}

	if errors.Is(err, provider.ErrEmptyOutput) {
		return TriggerEmptyOutput
	}

	var malformed *provider.MalformedError
	if errors.As(err, &malformed) {
		return TriggerMalformed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TriggerTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TriggerTimeout
	}

	return TriggerNetworkError
}

// ---------------------------------------------------------------------------
// Policy
// ---------------------------------------------------------------------------

// Policy is the rule set for one logical call: the provider ordering plus
// the set of triggers that permit a retry on the other provider.
// Read-only after construction; shared freely across concurrent sessions.
type Policy struct {
	Ordering Ordering
	retryOn  map[Trigger]bool
}

// NewPolicy builds a Policy from configuration strings. Unknown trigger
// names are kept verbatim in the set; they simply never match anything
// Classify produces.
func NewPolicy(ordering Ordering, triggers []string) Policy {
	set := make(map[Trigger]bool, len(triggers))
	for _, t := range triggers {
		set[Trigger(t)] = true
	}
	return Policy{Ordering: ordering, retryOn: set}
}

// WithOrdering returns a copy of the policy with a different ordering but
// the same trigger set. Used for per-request routing overrides.
func (p Policy) WithOrdering(o Ordering) Policy {
	return Policy{Ordering: o, retryOn: p.retryOn}
}

// ShouldRetry reports whether a failed attempt may be retried on the next
// provider in the sequence.
//
// Two conditions veto a retry no matter what the trigger set says:
//
//   - hasProducedOutput: once any sentence or reasoning chunk has been
//     delivered downstream, switching providers would show the client
//     output stitched together from two different models. The session must
//     surface an error instead.
//   - hasNext: there is no "next provider" to retry on.
func (p Policy) ShouldRetry(t Trigger, hasProducedOutput, hasNext bool) bool {
	if hasProducedOutput || !hasNext {
		return false
	}
	return p.retryOn[t]
}
