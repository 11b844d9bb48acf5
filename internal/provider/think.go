package provider

import "strings"

// The chat wire format has no native reasoning channel. Models served over
// it embed their "thinking" inline in the visible text between explicit
// markers, DeepSeek-R1 style:
//
//	<think>the board is lost, stall for time</think>Nice try. That rook...
//
// Everything related to those markers lives in this one file: a stateful
// splitter for the streaming path and a post-scan for the one-shot path.
// Nothing else in the codebase should ever look at the markers.

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ---------------------------------------------------------------------------
// Streaming split
// ---------------------------------------------------------------------------

// thinkSplitter routes a stream of visible-text fragments onto the visible
// and reasoning channels by tracking <think>...</think> state across
// fragment boundaries.
//
// The tricky part is that a marker can be split across two deltas ("<th"
// in one, "ink>" in the next), so the splitter holds back the shortest
// suffix that could still turn out to be a marker prefix and emits the
// rest immediately.
type thinkSplitter struct {
	inThink bool
	carry   string // undecided tail: possibly the start of the next marker
}

// feed consumes one fragment and returns the deltas that are now decided.
func (s *thinkSplitter) feed(text string) []Delta {
	var out []Delta
	buf := s.carry + text
	s.carry = ""

	for {
		marker := thinkOpen
		if s.inThink {
			marker = thinkClose
		}

		if idx := strings.Index(buf, marker); idx >= 0 {
			out = appendDelta(out, s.inThink, buf[:idx])
			buf = buf[idx+len(marker):]
			s.inThink = !s.inThink
			continue
		}

		// No full marker. Hold back a tail that is a prefix of the marker
		// we're looking for; everything before it is decided.
		tail := markerTail(buf, marker)
		out = appendDelta(out, s.inThink, buf[:len(buf)-tail])
		s.carry = buf[len(buf)-tail:]
		return out
	}
}

// finish flushes whatever the splitter was holding back. A dangling partial
// marker at end of stream is just text — emit it on the current channel.
func (s *thinkSplitter) finish() []Delta {
	var out []Delta
	out = appendDelta(out, s.inThink, s.carry)
	s.carry = ""
	return out
}

func appendDelta(out []Delta, reasoning bool, text string) []Delta {
	if text == "" {
		return out
	}
	return append(out, Delta{Reasoning: reasoning, Text: text})
}

// markerTail returns the length of the longest suffix of s that is a
// proper prefix of marker.
func markerTail(s, marker string) int {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}

// ---------------------------------------------------------------------------
// One-shot post-scan
// ---------------------------------------------------------------------------

// SplitReasoning scans an assembled completion for an embedded
// <think>...</think> span and splits it into the visible answer and the
// reasoning text. Text with no markers comes back unchanged. An unclosed
// marker treats the rest of the text as reasoning — the model never got
// around to answering.
func SplitReasoning(text string) (answer, reasoning string) {
	start := strings.Index(text, thinkOpen)
	if start < 0 {
		return text, ""
	}

	rest := text[start+len(thinkOpen):]
	end := strings.Index(rest, thinkClose)
	if end < 0 {
		return strings.TrimSpace(text[:start]), strings.TrimSpace(rest)
	}

	answer = text[:start] + rest[end+len(thinkClose):]
	return strings.TrimSpace(answer), strings.TrimSpace(rest[:end])
}
