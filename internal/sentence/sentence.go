// Package sentence batches a firehose of streamed characters into complete
// sentence-sized units.
//
// A narration front end wants to show whole sentences appearing one by one,
// not individual tokens twitching into place. The buffer holds characters
// until it sees terminal punctuation, then hands back the finished unit.
// It never invents characters: the only thing it may drop is surrounding
// whitespace.
package sentence

import "strings"

// Unit is one completed flush: a sentence of visible text, or a chunk of
// reasoning text.
type Unit struct {
	Reasoning bool
	Text      string
}

// Buffer accumulates streamed text on two independent channels — visible
// and reasoning — and flushes each on terminal punctuation.
//
// A Buffer is owned exclusively by the session that created it; it is not
// safe for concurrent use and must never be shared across sessions. The
// zero value is ready to use.
type Buffer struct {
	visible   strings.Builder
	reasoning strings.Builder
}

// Feed appends text to the selected channel's accumulator and returns any
// units completed along the way. A unit completes when a `.`, `!`, `?` or
// newline arrives; the terminator stays part of the unit.
func (b *Buffer) Feed(reasoning bool, text string) []Unit {
	acc := b.acc(reasoning)

	var units []Unit
	for _, r := range text {
		acc.WriteRune(r)
		if isTerminal(r) {
			units = appendFlush(units, acc, reasoning)
		}
	}
	return units
}

// Flush force-flushes both accumulators. Call it once at stream end to
// catch a trailing clause that never got terminal punctuation. Visible
// text comes before reasoning in the returned slice.
func (b *Buffer) Flush() []Unit {
	var units []Unit
	units = appendFlush(units, &b.visible, false)
	units = appendFlush(units, &b.reasoning, true)
	return units
}

func (b *Buffer) acc(reasoning bool) *strings.Builder {
	if reasoning {
		return &b.reasoning
	}
	return &b.visible
}

// appendFlush empties an accumulator into the unit list. Whitespace-only
// content is discarded silently — a stream of "\n\n" padding between
// paragraphs should not produce empty sentence events.
func appendFlush(units []Unit, acc *strings.Builder, reasoning bool) []Unit {
	text := strings.TrimSpace(acc.String())
	acc.Reset()
	if text == "" {
		return units
	}
	return append(units, Unit{Reasoning: reasoning, Text: text})
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
