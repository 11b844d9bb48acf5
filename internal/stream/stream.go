// Package stream writes the canonical event stream to an HTTP response as
// newline-delimited JSON.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/howard-nolan/coachgate/internal/gateway"
)

// Write reads canonical events from the channel and writes them to the
// http.ResponseWriter as one JSON object per line, flushing after every
// event so the client sees sentences appear in real time.
//
// This is the consumer side of the streaming pipeline:
//
//	provider goroutine → gateway session → channel → Write() → client
//
// The stream is self-terminating: the gateway guarantees the last event is
// {"type":"typing","state":"end"}, so there is no extra sentinel to append.
func Write(w http.ResponseWriter, events <-chan gateway.Event) error {
	// The concrete ResponseWriter Go's HTTP server hands us also
	// implements http.Flusher; we need Flush() to push each line out
	// immediately instead of waiting for the buffer to fill. The
	// two-value assertion is the safe form — no panic if some middleware
	// wrapped the writer in something that can't flush.
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support flushing (http.Flusher)")
	}

	// Headers must be set before the first write — once the body starts,
	// they're locked in.
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	for ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshaling event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return fmt.Errorf("writing event: %w", err)
		}
		flusher.Flush()
	}

	return nil
}
