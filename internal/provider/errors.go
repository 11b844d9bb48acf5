package provider

import (
	"errors"
	"fmt"
)

// ErrEmptyOutput marks a response that parsed fine but contained no text.
// The fallback policy can be configured to retry on it.
var ErrEmptyOutput = errors.New("provider returned empty output")

// HTTPError is a non-success status from the upstream API, observed before
// any streamed content was read. The status code is what the fallback
// policy classifies on (429 vs 5xx vs other 4xx).
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// MalformedError marks a response body that did not parse into the shape
// the codec expects. Note this is only used for the overall body of a
// non-streaming call — a single corrupt line inside a stream is skipped,
// never fatal.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed provider response: " + e.Reason
}
