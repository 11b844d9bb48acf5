package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ---------------------------------------------------------------------------
// ResponsesProvider struct + constructor
// ---------------------------------------------------------------------------

// ResponsesProvider implements Provider for the single-prompt wire format
// (POST {base}/responses). This is the format spoken by OpenAI's Responses
// API and the local servers that imitate it. It is the only one of our two
// codecs with a native reasoning channel: reasoning arrives as its own
// event type instead of being inlined into the visible text.
type ResponsesProvider struct {
	cfg    Settings
	client *http.Client
}

// NewResponsesProvider creates a ResponsesProvider ready to make API calls.
func NewResponsesProvider(cfg Settings, client *http.Client) *ResponsesProvider {
	return &ResponsesProvider{cfg: cfg, client: client}
}

// Name returns the adapter identifier.
func (p *ResponsesProvider) Name() string {
	return "responses"
}

// ---------------------------------------------------------------------------
// Wire types (unexported)
// ---------------------------------------------------------------------------

// --- Request types ---

// responsesRequest is the request body for {base}/responses.
//
// The whole prompt travels as one "input" string — system text first, then
// a blank line, then the user content. The optional "reasoning" object asks
// the backend to think before answering; we omit it entirely when the
// caller turned reasoning off, because some servers treat its mere presence
// as "reasoning requested".
type responsesRequest struct {
	Model           string              `json:"model"`
	Input           string              `json:"input"`
	MaxOutputTokens int                 `json:"max_output_tokens,omitempty"`
	Temperature     float64             `json:"temperature"`
	TopP            float64             `json:"top_p"`
	Stream          bool                `json:"stream,omitempty"`
	Reasoning       *responsesReasoning `json:"reasoning,omitempty"`
}

type responsesReasoning struct {
	Effort string `json:"effort"`
}

// --- Response types (one-shot) ---

// responsesResponse is the body of a non-streaming call. The interesting
// part is the "output" array: a mix of typed items, where "message" items
// hold the visible answer and "reasoning" items hold summarized thinking.
// Newer servers also include a flattened "output_text" convenience field —
// we prefer it when present and fall back to walking the array.
type responsesResponse struct {
	OutputText string          `json:"output_text"`
	Output     []responsesItem `json:"output"`
}

type responsesItem struct {
	Type    string           `json:"type"` // "message" or "reasoning"
	Content []responsesBlock `json:"content"`
	Summary []responsesBlock `json:"summary"`
}

type responsesBlock struct {
	Type string `json:"type"` // "output_text", "summary_text", ...
	Text string `json:"text"`
}

// --- Streaming event types ---

// responsesStreamEvent is one decoded "data:" line. The server emits many
// event types (response.created, response.output_item.added, ...); we key
// off substrings of the type instead of enumerating them, because the set
// keeps growing and we only care about two families:
//
//   - types containing "output_text.delta"  → a visible-text fragment
//   - types containing "reasoning"          → a reasoning-text fragment
//
// The fragment itself sits in "delta", which is sometimes a bare JSON
// string and sometimes an object with a "text" or "output_text" field,
// depending on the server generation. json.RawMessage lets us defer that
// decision until we've seen which shape arrived.
type responsesStreamEvent struct {
	Type  string          `json:"type"`
	Delta json.RawMessage `json:"delta"`
	Text  string          `json:"text"`
}

// fragment extracts the text carried by a stream event, trying the bare
// string form first, then the nested object forms, then the top-level
// "text" field some servers use instead.
func (e *responsesStreamEvent) fragment() string {
	if len(e.Delta) > 0 {
		var s string
		if err := json.Unmarshal(e.Delta, &s); err == nil {
			return s
		}
		var obj struct {
			Text       string `json:"text"`
			OutputText string `json:"output_text"`
		}
		if err := json.Unmarshal(e.Delta, &obj); err == nil {
			if obj.Text != "" {
				return obj.Text
			}
			return obj.OutputText
		}
	}
	return e.Text
}

// ---------------------------------------------------------------------------
// Request construction
// ---------------------------------------------------------------------------

// buildRequest translates the canonical Request into the wire body.
func (p *ResponsesProvider) buildRequest(req *Request, stream bool) *responsesRequest {
	wire := &responsesRequest{
		Model:           p.cfg.model(req.Effort),
		Input:           joinPrompt(req.System, req.User),
		MaxOutputTokens: p.cfg.MaxTokens,
		Temperature:     p.cfg.Temperature,
		TopP:            p.cfg.TopP,
		Stream:          stream,
	}
	if req.Effort != "" && req.Effort != EffortOff {
		wire.Reasoning = &responsesReasoning{Effort: string(req.Effort)}
	}
	return wire
}

// joinPrompt concatenates system and user text with a blank-line separator.
// Either side may be empty; we never invent separators around nothing.
func joinPrompt(system, user string) string {
	switch {
	case system == "":
		return user
	case user == "":
		return system
	default:
		return system + "\n\n" + user
	}
}

func (p *ResponsesProvider) newHTTPRequest(ctx context.Context, req *Request, body []byte) (*http.Request, error) {
	url := strings.TrimSuffix(p.cfg.baseURL(req), "/") + "/responses"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	return httpReq, nil
}

// checkStatus turns a non-2xx response into a classified HTTPError. We read
// a bounded slice of the body so the error message has something to say
// without trusting the server not to send us a novel.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// ---------------------------------------------------------------------------
// Non-streaming: Complete
// ---------------------------------------------------------------------------

// Complete sends a non-streaming request and assembles the full result.
//
// Flow: translate → serialize → HTTP POST → classify status → decode body →
// translate back. An empty answer is NOT an error here — the gateway
// decides whether empty output triggers a fallback, because that decision
// belongs to policy, not to the codec.
func (p *ResponsesProvider) Complete(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(p.buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := p.newHTTPRequest(ctx, req, body)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus(httpResp); err != nil {
		return nil, err
	}

	var wire responsesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wire); err != nil {
		return nil, &MalformedError{Reason: err.Error()}
	}

	// Prefer the flattened convenience field; otherwise walk the output
	// array for message text. Reasoning summaries ride along either way.
	answer := wire.OutputText
	var reasoning strings.Builder

	for _, item := range wire.Output {
		switch item.Type {
		case "message":
			if answer == "" {
				for _, block := range item.Content {
					if block.Type == "output_text" {
						answer += block.Text
					}
				}
			}
		case "reasoning":
			for _, block := range item.Summary {
				reasoning.WriteString(block.Text)
			}
		}
	}

	return &Result{
		Answer:    answer,
		Reasoning: reasoning.String(),
		Provider:  p.Name(),
	}, nil
}

// ---------------------------------------------------------------------------
// Streaming: CompleteStream
// ---------------------------------------------------------------------------

// CompleteStream sends a streaming request and returns a channel of Deltas.
//
// The connection attempt and status check happen synchronously, so a dead
// or refusing backend surfaces as an error return — the fallback policy can
// still act on it because nothing has been delivered yet. Once this method
// returns a channel, failures arrive in-band as an error delta.
func (p *ResponsesProvider) CompleteStream(ctx context.Context, req *Request) (<-chan Delta, error) {
	body, err := json.Marshal(p.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := p.newHTTPRequest(ctx, req, body)
	if err != nil {
		return nil, err
	}

	// Do NOT defer Body.Close() here — the goroutine owns the body and
	// closes it when the stream ends or the context is cancelled.
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if err := checkStatus(httpResp); err != nil {
		httpResp.Body.Close()
		return nil, err
	}

	ch := make(chan Delta)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()

		scanner := bufio.NewScanner(httpResp.Body)

		for scanner.Scan() {
			line := scanner.Text()

			// Lines that aren't data lines (blank separators, "event:"
			// names, comments) carry nothing we need.
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")

			// The literal end-of-stream sentinel.
			if payload == "[DONE]" {
				return
			}

			// A single corrupt line must not abort the stream — real
			// backends occasionally hiccup mid-transfer, and dropping one
			// event is strictly better than dropping the session.
			var event responsesStreamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue
			}

			var delta Delta
			switch {
			case strings.Contains(event.Type, "output_text.delta"):
				delta = Delta{Text: event.fragment()}
			case strings.Contains(event.Type, "reasoning"):
				delta = Delta{Reasoning: true, Text: event.fragment()}
			default:
				continue
			}
			if delta.Text == "" {
				continue
			}

			select {
			case ch <- delta:
			case <-ctx.Done():
				return
			}
		}

		// The body ended without [DONE] — surface the read error, if any,
		// so the gateway can report a truncated session instead of
		// pretending it completed.
		if err := scanner.Err(); err != nil {
			select {
			case ch <- Delta{Err: fmt.Errorf("reading stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}
