package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ---------------------------------------------------------------------------
// ChatProvider struct + constructor
// ---------------------------------------------------------------------------

// ChatProvider implements Provider for the role-message wire format
// (POST {base}/chat/completions) — the OpenAI chat shape that practically
// every hosted and local backend speaks.
//
// Key differences from the responses codec:
//   - system and user text stay separate, as role-tagged messages
//   - the token limit field is "max_tokens", not "max_output_tokens"
//   - there is NO native reasoning channel; models that think do it inline
//     in the visible text between <think> markers (see think.go)
type ChatProvider struct {
	cfg    Settings
	client *http.Client
}

// NewChatProvider creates a ChatProvider ready to make API calls.
func NewChatProvider(cfg Settings, client *http.Client) *ChatProvider {
	return &ChatProvider{cfg: cfg, client: client}
}

// Name returns the adapter identifier.
func (p *ChatProvider) Name() string {
	return "chat"
}

// ---------------------------------------------------------------------------
// Wire types (unexported)
// ---------------------------------------------------------------------------

// --- Request types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

// chatResponse is the body of a non-streaming call. We only ever read
// choices[0] — the gateway asks for a single completion.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatStreamEvent is one decoded "data:" line. Unlike the responses codec,
// every event has the same shape; the fragment sits at
// choices[0].delta.content.
type chatStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ---------------------------------------------------------------------------
// Request construction
// ---------------------------------------------------------------------------

func (p *ChatProvider) buildRequest(req *Request, stream bool) *chatRequest {
	wire := &chatRequest{
		Model:       p.cfg.model(req.Effort),
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		TopP:        p.cfg.TopP,
		Stream:      stream,
	}
	if req.System != "" {
		wire.Messages = append(wire.Messages, chatMessage{Role: "system", Content: req.System})
	}
	wire.Messages = append(wire.Messages, chatMessage{Role: "user", Content: req.User})
	return wire
}

func (p *ChatProvider) newHTTPRequest(ctx context.Context, req *Request, body []byte) (*http.Request, error) {
	url := strings.TrimSuffix(p.cfg.baseURL(req), "/") + "/chat/completions"

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

// ---------------------------------------------------------------------------
// Non-streaming: Complete
// ---------------------------------------------------------------------------

// Complete sends a non-streaming request and assembles the full result.
//
// Because this wire format smuggles reasoning inside the visible text, the
// assembled content goes through SplitReasoning before it becomes a Result.
// That unconditional split is deliberate: the gateway suppresses reasoning
// downstream when the caller turned it off, and doing the split here is the
// only way "no reasoning" behaves identically across both codecs.
func (p *ChatProvider) Complete(ctx context.Context, req *Request) (*Result, error) {
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

	var wire chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wire); err != nil {
		return nil, &MalformedError{Reason: err.Error()}
	}
	if len(wire.Choices) == 0 {
		return nil, &MalformedError{Reason: "response has no choices"}
	}

	answer, reasoning := SplitReasoning(wire.Choices[0].Message.Content)

	return &Result{
		Answer:    answer,
		Reasoning: reasoning,
		Provider:  p.Name(),
	}, nil
}

// ---------------------------------------------------------------------------
// Streaming: CompleteStream
// ---------------------------------------------------------------------------

// CompleteStream sends a streaming request and returns a channel of Deltas.
//
// Same framing as the responses codec ("data:" lines, "[DONE]" sentinel),
// but every visible fragment passes through a thinkSplitter so that inline
// <think> spans come out as reasoning deltas instead of leaking marker
// soup into the visible channel.
func (p *ChatProvider) CompleteStream(ctx context.Context, req *Request) (<-chan Delta, error) {
	body, err := json.Marshal(p.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := p.newHTTPRequest(ctx, req, body)
	if err != nil {
		return nil, err
	}

	// The goroutine owns the body — no defer here.
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

		// One splitter per stream: marker state is per-session.
		var splitter thinkSplitter

		send := func(deltas []Delta) bool {
			for _, d := range deltas {
				select {
				case ch <- d:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		scanner := bufio.NewScanner(httpResp.Body)

		for scanner.Scan() {
			line := scanner.Text()

			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")

			if payload == "[DONE]" {
				// Flush a dangling partial marker before closing.
				send(splitter.finish())
				return
			}

			// Skip corrupt lines, never abort on them.
			var event chatStreamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue
			}
			if len(event.Choices) == 0 {
				continue
			}
			content := event.Choices[0].Delta.Content
			if content == "" {
				continue
			}

			if !send(splitter.feed(content)) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case ch <- Delta{Err: fmt.Errorf("reading stream: %w", err)}:
			case <-ctx.Done():
			}
			return
		}

		// Clean EOF without [DONE]: still flush the splitter.
		send(splitter.finish())
	}()

	return ch, nil
}
