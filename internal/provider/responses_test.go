package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseHandler writes a fixed sequence of SSE lines and returns. Each entry is
// one raw line; the handler adds the newline.
func sseHandler(t *testing.T, wantPath string, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}
}

// drain reads a delta channel to completion.
func drain(t *testing.T, ch <-chan Delta) []Delta {
	t.Helper()
	var out []Delta
	for d := range ch {
		out = append(out, d)
	}
	return out
}

func TestResponsesComplete(t *testing.T) {
	var gotBody responsesRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{
				{
					"type": "reasoning",
					"summary": []map[string]any{
						{"type": "summary_text", "text": "weighing the rook trade"},
					},
				},
				{
					"type": "message",
					"content": []map[string]any{
						{"type": "output_text", "text": "Take the rook."},
					},
				},
			},
		})
	}))
	defer srv.Close()

	p := NewResponsesProvider(Settings{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "base-model",
		Tiers:   map[Effort]string{EffortHigh: "big-model"},
	}, srv.Client())

	res, err := p.Complete(context.Background(), &Request{
		System: "You are a chess coach.",
		User:   "What now?",
		Effort: EffortHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, "Take the rook.", res.Answer)
	assert.Equal(t, "weighing the rook trade", res.Reasoning)
	assert.Equal(t, "responses", res.Provider)

	// The wire request: tiered model, joined prompt, reasoning asked for.
	assert.Equal(t, "big-model", gotBody.Model)
	assert.Equal(t, "You are a chess coach.\n\nWhat now?", gotBody.Input)
	require.NotNil(t, gotBody.Reasoning)
	assert.Equal(t, "high", gotBody.Reasoning.Effort)
	assert.False(t, gotBody.Stream)
}

func TestResponsesComplete_FlattenedOutputText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output_text": "Castle now."})
	}))
	defer srv.Close()

	p := NewResponsesProvider(Settings{BaseURL: srv.URL}, srv.Client())

	res, err := p.Complete(context.Background(), &Request{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Castle now.", res.Answer)
	assert.Empty(t, res.Reasoning)
}

func TestResponsesComplete_EffortOffOmitsReasoning(t *testing.T) {
	var gotBody responsesRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{"output_text": "ok"})
	}))
	defer srv.Close()

	p := NewResponsesProvider(Settings{BaseURL: srv.URL}, srv.Client())

	_, err := p.Complete(context.Background(), &Request{User: "hi", Effort: EffortOff})
	require.NoError(t, err)
	assert.Nil(t, gotBody.Reasoning)
}

func TestResponsesComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewResponsesProvider(Settings{BaseURL: srv.URL}, srv.Client())

	_, err := p.Complete(context.Background(), &Request{User: "hi"})
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
	assert.Contains(t, httpErr.Body, "model overloaded")
}

func TestResponsesComplete_BaseURLOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output_text": "via override"})
	}))
	defer srv.Close()

	// Configured base points nowhere; the per-request override wins.
	p := NewResponsesProvider(Settings{BaseURL: "http://127.0.0.1:1"}, srv.Client())

	res, err := p.Complete(context.Background(), &Request{User: "hi", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "via override", res.Answer)
}

func TestResponsesStream(t *testing.T) {
	lines := []string{
		`data: {"type":"response.created"}`,
		``,
		`data: {"type":"response.reasoning_summary_text.delta","delta":"thinking "}`,
		``,
		`data: {"type":"response.output_text.delta","delta":"Nice "}`,
		``,
		`this line is not SSE at all`,
		`data: {"type":"response.output_text.delta","delta":{"text":"try."}}`,
		``,
		`data: {not json`,
		`data: [DONE]`,
		`data: {"type":"response.output_text.delta","delta":"never seen"}`,
	}
	srv := httptest.NewServer(sseHandler(t, "/responses", lines))
	defer srv.Close()

	p := NewResponsesProvider(Settings{BaseURL: srv.URL}, srv.Client())

	ch, err := p.CompleteStream(context.Background(), &Request{User: "hi"})
	require.NoError(t, err)

	deltas := drain(t, ch)
	require.Len(t, deltas, 3)
	assert.Equal(t, Delta{Reasoning: true, Text: "thinking "}, deltas[0])
	assert.Equal(t, Delta{Text: "Nice "}, deltas[1])
	assert.Equal(t, Delta{Text: "try."}, deltas[2])
}

func TestResponsesStream_StatusErrorBeforeChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewResponsesProvider(Settings{BaseURL: srv.URL}, srv.Client())

	ch, err := p.CompleteStream(context.Background(), &Request{User: "hi"})
	assert.Nil(t, ch)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
}

func TestResponsesStream_EOFWithoutDone(t *testing.T) {
	// Body just ends with no [DONE]. That's a clean scanner EOF, so the
	// channel closes without an error delta.
	lines := []string{
		`data: {"type":"response.output_text.delta","delta":"half a "}`,
	}
	srv := httptest.NewServer(sseHandler(t, "/responses", lines))
	defer srv.Close()

	p := NewResponsesProvider(Settings{BaseURL: srv.URL}, srv.Client())

	ch, err := p.CompleteStream(context.Background(), &Request{User: "hi"})
	require.NoError(t, err)

	deltas := drain(t, ch)
	require.Len(t, deltas, 1)
	assert.Equal(t, "half a ", deltas[0].Text)
	assert.NoError(t, deltas[0].Err)
}

func TestJoinPrompt(t *testing.T) {
	assert.Equal(t, "sys\n\nuser", joinPrompt("sys", "user"))
	assert.Equal(t, "user", joinPrompt("", "user"))
	assert.Equal(t, "sys", joinPrompt("sys", ""))
}
