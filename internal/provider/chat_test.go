package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"
)

func TestChatComplete(t *testing.T) {
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"role":    "assistant",
					"content": "<think>rook is pinned</think>Don't touch that rook.",
				}},
			},
		})
	}))
	defer srv.Close()

	p := NewChatProvider(Settings{BaseURL: srv.URL, Model: "base-model"}, srv.Client())

	res, err := p.Complete(context.Background(), &Request{
		System: "coach",
		User:   "What now?",
	})
	require.NoError(t, err)

	// Reasoning is split out of the visible text unconditionally.
	assert.Equal(t, "Don't touch that rook.", res.Answer)
	assert.Equal(t, "rook is pinned", res.Reasoning)
	assert.Equal(t, "chat", res.Provider)

	// The wire request: role-tagged messages, system first.
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "coach"}, gotBody.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "What now?"}, gotBody.Messages[1])
}

func TestChatComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	p := NewChatProvider(Settings{BaseURL: srv.URL}, srv.Client())

	_, err := p.Complete(context.Background(), &Request{User: "hi"})

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
}

// TestChatComplete_Recorded replays a captured exchange with a real
// chat-completions backend, so the codec is exercised against actual wire
// bytes rather than a hand-built fake.
func TestChatComplete_Recorded(t *testing.T) {
	rec, err := recorder.New("testdata/chat_complete",
		recorder.WithMode(recorder.ModeReplayOnly))
	require.NoError(t, err)
	defer rec.Stop()

	p := NewChatProvider(Settings{
		BaseURL:     "https://api.deepseek.example/v1",
		APIKey:      "test-key",
		Model:       "deepseek-reasoner",
		MaxTokens:   512,
		Temperature: 0.8,
		TopP:        0.95,
	}, rec.GetDefaultClient())

	res, err := p.Complete(context.Background(), &Request{
		System: "You are a chess coach who taunts the player.",
		User:   "Opponent just blundered their queen.",
	})
	require.NoError(t, err)

	assert.Equal(t, "A whole queen, free of charge? I'd say thank you, but they can't hear me.", res.Answer)
	assert.Equal(t, "Queen hangs on d8, nothing defends it. Keep it short and smug.", res.Reasoning)
}

func TestChatStream(t *testing.T) {
	lines := []string{
		`data: {"choices":[{"delta":{"role":"assistant","content":""}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"<think>stall"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":" for time</think>"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"Nice "}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"try."}}]}`,
		``,
		`data: [DONE]`,
	}
	srv := httptest.NewServer(sseHandler(t, "/chat/completions", lines))
	defer srv.Close()

	p := NewChatProvider(Settings{BaseURL: srv.URL}, srv.Client())

	ch, err := p.CompleteStream(context.Background(), &Request{User: "hi"})
	require.NoError(t, err)

	var visible, reasoning string
	for _, d := range drain(t, ch) {
		require.NoError(t, d.Err)
		if d.Reasoning {
			reasoning += d.Text
		} else {
			visible += d.Text
		}
	}

	assert.Equal(t, "Nice try.", visible)
	assert.Equal(t, "stall for time", reasoning)
}

func TestChatStream_MarkerTornAcrossDeltas(t *testing.T) {
	// The opening marker itself arrives split mid-marker. The splitter must
	// not leak marker fragments into the visible channel.
	lines := []string{
		`data: {"choices":[{"delta":{"content":"<th"}}]}`,
		`data: {"choices":[{"delta":{"content":"ink>hmm</think>Go."}}]}`,
		`data: [DONE]`,
	}
	srv := httptest.NewServer(sseHandler(t, "/chat/completions", lines))
	defer srv.Close()

	p := NewChatProvider(Settings{BaseURL: srv.URL}, srv.Client())

	ch, err := p.CompleteStream(context.Background(), &Request{User: "hi"})
	require.NoError(t, err)

	var visible, reasoning string
	for _, d := range drain(t, ch) {
		if d.Reasoning {
			reasoning += d.Text
		} else {
			visible += d.Text
		}
	}

	assert.Equal(t, "Go.", visible)
	assert.Equal(t, "hmm", reasoning)
}

func TestChatStream_StatusErrorBeforeChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewChatProvider(Settings{BaseURL: srv.URL}, srv.Client())

	ch, err := p.CompleteStream(context.Background(), &Request{User: "hi"})
	assert.Nil(t, ch)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
}
