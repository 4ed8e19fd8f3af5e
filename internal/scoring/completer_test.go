package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeOpenAI(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			if status != http.StatusOK {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
				return
			}
			var req struct {
				Model     string `json:"model"`
				MaxTokens int    `json:"max_tokens"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if req.Model != "test-model" {
				t.Errorf("model = %q, want test-model", req.Model)
			}
			if req.MaxTokens != maxTokens {
				t.Errorf("max_tokens = %d, want %d", req.MaxTokens, maxTokens)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 0,
				"model":   "test-model",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": reply},
					"finish_reason": "stop",
				}},
			})
		case "/v1/models":
			_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	srv := newFakeOpenAI(t, " 4.5 \n", http.StatusOK)
	c := NewOpenAI(srv.URL+"/v1", "test-key", "test-model")

	got, err := c.Complete(context.Background(), "rate this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "4.5" {
		t.Errorf("Complete = %q, want 4.5", got)
	}

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpenAIErrorFallsBack(t *testing.T) {
	srv := newFakeOpenAI(t, "", http.StatusTooManyRequests)
	c := NewOpenAI(srv.URL+"/v1", "test-key", "test-model")

	if _, err := c.Complete(context.Background(), "rate this"); err == nil {
		t.Fatal("expected error from rate-limited endpoint")
	}

	g := NewScorer(c, 0).Score(context.Background(), "Q", "A", "some answer")
	if !g.Fallback || g.Score != FallbackScore {
		t.Errorf("expected fallback grade, got %+v", g)
	}
}
