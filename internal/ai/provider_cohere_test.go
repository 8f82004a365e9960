package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewCohereProvider_EmptyKey(t *testing.T) {
	if _, err := NewCohereProvider(""); err == nil {
		t.Fatal("NewCohereProvider() should return error for empty key")
	}
}

func TestCohereProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer co-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req cohereRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != defaultCohereModel {
			t.Errorf("model = %q, want %q", req.Model, defaultCohereModel)
		}
		// System prompts stay in the message list for the v2 API.
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v, want system then user", req.Messages)
		}
		if req.MaxTokens != 200 {
			t.Errorf("max_tokens = %d, want 200", req.MaxTokens)
		}

		w.Write([]byte(`{
			"id": "c1",
			"finish_reason": "COMPLETE",
			"message": {
				"role": "assistant",
				"content": [{"type": "text", "text": "A stack is LIFO."}]
			},
			"usage": {
				"billed_units": {"input_tokens": 20, "output_tokens": 6},
				"tokens": {"input_tokens": 42, "output_tokens": 6}
			}
		}`))
	}))
	defer server.Close()

	provider, err := NewCohereProvider("co-key", WithCohereBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewCohereProvider() error = %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You are Sensei."},
			{Role: "user", Content: "What is a stack?"},
		},
		MaxTokens: 200,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "A stack is LIFO." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.InputTokens != 42 || resp.OutputTokens != 6 {
		t.Errorf("tokens = %d/%d, want 42/6", resp.InputTokens, resp.OutputTokens)
	}
	if resp.Model != defaultCohereModel {
		t.Errorf("model = %q, want %q", resp.Model, defaultCohereModel)
	}
}

func TestCohereProvider_Complete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusTooManyRequests, `{"message":"rate limited"}`},
		{"no text", http.StatusOK, `{"message":{"role":"assistant","content":[]}}`},
		{"bad json", http.StatusOK, `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider, _ := NewCohereProvider("co-key", WithCohereBaseURL(server.URL))
			if _, err := provider.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			}); err == nil {
				t.Error("Complete() should return error")
			}
		})
	}
}

func TestCohereProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, _ := NewCohereProvider("co-key", WithCohereBaseURL(server.URL), WithCohereModel("command-r-08-2024"))
	if err := provider.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if provider.defaultModel != "command-r-08-2024" {
		t.Errorf("defaultModel = %q, want command-r-08-2024", provider.defaultModel)
	}
}
