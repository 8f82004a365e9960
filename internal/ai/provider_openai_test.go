package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func writeOpenAIResponse(w http.ResponseWriter, model, content string) {
	json.NewEncoder(w).Encode(openaiResponse{
		Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: content}}},
		Model:   model,
		Usage:   openaiUsage{PromptTokens: 10, CompletionTokens: 5},
	})
}

func TestOpenAIProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}

		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Model != "gpt-4o" {
			t.Errorf("model = %q, want %q", req.Model, "gpt-4o")
		}
		if req.Stream {
			t.Error("Complete() should not request a stream")
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		writeOpenAIResponse(w, "gpt-4o", "Hi there!")
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
		Model:    "gpt-4o",
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hi there!" {
		t.Errorf("content = %q, want %q", resp.Content, "Hi there!")
	}
	if resp.InputTokens != 10 {
		t.Errorf("input_tokens = %d, want 10", resp.InputTokens)
	}
	if resp.OutputTokens != 5 {
		t.Errorf("output_tokens = %d, want 5", resp.OutputTokens)
	}
}

func TestOpenAIProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error on API error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status code in message", err)
	}
}

func TestOpenAIProvider_Complete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiResponse{Choices: nil})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error when no choices")
	}
}

func TestOpenAIProvider_StreamComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream || req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
			t.Errorf("stream request = %+v, want stream with usage", req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Think ", "about ", "two pointers."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":7,\"completion_tokens\":3}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	ch, err := provider.StreamComplete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hint?"}},
	})
	if err != nil {
		t.Fatalf("StreamComplete() error = %v", err)
	}

	var text strings.Builder
	var last StreamChunk
	for chunk := range ch {
		if chunk.Error != nil {
			t.Fatalf("chunk error = %v", chunk.Error)
		}
		text.WriteString(chunk.Content)
		last = chunk
	}
	if text.String() != "Think about two pointers." {
		t.Errorf("streamed text = %q", text.String())
	}
	if !last.Done || last.InputTokens != 7 || last.OutputTokens != 3 {
		t.Errorf("final chunk = %+v, want Done with usage 7/3", last)
	}
}

func TestOpenAIProvider_StreamComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))
	if _, err := provider.StreamComplete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("StreamComplete() should return error on API error")
	}
}

func TestDeepSeekProvider_UsesCorrectBaseURL(t *testing.T) {
	var receivedPath, receivedModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		receivedModel = req.Model
		writeOpenAIResponse(w, "deepseek-chat", "deepseek response")
	}))
	defer server.Close()

	provider := NewDeepSeekProvider("ds-key", WithBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if receivedPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", receivedPath)
	}
	if receivedModel != "deepseek-chat" {
		t.Errorf("model = %q, want deepseek-chat", receivedModel)
	}
	if resp.Content != "deepseek response" {
		t.Errorf("content = %q, want %q", resp.Content, "deepseek response")
	}
	if provider.Name() != "deepseek" {
		t.Errorf("Name() = %q, want deepseek", provider.Name())
	}
}

func TestOpenRouterProvider_SendsAttributionHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Title") != "DSAQuest" {
			t.Errorf("X-Title = %q, want DSAQuest", r.Header.Get("X-Title"))
		}
		if r.Header.Get("HTTP-Referer") == "" {
			t.Error("HTTP-Referer header missing")
		}
		writeOpenAIResponse(w, "qwen/qwen-2.5-72b-instruct", "ok")
	}))
	defer server.Close()

	provider := NewOpenRouterProvider("or-key", WithBaseURL(server.URL))
	if _, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestOpenAIProvider_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/models" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))
			err := provider.HealthCheck(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIProvider_CustomModels(t *testing.T) {
	custom := []ModelInfo{{ID: "custom-model", Name: "Custom"}}
	provider := NewOpenAIProvider("test-key", WithModels(custom))
	models := provider.Models()

	if len(models) != 1 || models[0].ID != "custom-model" {
		t.Errorf("Models() = %+v, want custom models", models)
	}
}

func TestOpenAIProvider_DefaultModel(t *testing.T) {
	tests := []struct {
		name string
		opts []OpenAIOption
		want string
	}{
		{"builtin default", nil, "gpt-4o-mini"},
		{"configured default", []OpenAIOption{WithDefaultModel("gpt-4o")}, "gpt-4o"},
		{"empty keeps builtin", []OpenAIOption{WithDefaultModel("")}, "gpt-4o-mini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var receivedModel string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req openaiRequest
				json.NewDecoder(r.Body).Decode(&req)
				receivedModel = req.Model
				writeOpenAIResponse(w, req.Model, "ok")
			}))
			defer server.Close()

			provider := NewOpenAIProvider("test-key", append(tt.opts, WithBaseURL(server.URL))...)
			if _, err := provider.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			}); err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if receivedModel != tt.want {
				t.Errorf("model = %q, want %q", receivedModel, tt.want)
			}
		})
	}
}
