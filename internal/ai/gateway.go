// Package ai provides a provider-agnostic text-completion gateway with fallback routing.
package ai

import (
	"context"
	"errors"
)

// TaskType defines the kind of completion for logging and routing purposes.
type TaskType int

const (
	TaskChat TaskType = iota
	TaskExplain
	TaskSummarize
)

func (t TaskType) String() string {
	switch t {
	case TaskChat:
		return "chat"
	case TaskExplain:
		return "explain"
	case TaskSummarize:
		return "summarize"
	default:
		return "unknown"
	}
}

// ErrNoProvider is returned when every provider failed or none is registered.
var ErrNoProvider = errors.New("no AI provider available")

// Message represents a chat message. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// StreamChunk represents a streaming response chunk. The final chunk has Done set
// and carries token usage when the provider reports it.
type StreamChunk struct {
	Content      string
	Done         bool
	Error        error
	InputTokens  int
	OutputTokens int
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}

// Completer is the part of the gateway callers need. *Router satisfies it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// completeAsStream adapts a one-shot completion to the streaming interface.
func completeAsStream(ctx context.Context, p Provider, req CompletionRequest) <-chan StreamChunk {
	ch := make(chan StreamChunk, 1)
	go func() {
		defer close(ch)
		resp, err := p.Complete(ctx, req)
		if err != nil {
			ch <- StreamChunk{Error: err}
			return
		}
		ch <- StreamChunk{
			Content:      resp.Content,
			Done:         true,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		}
	}()
	return ch
}
