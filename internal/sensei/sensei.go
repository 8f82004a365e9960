// Package sensei is the AI study assistant: free-form DSA chat and short
// explanations of wrong quiz answers, on top of the ai gateway.
package sensei

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/dsaquest/internal/ai"
)

var (
	// ErrValidation marks a malformed chat or explain request.
	ErrValidation = errors.New("invalid request")
	// ErrUpstream wraps any failure of the completion providers.
	ErrUpstream = errors.New("AI provider unavailable")
	// ErrBudgetExceeded is returned when a user has spent today's token budget.
	ErrBudgetExceeded = errors.New("daily AI budget exceeded")
)

const (
	defaultMaxHistory       = 40
	defaultChatMaxTokens    = 1024
	defaultExplainMaxTokens = 256
)

// Config holds dependencies for the Sensei service.
type Config struct {
	Completer  ai.Completer
	Budget     ai.BudgetChecker // nil disables budget checks
	MaxHistory int              // most recent chat messages sent upstream (default 40)
	MaxTokens  int              // chat reply cap (default 1024)
}

// Service answers chat and explain requests.
type Service struct {
	completer  ai.Completer
	budget     ai.BudgetChecker
	maxHistory int
	maxTokens  int
}

// ExplainRequest describes a wrong quiz answer.
type ExplainRequest struct {
	Question      string   `json:"question"`
	UserChoice    string   `json:"userChoice"`
	CorrectChoice string   `json:"correctChoice"`
	Options       []string `json:"options"`
}

// New creates a Sensei service. cfg.Completer is required.
func New(cfg Config) (*Service, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("sensei: completer is required")
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultChatMaxTokens
	}
	return &Service{
		completer:  cfg.Completer,
		budget:     cfg.Budget,
		maxHistory: maxHistory,
		maxTokens:  maxTokens,
	}, nil
}

// Chat answers the last message of a conversation. Roles other than "user" are
// treated as earlier Sensei replies. userID may be empty for anonymous callers,
// who are not budgeted.
func (s *Service) Chat(ctx context.Context, userID string, messages []ai.Message) (string, error) {
	req, err := s.chatRequest(messages)
	if err != nil {
		return "", err
	}
	resp, err := s.complete(ctx, userID, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Stream is Chat delivered incrementally. The channel closes after a chunk
// with Done or Error set.
func (s *Service) Stream(ctx context.Context, userID string, messages []ai.Message) (<-chan ai.StreamChunk, error) {
	req, err := s.chatRequest(messages)
	if err != nil {
		return nil, err
	}
	if err := s.checkBudget(ctx, userID); err != nil {
		return nil, err
	}

	upstream, err := s.completer.StreamComplete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	out := make(chan ai.StreamChunk, 16)
	go func() {
		defer close(out)
		for chunk := range upstream {
			if chunk.Error != nil {
				chunk.Error = fmt.Errorf("%w: %w", ErrUpstream, chunk.Error)
			}
			if chunk.Done {
				s.recordUsage(ctx, userID, chunk.InputTokens+chunk.OutputTokens)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Explain returns a short explanation of why req.UserChoice is wrong.
func (s *Service) Explain(ctx context.Context, userID string, req ExplainRequest) (string, error) {
	if strings.TrimSpace(req.Question) == "" || req.UserChoice == "" || req.CorrectChoice == "" {
		return "", fmt.Errorf("%w: question, userChoice and correctChoice are required", ErrValidation)
	}

	resp, err := s.complete(ctx, userID, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: ExplanationPrompt},
			{Role: "user", Content: explainUserPrompt(req)},
		},
		Task:      ai.TaskExplain,
		MaxTokens: defaultExplainMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (s *Service) chatRequest(messages []ai.Message) (ai.CompletionRequest, error) {
	if len(messages) == 0 {
		return ai.CompletionRequest{}, fmt.Errorf("%w: messages are required", ErrValidation)
	}
	if strings.TrimSpace(messages[len(messages)-1].Content) == "" {
		return ai.CompletionRequest{}, fmt.Errorf("%w: last message is empty", ErrValidation)
	}

	if len(messages) > s.maxHistory {
		messages = messages[len(messages)-s.maxHistory:]
	}
	out := make([]ai.Message, 0, len(messages)+1)
	out = append(out, ai.Message{Role: "system", Content: SystemPrompt})
	for _, m := range messages {
		role := "assistant"
		if m.Role == "user" {
			role = "user"
		}
		out = append(out, ai.Message{Role: role, Content: m.Content})
	}

	return ai.CompletionRequest{
		Messages:  out,
		Task:      ai.TaskChat,
		MaxTokens: s.maxTokens,
	}, nil
}

func (s *Service) complete(ctx context.Context, userID string, req ai.CompletionRequest) (ai.CompletionResponse, error) {
	if err := s.checkBudget(ctx, userID); err != nil {
		return ai.CompletionResponse{}, err
	}

	resp, err := s.completer.Complete(ctx, req)
	if err != nil {
		slog.Error("sensei completion failed", "task", req.Task.String(), "user_id", userID, "error", err)
		return ai.CompletionResponse{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	s.recordUsage(ctx, userID, resp.TotalTokens())
	return resp, nil
}

func (s *Service) checkBudget(ctx context.Context, userID string) error {
	if s.budget == nil || userID == "" {
		return nil
	}
	ok, err := s.budget.Check(ctx, userID)
	if err != nil {
		// A broken budget store should not take Sensei down.
		slog.Warn("budget check failed, allowing request", "user_id", userID, "error", err)
		return nil
	}
	if !ok {
		return ErrBudgetExceeded
	}
	return nil
}

func (s *Service) recordUsage(ctx context.Context, userID string, tokens int) {
	if s.budget == nil || userID == "" || tokens <= 0 {
		return
	}
	if err := s.budget.Record(ctx, userID, tokens); err != nil {
		slog.Warn("failed to record AI usage", "user_id", userID, "tokens", tokens, "error", err)
	}
}
