package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Router tries registered providers in registration order until one succeeds.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the router. Registering a name twice replaces the
// provider but keeps its original position.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Complete routes a request to the first provider that answers.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.fallback {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	return CompletionResponse{}, noProviderError(errs)
}

// StreamComplete opens a stream on the first provider that accepts the request.
// Failures after the stream has started arrive as chunks with Error set.
func (r *Router) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.fallback {
		ch, err := r.providers[name].StreamComplete(ctx, req)
		if err != nil {
			slog.Warn("AI provider stream failed, trying next", "provider", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return ch, nil
	}
	return nil, noProviderError(errs)
}

func noProviderError(errs []error) error {
	if len(errs) == 0 {
		return ErrNoProvider
	}
	return fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Providers returns registered provider names in fallback order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fallback...)
}
