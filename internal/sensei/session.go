package sensei

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/p-n-ai/dsaquest/internal/ai"
)

const (
	defaultCompactThreshold      = 20
	defaultCompactTokenThreshold = 6000 // ~6k tokens triggers compaction
	defaultKeepRecent            = 6
)

// SessionConfig tunes conversation compaction.
type SessionConfig struct {
	CompactThreshold      int // messages before compaction triggers (default 20)
	CompactTokenThreshold int // estimated tokens before compaction triggers (default 6000)
	KeepRecent            int // recent messages kept verbatim after compaction (default 6)
}

// Session is one long-lived chat, e.g. a websocket connection. Older turns
// are folded into a running summary so the prompt stays bounded.
type Session struct {
	svc    *Service
	userID string

	compactThreshold      int
	compactTokenThreshold int
	keepRecent            int

	mu          sync.Mutex
	messages    []ai.Message
	summary     string
	compactedAt int
}

// NewSession starts an empty conversation for userID.
func (s *Service) NewSession(userID string, cfg SessionConfig) *Session {
	if cfg.CompactThreshold <= 0 {
		cfg.CompactThreshold = defaultCompactThreshold
	}
	if cfg.CompactTokenThreshold <= 0 {
		cfg.CompactTokenThreshold = defaultCompactTokenThreshold
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = defaultKeepRecent
	}
	return &Session{
		svc:                   s,
		userID:                userID,
		compactThreshold:      cfg.CompactThreshold,
		compactTokenThreshold: cfg.CompactTokenThreshold,
		keepRecent:            cfg.KeepRecent,
	}
}

// Send adds a student message and returns Sensei's full reply. When onChunk is
// non-nil it receives the reply as it streams; an onChunk error aborts the turn.
// A failed turn leaves the history unchanged.
func (ss *Session) Send(ctx context.Context, text string, onChunk func(string) error) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: message is empty", ErrValidation)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.maybeCompact(ctx)
	prompt := append(ss.contextMessages(), ai.Message{Role: "user", Content: text})

	var reply string
	if onChunk == nil {
		r, err := ss.svc.Chat(ctx, ss.userID, prompt)
		if err != nil {
			return "", err
		}
		reply = r
	} else {
		r, err := ss.stream(ctx, prompt, onChunk)
		if err != nil {
			return "", err
		}
		reply = r
	}

	ss.messages = append(ss.messages,
		ai.Message{Role: "user", Content: text},
		ai.Message{Role: "assistant", Content: reply},
	)
	return reply, nil
}

func (ss *Session) stream(ctx context.Context, prompt []ai.Message, onChunk func(string) error) (string, error) {
	ch, err := ss.svc.Stream(ctx, ss.userID, prompt)
	if err != nil {
		return "", err
	}
	var reply strings.Builder
	for chunk := range ch {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		if chunk.Content == "" {
			continue
		}
		reply.WriteString(chunk.Content)
		if err := onChunk(chunk.Content); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return reply.String(), nil
}

// Len returns the number of messages recorded, summarized ones included.
func (ss *Session) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.messages)
}

// Summary returns the running summary of compacted turns.
func (ss *Session) Summary() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.summary
}

// contextMessages returns the summary (if any) followed by uncompacted turns.
func (ss *Session) contextMessages() []ai.Message {
	var out []ai.Message
	if ss.summary != "" {
		out = append(out,
			ai.Message{Role: "user", Content: "Previous conversation summary:\n" + ss.summary},
			ai.Message{Role: "assistant", Content: "Understood, I'll continue based on our previous conversation."},
		)
	}
	return append(out, ss.messages[ss.compactedAt:]...)
}

// estimateTokens gives a rough token count (1 token ≈ 4 chars).
func estimateTokens(messages []ai.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}

// maybeCompact summarizes everything but the most recent turns once the
// uncompacted tail grows past either threshold.
func (ss *Session) maybeCompact(ctx context.Context) {
	uncompacted := ss.messages[ss.compactedAt:]
	if len(uncompacted) <= ss.compactThreshold && estimateTokens(uncompacted) <= ss.compactTokenThreshold {
		return
	}

	compactUpTo := len(ss.messages) - ss.keepRecent
	if compactUpTo <= ss.compactedAt {
		return
	}

	var content strings.Builder
	if ss.summary != "" {
		content.WriteString("Previous summary:\n")
		content.WriteString(ss.summary)
		content.WriteString("\n\nNew messages to incorporate:\n")
	}
	for _, m := range ss.messages[ss.compactedAt:compactUpTo] {
		role := "Student"
		if m.Role == "assistant" {
			role = "Sensei"
		}
		fmt.Fprintf(&content, "%s: %s\n", role, m.Content)
	}

	resp, err := ss.svc.complete(ctx, ss.userID, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: summarizePrompt},
			{Role: "user", Content: content.String()},
		},
		Task:      ai.TaskSummarize,
		MaxTokens: 256,
	})
	if err != nil {
		slog.Warn("compaction failed, continuing without summary", "user_id", ss.userID, "error", err)
		return
	}

	ss.summary = resp.Content
	ss.compactedAt = compactUpTo
	slog.Info("sensei session compacted",
		"user_id", ss.userID,
		"compacted_messages", compactUpTo,
		"remaining_messages", len(ss.messages)-compactUpTo,
	)
}
