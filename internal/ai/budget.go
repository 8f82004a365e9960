package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetChecker checks and records daily token usage per user.
type BudgetChecker interface {
	// Check returns true if the user has budget remaining today.
	Check(ctx context.Context, userID string) (bool, error)
	// Record adds token usage for the user to today's total.
	Record(ctx context.Context, userID string, tokens int) error
	// Usage returns today's usage and the daily limit (0 means unlimited).
	Usage(ctx context.Context, userID string) (used int64, limit int64, err error)
}

// InMemoryBudget is a single-process daily budget tracker.
type InMemoryBudget struct {
	mu    sync.RWMutex
	limit int64
	usage map[string]int64 // day:user -> tokens used
	now   func() time.Time
}

// NewInMemoryBudget creates a tracker allowing limit tokens per user per day.
// A limit of 0 disables the check.
func NewInMemoryBudget(limit int64) *InMemoryBudget {
	return &InMemoryBudget{
		limit: limit,
		usage: make(map[string]int64),
		now:   time.Now,
	}
}

func (b *InMemoryBudget) Check(_ context.Context, userID string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[budgetKey(b.now(), userID)] < b.limit, nil
}

func (b *InMemoryBudget) Record(_ context.Context, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[budgetKey(b.now(), userID)] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, userID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[budgetKey(b.now(), userID)], b.limit, nil
}

// RedisBudget shares daily budgets between server instances. Counters expire
// two days after their day starts.
type RedisBudget struct {
	client *redis.Client
	limit  int64
	now    func() time.Time
}

const redisBudgetTTL = 48 * time.Hour

// NewRedisBudget creates a Redis-backed tracker. A limit of 0 disables the check.
func NewRedisBudget(client *redis.Client, limit int64) (*RedisBudget, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisBudget{client: client, limit: limit, now: time.Now}, nil
}

func (b *RedisBudget) Check(ctx context.Context, userID string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	used, _, err := b.Usage(ctx, userID)
	if err != nil {
		return false, err
	}
	return used < b.limit, nil
}

func (b *RedisBudget) Record(ctx context.Context, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	key := "dsaquest:budget:" + budgetKey(b.now(), userID)
	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.Expire(ctx, key, redisBudgetTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, userID string) (int64, int64, error) {
	key := "dsaquest:budget:" + budgetKey(b.now(), userID)
	used, err := b.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, b.limit, nil
	}
	if err != nil {
		return 0, b.limit, fmt.Errorf("read usage: %w", err)
	}
	return used, b.limit, nil
}

func budgetKey(now time.Time, userID string) string {
	return now.UTC().Format(time.DateOnly) + ":" + userID
}
