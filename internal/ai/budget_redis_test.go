package ai

import (
	"context"
	"testing"
	"time"

	"github.com/p-n-ai/dsaquest/internal/platform/testinfra"
)

func TestRedisBudget_Integration(t *testing.T) {
	c := testinfra.Redis(t)
	b, err := NewRedisBudget(c.Client, 100)
	if err != nil {
		t.Fatalf("NewRedisBudget() error = %v", err)
	}
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return day }
	ctx := context.Background()

	used, limit, err := b.Usage(ctx, "user1")
	if err != nil || used != 0 || limit != 100 {
		t.Fatalf("Usage() = %d/%d, %v; want 0/100", used, limit, err)
	}

	_ = b.Record(ctx, "user1", 60)
	if ok, err := b.Check(ctx, "user1"); err != nil || !ok {
		t.Errorf("Check() = %v, %v; want true", ok, err)
	}
	_ = b.Record(ctx, "user1", 40)
	if ok, _ := b.Check(ctx, "user1"); ok {
		t.Error("Check() = true at the limit, want false")
	}

	ttl, err := c.Client.TTL(ctx, "dsaquest:budget:2025-03-10:user1").Result()
	if err != nil || ttl <= 0 {
		t.Errorf("budget key TTL = %v, %v; want positive", ttl, err)
	}

	day = day.Add(24 * time.Hour)
	if ok, _ := b.Check(ctx, "user1"); !ok {
		t.Error("Check() = false on the next day, want true")
	}
}
