package progress_test

import (
	"context"
	"testing"

	"github.com/p-n-ai/dsaquest/internal/progress"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := progress.NewMemoryEventLogger()

	err := logger.LogEvent(context.Background(), progress.Event{
		UserID:    "user-1",
		EventType: progress.EventModuleCompleted,
		Data: map[string]any{
			"topic_id": "arrays",
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventType != progress.EventModuleCompleted {
		t.Errorf("EventType = %q, want module_completed", events[0].EventType)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	logger := progress.NewMemoryEventLogger()
	if err := logger.LogEvent(context.Background(), progress.Event{UserID: "user-1"}); err == nil {
		t.Error("expected error for missing event type")
	}
}

func TestPostgresEventLogger_LogEvent_NilPool(t *testing.T) {
	logger := progress.NewPostgresEventLogger(nil)

	err := logger.LogEvent(context.Background(), progress.Event{
		UserID:    "user-1",
		EventType: progress.EventBadgeUnlocked,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}
