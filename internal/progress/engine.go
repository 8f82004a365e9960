package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/p-n-ai/dsaquest/internal/catalog"
	"github.com/p-n-ai/dsaquest/internal/identity"
)

const (
	defaultModuleXP = 50

	firstStepsBadge       = "First Steps"
	firstStepsIcon        = "🚀"
	firstStepsDescription = "Completed your first DSA module!"
	masterIcon            = "🏆"
)

// EngineConfig holds dependencies for the progress engine.
type EngineConfig struct {
	Catalog          catalog.Catalog
	Store            Store
	Locker           Locker
	Events           EventLogger
	LeaderboardCache LeaderboardCache
	ModuleXP         int  // XP per completion (default 50)
	StrictModules    bool // reject module ids the topic does not list
	AwardRepeats     bool // award XP again when a completed module is completed again
	Location         *time.Location
	Now              func() time.Time
}

// Engine applies completions to progress records and derives the read views.
type Engine struct {
	catalog       catalog.Catalog
	store         Store
	locker        Locker
	events        EventLogger
	leaderboard   LeaderboardCache
	moduleXP      int
	strictModules bool
	awardRepeats  bool
	loc           *time.Location
	now           func() time.Time
}

// NewEngine creates a new progress engine.
func NewEngine(cfg EngineConfig) *Engine {
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.NewStatic()
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = NewKeyedMutex()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	lb := cfg.LeaderboardCache
	if lb == nil {
		lb = NopLeaderboardCache{}
	}
	moduleXP := cfg.ModuleXP
	if moduleXP <= 0 {
		moduleXP = defaultModuleXP
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		catalog:       cat,
		store:         store,
		locker:        locker,
		events:        events,
		leaderboard:   lb,
		moduleXP:      moduleXP,
		strictModules: cfg.StrictModules,
		awardRepeats:  cfg.AwardRepeats,
		loc:           loc,
		now:           now,
	}
}

// CompletionResult is the outcome of one completion.
type CompletionResult struct {
	Progress  int     `json:"progress"`
	XP        int     `json:"xp"`
	Level     int     `json:"level"`
	NewBadges []Badge `json:"newBadges"`
	XPAwarded int     `json:"xpAwarded"`
	Repeat    bool    `json:"repeat"`
}

// CompleteModule records that userID completed moduleID in topicID.
func (e *Engine) CompleteModule(ctx context.Context, userID, topicID, moduleID string) (CompletionResult, error) {
	if userID == "" {
		return CompletionResult{}, ErrUnauthorized
	}
	if topicID == "" || moduleID == "" {
		return CompletionResult{}, fmt.Errorf("%w: missing topicId or moduleId", ErrValidation)
	}

	topic, err := e.catalog.GetTopic(ctx, topicID)
	if err != nil {
		if errors.Is(err, catalog.ErrTopicNotFound) {
			return CompletionResult{}, fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
		}
		return CompletionResult{}, fmt.Errorf("%w: get topic %s: %v", ErrStoreUnavailable, topicID, err)
	}
	if e.strictModules && !topic.HasModule(moduleID) {
		return CompletionResult{}, fmt.Errorf("%w: %s/%s", ErrModuleNotInTopic, topicID, moduleID)
	}

	unlock, err := e.locker.Lock(ctx, userID)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("lock user %s: %w", userID, err)
	}
	defer unlock()

	rec, err := e.store.GetOrCreate(ctx, userID)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("load progress: %w", err)
	}

	now := e.now()
	result := e.apply(rec, topic, moduleID, now)

	rec.UpdatedAt = now
	if err := e.store.Save(ctx, rec); err != nil {
		return CompletionResult{}, fmt.Errorf("save progress: %w", err)
	}

	slog.Info("module completed",
		"user_id", userID,
		"topic_id", topicID,
		"module_id", moduleID,
		"xp_awarded", result.XPAwarded,
		"progress", result.Progress,
		"new_badges", len(result.NewBadges),
	)

	e.logEvent(ctx, Event{
		UserID:    userID,
		EventType: EventModuleCompleted,
		Data: map[string]any{
			"topic_id":   topicID,
			"module_id":  moduleID,
			"xp_awarded": result.XPAwarded,
			"progress":   result.Progress,
			"repeat":     result.Repeat,
		},
		CreatedAt: now,
	})
	for _, b := range result.NewBadges {
		e.logEvent(ctx, Event{
			UserID:    userID,
			EventType: EventBadgeUnlocked,
			Data:      map[string]any{"name": b.Name},
			CreatedAt: now,
		})
	}

	if err := e.leaderboard.Invalidate(ctx); err != nil {
		slog.Warn("leaderboard cache invalidation failed", "error", err)
	}

	return result, nil
}

// apply mutates rec for one completion. It performs no I/O.
func (e *Engine) apply(rec *Record, topic catalog.Topic, moduleID string, now time.Time) CompletionResult {
	tp := rec.topicEntry(topic.ID)
	repeat := slices.Contains(tp.CompletedModules, moduleID)
	if !repeat {
		tp.CompletedModules = append(tp.CompletedModules, moduleID)
	}
	tp.Progress = Percent(len(tp.CompletedModules), len(topic.Modules))
	progress := tp.Progress

	result := CompletionResult{
		Progress:  progress,
		NewBadges: []Badge{},
		Repeat:    repeat,
	}

	awarded := false
	if !repeat || e.awardRepeats {
		rec.addXP(e.moduleXP, SourceModuleCompletion, now)
		result.XPAwarded = e.moduleXP
		awarded = true
	}
	rec.Level = LevelFor(rec.XP)

	if awarded && len(rec.XPHistory) == 1 {
		b := Badge{
			Name:        firstStepsBadge,
			Icon:        firstStepsIcon,
			Description: firstStepsDescription,
			UnlockedAt:  now,
		}
		if rec.grantBadge(b) {
			result.NewBadges = append(result.NewBadges, b)
		}
	}
	if progress == 100 {
		b := Badge{
			Name:        MasterBadgeName(topic.Title),
			Icon:        masterIcon,
			Description: fmt.Sprintf("You've conquered every module in the %s topic! Your dedication is legendary.", topic.Title),
			UnlockedAt:  now,
		}
		if rec.grantBadge(b) {
			result.NewBadges = append(result.NewBadges, b)
		}
	}

	result.XP = rec.XP
	result.Level = rec.Level
	return result
}

// MasterBadgeName is the badge granted for finishing every module of a topic.
func MasterBadgeName(topicTitle string) string {
	return topicTitle + " Master"
}

// Sync creates the user's record if absent and refreshes the name and email the
// identity provider reports.
func (e *Engine) Sync(ctx context.Context, id identity.Identity) (*Record, error) {
	if id.UserID == "" {
		return nil, ErrUnauthorized
	}

	unlock, err := e.locker.Lock(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock user %s: %w", id.UserID, err)
	}
	defer unlock()

	rec, err := e.store.GetOrCreate(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	changed := false
	if id.Name != "" && id.Name != rec.Name {
		rec.Name = id.Name
		changed = true
	}
	if id.Email != "" && id.Email != rec.Email {
		rec.Email = id.Email
		changed = true
	}
	if !changed {
		return rec, nil
	}

	rec.UpdatedAt = e.now()
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	e.logEvent(ctx, Event{
		UserID:    id.UserID,
		EventType: EventProfileSynced,
		Data:      map[string]any{"name": rec.Name},
	})
	if err := e.leaderboard.Invalidate(ctx); err != nil {
		slog.Warn("leaderboard cache invalidation failed", "error", err)
	}
	return rec, nil
}

func (e *Engine) logEvent(ctx context.Context, event Event) {
	if err := e.events.LogEvent(ctx, event); err != nil {
		slog.Warn("failed to log event", "type", event.EventType, "user_id", event.UserID, "error", err)
	}
}
