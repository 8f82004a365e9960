package progress

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/samber/lo"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/dsaquest/internal/catalog"
)

const (
	recentActivityLimit = 5
	recommendationLimit = 3
	defaultDisplayName  = "Explorer"
	activityDateLayout  = "1/2/2006"
)

// ProfileView is the dashboard summary of one user.
type ProfileView struct {
	XP               int              `json:"xp"`
	Level            int              `json:"level"`
	Name             string           `json:"name"`
	UserID           string           `json:"userId"`
	Email            string           `json:"email"`
	Streak           int              `json:"streak"`
	AllTimeXP        int              `json:"allTimeXp"`
	WeeklyXP         int              `json:"weeklyXp"`
	RecentActivities []Activity       `json:"recentActivities"`
	Badges           []Badge          `json:"badges"`
	Recommendations  []Recommendation `json:"recommendations"`
	DailyChallenge   *DailyChallenge  `json:"dailyChallenge"`
}

// Activity is one line of the recent-activity feed.
type Activity struct {
	ID       string `json:"id"`
	Action   string `json:"action"`
	Date     string `json:"date"`
	XPChange int    `json:"xpChange"`
}

// Recommendation points at the next module worth doing in an unlocked topic.
type Recommendation struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TopicID    string `json:"topicId"`
	TopicTitle string `json:"topicTitle"`
	Difficulty string `json:"difficulty"`
	XP         int    `json:"xp"`
}

// DailyChallenge is the module picked for a user for the current day.
type DailyChallenge struct {
	ID      string `json:"id"`
	TopicID string `json:"topicId"`
	Title   string `json:"title"`
}

// TopicView is a topic card with the user's progress.
type TopicView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Progress    int    `json:"progress"`
	Unlocked    bool   `json:"unlocked"`
	RequiredXP  int    `json:"requiredXp"`
}

// TopicDetail is a full topic with per-module completion flags.
type TopicDetail struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Color             string       `json:"color"`
	TotalXP           int          `json:"totalXp"`
	UnlockRequirement int          `json:"unlockRequirement"`
	Progress          int          `json:"progress"`
	Unlocked          bool         `json:"unlocked"`
	Modules           []ModuleView `json:"modules"`
}

// ModuleView is a catalog module with the user's completion flag.
type ModuleView struct {
	catalog.Module
	IsCompleted bool `json:"isCompleted"`
}

// Profile returns the dashboard view. A user without a record gets the zero state
// and no record is created.
func (e *Engine) Profile(ctx context.Context, userID string) (ProfileView, error) {
	if userID == "" {
		return ProfileView{}, ErrUnauthorized
	}

	rec, err := e.record(ctx, userID)
	if err != nil {
		return ProfileView{}, err
	}
	if rec == nil {
		return ProfileView{
			Level:            1,
			UserID:           userID,
			RecentActivities: []Activity{},
			Badges:           []Badge{},
			Recommendations:  []Recommendation{},
		}, nil
	}

	topics, err := e.catalog.ListTopics(ctx)
	if err != nil {
		return ProfileView{}, fmt.Errorf("%w: list topics: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	name := rec.Name
	if name == "" {
		name = defaultDisplayName
	}
	return ProfileView{
		XP:               rec.XP,
		Level:            rec.Level,
		Name:             name,
		UserID:           rec.UserID,
		Email:            rec.Email,
		Streak:           rec.Streak,
		AllTimeXP:        rec.XP,
		WeeklyXP:         WeeklyXP(rec.XPHistory, now, e.loc),
		RecentActivities: e.recentActivities(rec.XPHistory),
		Badges:           rec.Badges,
		Recommendations:  e.recommendations(rec, topics),
		DailyChallenge:   DailyPick(rec, topics, now.In(e.loc)),
	}, nil
}

// record returns the stored record, or nil when the user has none.
func (e *Engine) record(ctx context.Context, userID string) (*Record, error) {
	rec, err := e.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return rec, nil
}

// StartOfWeek returns Sunday 00:00 of the week containing t, in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	d := t.AddDate(0, 0, -int(t.Weekday()))
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// WeeklyXP sums the history entries stamped at or after the start of the current week.
func WeeklyXP(history []XPEntry, now time.Time, loc *time.Location) int {
	start := StartOfWeek(now, loc)
	return lo.Reduce(history, func(sum int, entry XPEntry, _ int) int {
		if entry.Timestamp.Before(start) {
			return sum
		}
		return sum + entry.Amount
	}, 0)
}

func (e *Engine) recentActivities(history []XPEntry) []Activity {
	recent := slices.Clone(history[max(0, len(history)-recentActivityLimit):])
	slices.Reverse(recent)
	return lo.Map(recent, func(entry XPEntry, _ int) Activity {
		action := "Earned XP"
		if entry.Source == SourceModuleCompletion {
			action = "Completed a Module"
		}
		return Activity{
			ID:       entry.ID,
			Action:   action,
			Date:     entry.Timestamp.In(e.loc).Format(activityDateLayout),
			XPChange: entry.Amount,
		}
	})
}

func (e *Engine) recommendations(rec *Record, topics []catalog.Topic) []Recommendation {
	recs := []Recommendation{}
	for _, t := range topics {
		if len(recs) == recommendationLimit {
			break
		}
		if t.UnlockRequirement > rec.XP {
			continue
		}
		next, ok := lo.Find(t.Modules, func(m catalog.Module) bool {
			return !rec.IsCompleted(ModuleRef{TopicID: t.ID, ModuleID: m.ID})
		})
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{
			ID:         next.ID,
			Title:      next.Title,
			TopicID:    t.ID,
			TopicTitle: t.Title,
			Difficulty: "Easy",
			XP:         e.moduleXP,
		})
	}
	return recs
}

type moduleCandidate struct {
	ref   ModuleRef
	title string
}

// DailyPick chooses the day's challenge among uncompleted modules, falling back to
// every module once all are done. The choice is a function of the user ID and the
// calendar date of day, so it stays fixed for that user all day.
func DailyPick(rec *Record, topics []catalog.Topic, day time.Time) *DailyChallenge {
	all := lo.FlatMap(topics, func(t catalog.Topic, _ int) []moduleCandidate {
		return lo.Map(t.Modules, func(m catalog.Module, _ int) moduleCandidate {
			return moduleCandidate{ref: ModuleRef{TopicID: t.ID, ModuleID: m.ID}, title: m.Title}
		})
	})
	if len(all) == 0 {
		return nil
	}

	candidates := lo.Filter(all, func(c moduleCandidate, _ int) bool {
		return !rec.IsCompleted(c.ref)
	})
	if len(candidates) == 0 {
		candidates = all
	}

	seed := blake2b.Sum256([]byte(rec.UserID + "|" + day.Format(time.DateOnly)))
	rng := rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[0:8]),
		binary.LittleEndian.Uint64(seed[8:16]),
	))
	pick := candidates[rng.IntN(len(candidates))]
	return &DailyChallenge{
		ID:      pick.ref.ModuleID,
		TopicID: pick.ref.TopicID,
		Title:   pick.title,
	}
}

// Topics lists every topic with the user's progress and lock state. An empty
// userID is an anonymous visitor with no progress.
func (e *Engine) Topics(ctx context.Context, userID string) ([]TopicView, error) {
	topics, err := e.catalog.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list topics: %v", ErrStoreUnavailable, err)
	}

	rec, err := e.optionalRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	return lo.Map(topics, func(t catalog.Topic, _ int) TopicView {
		tp, _ := rec.Topic(t.ID)
		return TopicView{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Color:       t.Color,
			Progress:    tp.Progress,
			Unlocked:    t.Unlocked(rec.XP),
			RequiredXP:  t.UnlockRequirement,
		}
	}), nil
}

// Topic returns one topic with per-module completion flags.
func (e *Engine) Topic(ctx context.Context, userID, topicID string) (TopicDetail, error) {
	t, err := e.catalog.GetTopic(ctx, topicID)
	if err != nil {
		if errors.Is(err, catalog.ErrTopicNotFound) {
			return TopicDetail{}, fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
		}
		return TopicDetail{}, fmt.Errorf("%w: get topic %s: %v", ErrStoreUnavailable, topicID, err)
	}

	rec, err := e.optionalRecord(ctx, userID)
	if err != nil {
		return TopicDetail{}, err
	}

	tp, _ := rec.Topic(t.ID)
	return TopicDetail{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		Color:             t.Color,
		TotalXP:           t.TotalXP,
		UnlockRequirement: t.UnlockRequirement,
		Progress:          tp.Progress,
		Unlocked:          t.Unlocked(rec.XP),
		Modules: lo.Map(t.Modules, func(m catalog.Module, _ int) ModuleView {
			return ModuleView{
				Module:      m,
				IsCompleted: slices.Contains(tp.CompletedModules, m.ID),
			}
		}),
	}, nil
}

// optionalRecord returns the user's record, or an unsaved zero-state record for
// anonymous visitors and users without one.
func (e *Engine) optionalRecord(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return NewRecord("", e.now()), nil
	}
	rec, err := e.record(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return NewRecord(userID, e.now()), nil
	}
	return rec, nil
}

// Leaderboard returns the top users by XP. limit is clamped with ClampLimit.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	limit = ClampLimit(limit)

	entries, hit, err := e.leaderboard.Get(ctx)
	if err != nil {
		slog.Warn("leaderboard cache read failed", "error", err)
	}
	if !hit {
		entries, err = e.store.Leaderboard(ctx, MaxLeaderboardLimit)
		if err != nil {
			return nil, fmt.Errorf("load leaderboard: %w", err)
		}
		for i := range entries {
			entries[i].Rank = i + 1
			if entries[i].Name == "" {
				entries[i].Name = fmt.Sprintf("%s #%d", defaultDisplayName, i+1)
			}
		}
		if err := e.leaderboard.Set(ctx, entries); err != nil {
			slog.Warn("leaderboard cache write failed", "error", err)
		}
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
