// Package progress is the progress engine: per-user completion state, XP, levels,
// badges, and the profile, topic and leaderboard views derived from them.
package progress

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	// XPPerLevel is the XP needed to advance one level.
	XPPerLevel = 1000
	// SourceModuleCompletion tags XP earned by completing a module.
	SourceModuleCompletion = "module_completion"
)

// Record is the single progress document kept per user.
type Record struct {
	UserID        string          `json:"userId"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	XP            int             `json:"xp"`
	Level         int             `json:"level"`
	Streak        int             `json:"streak"`
	TopicProgress []TopicProgress `json:"topicProgress"`
	XPHistory     []XPEntry       `json:"xpHistory"`
	Badges        []Badge         `json:"badges"`
	Version       int64           `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TopicProgress tracks completion inside one topic.
type TopicProgress struct {
	TopicID          string   `json:"topicId"`
	Progress         int      `json:"progress"`
	CompletedModules []string `json:"completedModules"`
}

// XPEntry is one append-only XP ledger line.
type XPEntry struct {
	ID        string    `json:"id"`
	Amount    int       `json:"amount"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Badge is a named achievement, held at most once per user.
type Badge struct {
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

// ModuleRef identifies a module across topics. Module IDs are only unique per topic.
type ModuleRef struct {
	TopicID  string
	ModuleID string
}

// NewRecord returns the zero-state record for a user.
func NewRecord(userID string, now time.Time) *Record {
	return &Record{
		UserID:        userID,
		XP:            0,
		Level:         1,
		TopicProgress: []TopicProgress{},
		XPHistory:     []XPEntry{},
		Badges:        []Badge{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// LevelFor derives the level from cumulative XP.
func LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// Percent returns round(100*completed/total) clamped to [0,100].
// A topic with no modules counts as fully complete.
func Percent(completed, total int) int {
	if total <= 0 {
		return 100
	}
	if completed <= 0 {
		return 0
	}
	// Integer form of round-half-up.
	p := (200*completed + total) / (2 * total)
	return min(p, 100)
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.TopicProgress = make([]TopicProgress, len(r.TopicProgress))
	for i, tp := range r.TopicProgress {
		tp.CompletedModules = slices.Clone(tp.CompletedModules)
		c.TopicProgress[i] = tp
	}
	c.XPHistory = slices.Clone(r.XPHistory)
	c.Badges = slices.Clone(r.Badges)
	if c.XPHistory == nil {
		c.XPHistory = []XPEntry{}
	}
	if c.Badges == nil {
		c.Badges = []Badge{}
	}
	return &c
}

// Topic returns the progress entry for a topic, if one exists.
func (r *Record) Topic(topicID string) (TopicProgress, bool) {
	for _, tp := range r.TopicProgress {
		if tp.TopicID == topicID {
			return tp, true
		}
	}
	return TopicProgress{}, false
}

// topicEntry returns the entry for topicID, creating it on first use.
func (r *Record) topicEntry(topicID string) *TopicProgress {
	for i := range r.TopicProgress {
		if r.TopicProgress[i].TopicID == topicID {
			return &r.TopicProgress[i]
		}
	}
	r.TopicProgress = append(r.TopicProgress, TopicProgress{
		TopicID:          topicID,
		Progress:         0,
		CompletedModules: []string{},
	})
	return &r.TopicProgress[len(r.TopicProgress)-1]
}

// IsCompleted reports whether the module was completed in this topic.
func (r *Record) IsCompleted(ref ModuleRef) bool {
	tp, ok := r.Topic(ref.TopicID)
	return ok && slices.Contains(tp.CompletedModules, ref.ModuleID)
}

// HasBadge compares badge names after NFC normalization.
func (r *Record) HasBadge(name string) bool {
	want := norm.NFC.String(name)
	for _, b := range r.Badges {
		if norm.NFC.String(b.Name) == want {
			return true
		}
	}
	return false
}

// grantBadge appends b unless a badge with the same name is held. It reports whether b was added.
func (r *Record) grantBadge(b Badge) bool {
	if r.HasBadge(b.Name) {
		return false
	}
	r.Badges = append(r.Badges, b)
	return true
}

// addXP appends a ledger entry and keeps XP and level in step with it.
func (r *Record) addXP(amount int, source string, now time.Time) XPEntry {
	entry := XPEntry{
		ID:        uuid.NewString(),
		Amount:    amount,
		Source:    source,
		Timestamp: now,
	}
	r.XPHistory = append(r.XPHistory, entry)
	r.XP += amount
	r.Level = LevelFor(r.XP)
	return entry
}
