// Package catalog reads the topic catalog: topics, their ordered modules and quiz questions.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTopicNotFound is returned when a topic ID does not resolve.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrStoreUnavailable wraps failures of the backing store.
	ErrStoreUnavailable = errors.New("catalog store unavailable")
)

// Catalog is the read-only view of all topics.
type Catalog interface {
	// ListTopics returns topics in catalog order.
	ListTopics(ctx context.Context) ([]Topic, error)
	GetTopic(ctx context.Context, id string) (Topic, error)
}

// Topic is a subject area with an ordered list of modules.
type Topic struct {
	ID                string   `yaml:"id" json:"id"`
	Position          int      `yaml:"position" json:"position"`
	Title             string   `yaml:"title" json:"title"`
	Description       string   `yaml:"description" json:"description"`
	Color             string   `yaml:"color" json:"color"`
	TotalXP           int      `yaml:"total_xp" json:"totalXp"`
	UnlockRequirement int      `yaml:"unlock_requirement" json:"unlockRequirement"`
	Modules           []Module `yaml:"modules" json:"modules"`
}

// Module is one lesson inside a topic. IDs are unique only within their topic.
type Module struct {
	ID          string     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description"`
	Content     string     `yaml:"content" json:"content"`
	Questions   []Question `yaml:"questions" json:"questions"`
}

// Question is a multiple-choice quiz item.
type Question struct {
	Question      string   `yaml:"question" json:"question"`
	Options       []string `yaml:"options" json:"options"`
	CorrectAnswer int      `yaml:"correct_answer" json:"correctAnswer"`
	Explanation   string   `yaml:"explanation" json:"explanation"`
}

const (
	defaultColor   = "#10B981"
	defaultTotalXP = 500
)

// HasModule reports whether the topic contains a module with the given ID.
func (t Topic) HasModule(moduleID string) bool {
	for _, m := range t.Modules {
		if m.ID == moduleID {
			return true
		}
	}
	return false
}

// Unlocked reports whether a user with the given cumulative XP may open the topic.
func (t Topic) Unlocked(xp int) bool {
	return t.UnlockRequirement <= 0 || xp >= t.UnlockRequirement
}

// Validate checks invariants the JSON schema cannot express.
func (t Topic) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("topic id is required")
	}
	if t.UnlockRequirement < 0 {
		return fmt.Errorf("topic %s: unlock requirement must be non-negative", t.ID)
	}
	seen := make(map[string]bool, len(t.Modules))
	for _, m := range t.Modules {
		if seen[m.ID] {
			return fmt.Errorf("topic %s: duplicate module id %q", t.ID, m.ID)
		}
		seen[m.ID] = true
		if m.Content == "" {
			return fmt.Errorf("topic %s: module %s has no content", t.ID, m.ID)
		}
		for i, q := range m.Questions {
			if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
				return fmt.Errorf("topic %s: module %s question %d: correct answer %d out of range",
					t.ID, m.ID, i, q.CorrectAnswer)
			}
		}
	}
	return nil
}

func (t *Topic) applyDefaults() {
	if t.Color == "" {
		t.Color = defaultColor
	}
	if t.TotalXP == 0 {
		t.TotalXP = defaultTotalXP
	}
}
