package catalog

import (
	"context"
	"fmt"
)

// Static is an in-memory catalog over a fixed topic list, kept in the given order.
type Static struct {
	topics []Topic
}

// NewStatic creates a catalog from topics.
func NewStatic(topics ...Topic) *Static {
	return &Static{topics: append([]Topic(nil), topics...)}
}

func (s *Static) ListTopics(_ context.Context) ([]Topic, error) {
	return append([]Topic(nil), s.topics...), nil
}

func (s *Static) GetTopic(_ context.Context, id string) (Topic, error) {
	for _, t := range s.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
}
