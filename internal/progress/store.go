package progress

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Store persists one progress record per user.
type Store interface {
	// Get returns ErrRecordNotFound when the user has no record.
	Get(ctx context.Context, userID string) (*Record, error)
	// GetOrCreate returns the existing record or creates the zero-state one.
	GetOrCreate(ctx context.Context, userID string) (*Record, error)
	// Save persists the whole record. It returns ErrConflict if the record changed
	// since it was read.
	Save(ctx context.Context, rec *Record) error
	// Leaderboard returns up to limit users ordered by XP descending, ties by
	// creation time ascending.
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records map[string]*Record
	order   []string // user IDs in creation order
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, userID)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) GetOrCreate(_ context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = NewRecord(userID, s.now())
		s.records[userID] = rec
		s.order = append(s.order, userID)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("%w: record without user id", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.UserID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, rec.UserID)
	}
	if cur.Version != rec.Version {
		return fmt.Errorf("%w: %s", ErrConflict, rec.UserID)
	}

	stored := rec.Clone()
	stored.Version++
	stored.UpdatedAt = s.now()
	s.records[rec.UserID] = stored
	rec.Version = stored.Version
	return nil
}

func (s *MemoryStore) Leaderboard(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// order is creation order, so a stable sort by XP keeps the tie-break.
	ranked := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		ranked = append(ranked, s.records[id])
	}
	slices.SortStableFunc(ranked, func(a, b *Record) int {
		return b.XP - a.XP
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	entries := make([]LeaderboardEntry, 0, len(ranked))
	for _, r := range ranked {
		entries = append(entries, LeaderboardEntry{
			UserID: r.UserID,
			Name:   r.Name,
			Score:  r.XP,
			Level:  LevelFor(r.XP),
		})
	}
	return entries, nil
}
