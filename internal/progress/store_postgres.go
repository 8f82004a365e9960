package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. Nested collections live in JSONB
// columns so a record is read and written as one row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const recordColumns = `user_id, name, email, xp, level, streak, topic_progress, xp_history, badges, version, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM user_progress
		 WHERE user_id = $1`,
		userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, userID)
	}
	return rec, err
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// Concurrent first requests race on the primary key; the loser reads the winner's row.
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO user_progress (user_id)
		 VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("%w: create record: %v", ErrStoreUnavailable, err)
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM user_progress
		 WHERE user_id = $1`,
		userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, userID)
	}
	return rec, err
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("%w: record without user id", ErrValidation)
	}

	topicProgress, err := json.Marshal(nonNil(rec.TopicProgress))
	if err != nil {
		return fmt.Errorf("encode topic progress: %w", err)
	}
	history, err := json.Marshal(nonNil(rec.XPHistory))
	if err != nil {
		return fmt.Errorf("encode xp history: %w", err)
	}
	badges, err := json.Marshal(nonNil(rec.Badges))
	if err != nil {
		return fmt.Errorf("encode badges: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var updatedAt time.Time
	err = s.pool.QueryRow(ctx,
		`UPDATE user_progress
		 SET name = $2,
		     email = $3,
		     xp = $4,
		     level = $5,
		     streak = $6,
		     topic_progress = $7::jsonb,
		     xp_history = $8::jsonb,
		     badges = $9::jsonb,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE user_id = $1 AND version = $10
		 RETURNING updated_at`,
		rec.UserID,
		rec.Name,
		rec.Email,
		rec.XP,
		rec.Level,
		rec.Streak,
		string(topicProgress),
		string(history),
		string(badges),
		rec.Version,
	).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrConflict, rec.UserID)
	}
	if err != nil {
		return fmt.Errorf("%w: save record: %v", ErrStoreUnavailable, err)
	}

	rec.Version++
	rec.UpdatedAt = updatedAt
	return nil
}

func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, name, xp
		 FROM user_progress
		 ORDER BY xp DESC, created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query leaderboard: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Score); err != nil {
			return nil, fmt.Errorf("%w: scan leaderboard: %v", ErrStoreUnavailable, err)
		}
		e.Level = LevelFor(e.Score)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate leaderboard: %v", ErrStoreUnavailable, err)
	}
	return entries, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var topicProgress, history, badges []byte
	if err := row.Scan(
		&rec.UserID,
		&rec.Name,
		&rec.Email,
		&rec.XP,
		&rec.Level,
		&rec.Streak,
		&topicProgress,
		&history,
		&badges,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan record: %v", ErrStoreUnavailable, err)
	}

	if err := decodeJSONB(topicProgress, &rec.TopicProgress); err != nil {
		return nil, fmt.Errorf("decode topic progress of %s: %w", rec.UserID, err)
	}
	if err := decodeJSONB(history, &rec.XPHistory); err != nil {
		return nil, fmt.Errorf("decode xp history of %s: %w", rec.UserID, err)
	}
	if err := decodeJSONB(badges, &rec.Badges); err != nil {
		return nil, fmt.Errorf("decode badges of %s: %w", rec.UserID, err)
	}
	rec.TopicProgress = nonNil(rec.TopicProgress)
	rec.XPHistory = nonNil(rec.XPHistory)
	rec.Badges = nonNil(rec.Badges)
	return &rec, nil
}

func decodeJSONB(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
