package catalog

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

// PostgresCatalog reads topics from the topics table.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog creates a PostgreSQL-backed catalog.
func NewPostgresCatalog(pool *pgxpool.Pool) (*PostgresCatalog, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresCatalog{pool: pool}, nil
}

const topicColumns = `id, position, title, description, color, total_xp, unlock_requirement, modules`

func (c *PostgresCatalog) ListTopics(ctx context.Context) ([]Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx,
		`SELECT `+topicColumns+`
		 FROM topics
		 ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: query topics: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate topics: %v", ErrStoreUnavailable, err)
	}
	return topics, nil
}

func (c *PostgresCatalog) GetTopic(ctx context.Context, id string) (Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := c.pool.QueryRow(ctx,
		`SELECT `+topicColumns+`
		 FROM topics
		 WHERE id = $1`,
		id,
	)
	t, err := scanTopic(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Topic{}, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	return t, err
}

func scanTopic(row pgx.Row) (Topic, error) {
	var t Topic
	var modules []byte
	if err := row.Scan(
		&t.ID,
		&t.Position,
		&t.Title,
		&t.Description,
		&t.Color,
		&t.TotalXP,
		&t.UnlockRequirement,
		&modules,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Topic{}, err
		}
		return Topic{}, fmt.Errorf("%w: scan topic: %v", ErrStoreUnavailable, err)
	}
	if len(modules) > 0 {
		if err := json.Unmarshal(modules, &t.Modules); err != nil {
			return Topic{}, fmt.Errorf("decode modules of topic %s: %w", t.ID, err)
		}
	}
	return t, nil
}

// Seed upserts topics into the topics table in a single transaction.
// Topics present in the table but absent from the input are left untouched.
func Seed(ctx context.Context, pool *pgxpool.Pool, topics []Topic) (int, error) {
	if pool == nil {
		return 0, fmt.Errorf("pool is nil")
	}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, t := range topics {
			if err := t.Validate(); err != nil {
				return err
			}
			modules, err := json.Marshal(t.Modules)
			if err != nil {
				return fmt.Errorf("encode modules of topic %s: %w", t.ID, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO topics (`+topicColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
				 ON CONFLICT (id) DO UPDATE SET
				   position = EXCLUDED.position,
				   title = EXCLUDED.title,
				   description = EXCLUDED.description,
				   color = EXCLUDED.color,
				   total_xp = EXCLUDED.total_xp,
				   unlock_requirement = EXCLUDED.unlock_requirement,
				   modules = EXCLUDED.modules,
				   updated_at = NOW()`,
				t.ID,
				t.Position,
				t.Title,
				t.Description,
				t.Color,
				t.TotalXP,
				t.UnlockRequirement,
				string(modules),
			); err != nil {
				return fmt.Errorf("upsert topic %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(topics), nil
}
