package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
)

type QueueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func (r *QueueRepository) List(ctx context.Context) ([]domain.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT episode_id, feed_id, added_at
		FROM queue_items ORDER BY ord ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.QueueItem{}
	for rows.Next() {
		var it domain.QueueItem
		var addedAt string
		if err := rows.Scan(&it.EpisodeID, &it.FeedID, &addedAt); err != nil {
			return nil, err
		}
		it.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *QueueRepository) Append(ctx context.Context, item domain.QueueItem) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM queue_items WHERE episode_id = ?`, item.EpisodeID).Scan(&exists)
	if err == nil {
		return ports.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO queue_items(ord, episode_id, feed_id, added_at)
		VALUES((SELECT COALESCE(MAX(ord), 0) + 1 FROM queue_items), ?, ?, ?)
	`, item.EpisodeID, item.FeedID, item.AddedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *QueueRepository) Remove(ctx context.Context, episodeID string) error {
	// No-op si absent: le contrat est idempotent.
	_, err := r.db.ExecContext(ctx, `DELETE FROM queue_items WHERE episode_id = ?`, episodeID)
	return err
}

func (r *QueueRepository) Replace(ctx context.Context, items []domain.QueueItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items`); err != nil {
		return err
	}
	for i, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO queue_items(ord, episode_id, feed_id, added_at)
			VALUES(?, ?, ?, ?)
		`, i+1, it.EpisodeID, it.FeedID, it.AddedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *QueueRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM queue_items`)
	return err
}
