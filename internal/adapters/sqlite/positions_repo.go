package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
)

type PositionsRepository struct {
	db *sql.DB
}

func NewPositionsRepository(db *sql.DB) *PositionsRepository {
	return &PositionsRepository{db: db}
}

func (r *PositionsRepository) Save(ctx context.Context, pos domain.SavedPosition) (domain.SavedPosition, error) {
	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions(episode_id, feed_id, position_ms, duration_ms, updated_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(episode_id) DO UPDATE SET
			feed_id = excluded.feed_id,
			position_ms = excluded.position_ms,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at
	`, pos.EpisodeID, pos.FeedID, pos.PositionMs, pos.DurationMs, pos.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return domain.SavedPosition{}, err
	}
	return r.Get(ctx, pos.EpisodeID)
}

func (r *PositionsRepository) Get(ctx context.Context, episodeID string) (domain.SavedPosition, error) {
	var p domain.SavedPosition
	var updatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT episode_id, feed_id, position_ms, duration_ms, updated_at
		FROM positions WHERE episode_id = ?
	`, episodeID).Scan(&p.EpisodeID, &p.FeedID, &p.PositionMs, &p.DurationMs, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SavedPosition{}, ports.ErrNotFound
		}
		return domain.SavedPosition{}, err
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

func (r *PositionsRepository) All(ctx context.Context) (map[string]domain.SavedPosition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT episode_id, feed_id, position_ms, duration_ms, updated_at
		FROM positions
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]domain.SavedPosition{}
	for rows.Next() {
		var p domain.SavedPosition
		var updatedAt string
		if err := rows.Scan(&p.EpisodeID, &p.FeedID, &p.PositionMs, &p.DurationMs, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out[p.EpisodeID] = p
	}
	return out, rows.Err()
}
