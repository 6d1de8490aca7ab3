package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// DefaultSeenLimit borne l'historique des épisodes déjà signalés.
const DefaultSeenLimit = 1000

type SeenRepository struct {
	db    *sql.DB
	limit int
}

func NewSeenRepository(db *sql.DB, limit int) *SeenRepository {
	if limit <= 0 {
		limit = DefaultSeenLimit
	}
	return &SeenRepository{db: db, limit: limit}
}

// MarkSeen insère les identifiants puis tronque au-delà de la borne, du côté
// le plus ancien (ordre d'insertion).
func (r *SeenRepository) MarkSeen(ctx context.Context, episodeIDs []string) error {
	if len(episodeIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range episodeIDs {
		if id == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO seen_episodes(episode_id, seen_at) VALUES(?, ?)
		`, id, now); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM seen_episodes
		WHERE seq NOT IN (SELECT seq FROM seen_episodes ORDER BY seq DESC LIMIT ?)
	`, r.limit); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SeenRepository) SeenSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT episode_id FROM seen_episodes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (r *SeenRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_episodes`).Scan(&n)
	return n, err
}
