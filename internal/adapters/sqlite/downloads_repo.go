package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
)

type DownloadsRepository struct {
	db *sql.DB
}

func NewDownloadsRepository(db *sql.DB) *DownloadsRepository {
	return &DownloadsRepository{db: db}
}

func (r *DownloadsRepository) Put(ctx context.Context, rec domain.DownloadRecord) (domain.DownloadRecord, error) {
	if rec.DownloadedAt.IsZero() {
		rec.DownloadedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO downloads(episode_id, feed_id, title, audio_url, duration, local_uri, downloaded_at, feed_title, feed_image_url)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(episode_id) DO UPDATE SET
			feed_id = excluded.feed_id,
			title = excluded.title,
			audio_url = excluded.audio_url,
			duration = excluded.duration,
			local_uri = excluded.local_uri,
			downloaded_at = excluded.downloaded_at,
			feed_title = excluded.feed_title,
			feed_image_url = excluded.feed_image_url
	`, rec.EpisodeID, rec.FeedID, rec.Title, rec.AudioURL, rec.Duration, rec.LocalURI,
		rec.DownloadedAt.Format(time.RFC3339), rec.FeedTitle, rec.FeedImageURL)
	if err != nil {
		return domain.DownloadRecord{}, err
	}
	return r.Get(ctx, rec.EpisodeID)
}

func (r *DownloadsRepository) Get(ctx context.Context, episodeID string) (domain.DownloadRecord, error) {
	var rec domain.DownloadRecord
	var downloadedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT episode_id, feed_id, title, audio_url, duration, local_uri, downloaded_at, feed_title, feed_image_url
		FROM downloads WHERE episode_id = ?
	`, episodeID).Scan(&rec.EpisodeID, &rec.FeedID, &rec.Title, &rec.AudioURL, &rec.Duration,
		&rec.LocalURI, &downloadedAt, &rec.FeedTitle, &rec.FeedImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DownloadRecord{}, ports.ErrNotFound
		}
		return domain.DownloadRecord{}, err
	}
	rec.DownloadedAt, _ = time.Parse(time.RFC3339, downloadedAt)
	return rec, nil
}

func (r *DownloadsRepository) List(ctx context.Context) ([]domain.DownloadRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT episode_id, feed_id, title, audio_url, duration, local_uri, downloaded_at, feed_title, feed_image_url
		FROM downloads ORDER BY downloaded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.DownloadRecord{}
	for rows.Next() {
		var rec domain.DownloadRecord
		var downloadedAt string
		if err := rows.Scan(&rec.EpisodeID, &rec.FeedID, &rec.Title, &rec.AudioURL, &rec.Duration,
			&rec.LocalURI, &downloadedAt, &rec.FeedTitle, &rec.FeedImageURL); err != nil {
			return nil, err
		}
		rec.DownloadedAt, _ = time.Parse(time.RFC3339, downloadedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *DownloadsRepository) CountByFeed(ctx context.Context, feedID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads WHERE feed_id = ?`, feedID).Scan(&n)
	return n, err
}

func (r *DownloadsRepository) Delete(ctx context.Context, episodeID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM downloads WHERE episode_id = ?`, episodeID)
	return err
}

// MarkCompleted: le premier horodatage gagne, les suivants sont ignorés.
func (r *DownloadsRepository) MarkCompleted(ctx context.Context, episodeID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO completions(episode_id, completed_at) VALUES(?, ?)
		ON CONFLICT(episode_id) DO NOTHING
	`, episodeID, at.UTC().Format(time.RFC3339))
	return err
}

func (r *DownloadsRepository) Completions(ctx context.Context) (map[string]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT episode_id, completed_at FROM completions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			continue
		}
		out[id] = t
	}
	return out, rows.Err()
}

func (r *DownloadsRepository) DeleteCompletion(ctx context.Context, episodeID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM completions WHERE episode_id = ?`, episodeID)
	return err
}
