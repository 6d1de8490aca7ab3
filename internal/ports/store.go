package ports

import (
	"context"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
)

type PositionRepository interface {
	Save(ctx context.Context, pos domain.SavedPosition) (domain.SavedPosition, error)
	// Get renvoie ErrNotFound pour un épisode jamais joué.
	Get(ctx context.Context, episodeID string) (domain.SavedPosition, error)
	All(ctx context.Context) (map[string]domain.SavedPosition, error)
}

type QueueRepository interface {
	List(ctx context.Context) ([]domain.QueueItem, error)
	// Append renvoie ErrConflict si l'épisode est déjà dans la file.
	Append(ctx context.Context, item domain.QueueItem) error
	Remove(ctx context.Context, episodeID string) error
	// Replace remplace la liste entière de façon atomique.
	Replace(ctx context.Context, items []domain.QueueItem) error
	Clear(ctx context.Context) error
}

type SeenRepository interface {
	MarkSeen(ctx context.Context, episodeIDs []string) error
	SeenSet(ctx context.Context) (map[string]struct{}, error)
	Count(ctx context.Context) (int, error)
}

type DownloadRepository interface {
	// Put écrase tout enregistrement existant pour le même épisode.
	Put(ctx context.Context, rec domain.DownloadRecord) (domain.DownloadRecord, error)
	Get(ctx context.Context, episodeID string) (domain.DownloadRecord, error)
	List(ctx context.Context) ([]domain.DownloadRecord, error)
	CountByFeed(ctx context.Context, feedID string) (int, error)
	Delete(ctx context.Context, episodeID string) error

	// MarkCompleted conserve le premier horodatage: les appels suivants sont no-op.
	MarkCompleted(ctx context.Context, episodeID string, at time.Time) error
	Completions(ctx context.Context) (map[string]time.Time, error)
	DeleteCompletion(ctx context.Context, episodeID string) error
}

type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Put(ctx context.Context, settings domain.Settings) (domain.Settings, error)
}

// KVRepository couvre les petits blobs hors collections: device id, dernier
// run background, journal d'erreurs persisté.
type KVRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}
