package ports

import (
	"context"

	"github.com/drosenbaum/shiurcast/internal/domain"
)

// CatalogAPI is the remote backend serving the curated shiurim catalog.
// Every call carries its own timeout; failures are network-kind errors.
type CatalogAPI interface {
	SubscribedFeeds(ctx context.Context, deviceID string) ([]domain.Feed, error)
	SubscribedEpisodes(ctx context.Context, deviceID string) ([]domain.Episode, error)
	LatestEpisodes(ctx context.Context, limit int) ([]domain.Episode, error)
	FeedEpisodes(ctx context.Context, feedID string) ([]domain.Episode, error)

	Favorites(ctx context.Context, deviceID string) ([]string, error)
	AddFavorite(ctx context.Context, deviceID, episodeID string) error
	RemoveFavorite(ctx context.Context, deviceID, episodeID string) error

	// RegisterPushToken is idempotent against an unchanged token.
	RegisterPushToken(ctx context.Context, deviceID, token, platform string) error

	ResolveSharedEpisode(ctx context.Context, episodeID string) (domain.Episode, domain.Feed, error)
}
