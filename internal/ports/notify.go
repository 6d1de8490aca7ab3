package ports

import (
	"context"

	"github.com/drosenbaum/shiurcast/internal/domain"
)

// Notification is what the engine decides to show; rendering is the OS's
// business.
type Notification struct {
	FeedID    string `json:"feedId"`
	EpisodeID string `json:"episodeId,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Count     int    `json:"count"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	// PermissionGranted reports OS-level notification permission. A denial
	// is a valid state, not an error.
	PermissionGranted(ctx context.Context) bool
}

// Player is the audio engine collaborator: load, readiness, seek. The engine
// never decodes audio itself.
type Player interface {
	Load(ctx context.Context, ep domain.Episode) error
	// Ready is closed (or receives) once the loaded episode is seekable.
	Ready() <-chan struct{}
	Seek(ctx context.Context, positionMs int64) error
}

type Connectivity interface {
	OnWifi(ctx context.Context) bool
}
