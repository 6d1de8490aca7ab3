package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/rs/zerolog"
)

// QueueManager owns the ordered "up next" list. One mutex across each
// read-modify-write so overlapping mutations on the queue never interleave.
type QueueManager struct {
	logger zerolog.Logger
	repo   ports.QueueRepository
	bus    ports.EventBus
	mu     sync.Mutex
}

func NewQueueManager(logger zerolog.Logger, repo ports.QueueRepository, bus ports.EventBus) *QueueManager {
	return &QueueManager{logger: logger, repo: repo, bus: bus}
}

func (q *QueueManager) Get(ctx context.Context) ([]domain.QueueItem, error) {
	return q.repo.List(ctx)
}

// Add est idempotent: un épisode déjà en file est un no-op.
func (q *QueueManager) Add(ctx context.Context, episodeID, feedID string) error {
	if episodeID == "" {
		return Coded(KindInvalid, "missing episode id", nil)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.repo.Append(ctx, domain.QueueItem{
		EpisodeID: episodeID,
		FeedID:    feedID,
		AddedAt:   time.Now().UTC(),
	})
	if errors.Is(err, ports.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	q.publishChanged(ctx)
	return nil
}

func (q *QueueManager) Remove(ctx context.Context, episodeID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.repo.Remove(ctx, episodeID); err != nil {
		return err
	}
	q.publishChanged(ctx)
	return nil
}

// Reorder remplace la liste entière. La nouvelle liste doit être une
// permutation de l'existante (même ensemble d'épisodes), sinon ErrConflict:
// une réorganisation ne peut ni ajouter ni perdre d'éléments.
func (q *QueueManager) Reorder(ctx context.Context, items []domain.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	current, err := q.repo.List(ctx)
	if err != nil {
		return err
	}
	if !samePermutation(current, items) {
		return Coded(KindConflict, "reorder is not a permutation of the queue", ports.ErrConflict)
	}

	if err := q.repo.Replace(ctx, items); err != nil {
		return err
	}
	q.publishChanged(ctx)
	return nil
}

func (q *QueueManager) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.repo.Clear(ctx); err != nil {
		return err
	}
	q.publishChanged(ctx)
	return nil
}

// MarkPlayed retire un épisode après que son lancement a réussi (sémantique
// play-from-queue: l'appelant ne retire qu'après initiation, un échec
// laisse l'élément en file).
func (q *QueueManager) MarkPlayed(ctx context.Context, episodeID string) error {
	return q.Remove(ctx, episodeID)
}

// QueuedEpisode est une entrée de file jointe à ses métadonnées catalogue.
type QueuedEpisode struct {
	domain.QueueItem
	Episode domain.Episode `json:"episode"`
}

// ResolveQueue joint la file aux épisodes récupérés. Une entrée dont l'épisode
// a disparu du catalogue est écartée de la vue; la file stockée la conserve et
// elle réapparaît si l'épisode revient.
func ResolveQueue(items []domain.QueueItem, episodes []domain.Episode) []QueuedEpisode {
	byID := make(map[string]domain.Episode, len(episodes))
	for _, ep := range episodes {
		byID[ep.ID] = ep
	}
	resolved := make([]QueuedEpisode, 0, len(items))
	for _, it := range items {
		ep, ok := byID[it.EpisodeID]
		if !ok {
			continue
		}
		resolved = append(resolved, QueuedEpisode{QueueItem: it, Episode: ep})
	}
	return resolved
}

func samePermutation(a, b []domain.QueueItem) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, it := range a {
		set[it.EpisodeID] = struct{}{}
	}
	for _, it := range b {
		if _, ok := set[it.EpisodeID]; !ok {
			return false
		}
		delete(set, it.EpisodeID)
	}
	return len(set) == 0
}

func (q *QueueManager) publishChanged(ctx context.Context) {
	if q.bus == nil {
		return
	}
	items, err := q.repo.List(ctx)
	if err != nil {
		return
	}
	b, err := json.Marshal(items)
	if err != nil {
		return
	}
	q.bus.Publish("queue.changed", b)
}
