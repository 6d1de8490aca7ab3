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

// PositionTracker owns playback offsets. Saves are best-effort: a storage
// failure is logged, never surfaced, and the listener notification fires
// either way, exactly once per save.
type PositionTracker struct {
	logger zerolog.Logger
	repo   ports.PositionRepository
	bus    ports.EventBus

	mu      sync.Mutex
	nextSub int
	subs    map[int]func()
}

func NewPositionTracker(logger zerolog.Logger, repo ports.PositionRepository, bus ports.EventBus) *PositionTracker {
	return &PositionTracker{logger: logger, repo: repo, bus: bus, subs: map[int]func(){}}
}

// Save upserte la position. Valeurs négatives refusées (contrat appelant:
// clamp avant appel).
func (t *PositionTracker) Save(ctx context.Context, episodeID, feedID string, positionMs, durationMs int64) error {
	if episodeID == "" || positionMs < 0 || durationMs < 0 {
		return Coded(KindInvalid, "invalid position save", nil)
	}

	pos := domain.SavedPosition{
		EpisodeID:  episodeID,
		FeedID:     feedID,
		PositionMs: positionMs,
		DurationMs: durationMs,
		UpdatedAt:  time.Now().UTC(),
	}
	saved, err := t.repo.Save(ctx, pos)
	if err != nil {
		// Best-effort: l'état en mémoire du player reste la vérité.
		t.logger.Warn().Err(err).Str("episode_id", episodeID).Msg("position save failed")
	} else {
		t.publish(saved)
	}

	// Fire after the write attempt, success or failure.
	t.notify()
	return nil
}

// Load renvoie (position, true) ou (zero, false) pour un épisode jamais joué.
func (t *PositionTracker) Load(ctx context.Context, episodeID string) (domain.SavedPosition, bool, error) {
	pos, err := t.repo.Get(ctx, episodeID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.SavedPosition{}, false, nil
		}
		return domain.SavedPosition{}, false, err
	}
	return pos, true, nil
}

func (t *PositionTracker) All(ctx context.Context) (map[string]domain.SavedPosition, error) {
	return t.repo.All(ctx)
}

// Subscribe enregistre un callback notifié après chaque tentative d'écriture.
// Le handle renvoyé désabonne.
func (t *PositionTracker) Subscribe(fn func()) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *PositionTracker) notify() {
	t.mu.Lock()
	fns := make([]func(), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (t *PositionTracker) publish(pos domain.SavedPosition) {
	if t.bus == nil {
		return
	}
	b, err := json.Marshal(pos)
	if err != nil {
		return
	}
	t.bus.Publish("position.saved", b)
}
