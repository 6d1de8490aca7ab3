package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drosenbaum/shiurcast/internal/adapters/memorybus"
	"github.com/drosenbaum/shiurcast/internal/adapters/sqlite"
	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// stubCatalog ne sert que les épisodes des abonnements.
type stubCatalog struct {
	episodes []domain.Episode
}

func (s *stubCatalog) SubscribedFeeds(context.Context, string) ([]domain.Feed, error) {
	return nil, nil
}

func (s *stubCatalog) SubscribedEpisodes(context.Context, string) ([]domain.Episode, error) {
	return s.episodes, nil
}

func (s *stubCatalog) LatestEpisodes(context.Context, int) ([]domain.Episode, error) {
	return nil, nil
}

func (s *stubCatalog) FeedEpisodes(context.Context, string) ([]domain.Episode, error) {
	return nil, nil
}

func (s *stubCatalog) Favorites(context.Context, string) ([]string, error) { return nil, nil }

func (s *stubCatalog) AddFavorite(context.Context, string, string) error { return nil }

func (s *stubCatalog) RemoveFavorite(context.Context, string, string) error { return nil }

func (s *stubCatalog) RegisterPushToken(context.Context, string, string, string) error { return nil }

func (s *stubCatalog) ResolveSharedEpisode(context.Context, string) (domain.Episode, domain.Feed, error) {
	return domain.Episode{}, domain.Feed{}, nil
}

func TestQueueHandler_ReorderRejectsNonPermutation(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	bus := memorybus.New()
	t.Cleanup(bus.Close)
	queue := app.NewQueueManager(zerolog.Nop(), sqlite.NewQueueRepository(db.SQL), bus)

	if err := queue.Add(ctx, "ep-1", "feed-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := queue.Add(ctx, "ep-2", "feed-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	r := chi.NewRouter()
	NewQueueHandler(queue, nil, "dev-1").Routes(r)

	// ep-3 n'est pas dans la file: la réorganisation doit être refusée.
	body := []byte(`[{"episodeId":"ep-2","feedId":"feed-1"},{"episodeId":"ep-3","feedId":"feed-1"}]`)
	req := httptest.NewRequest(http.MethodPut, "/queue/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: want %d, got %d", http.StatusConflict, rr.Code)
	}

	items, err := queue.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(items) != 2 || items[0].EpisodeID != "ep-1" {
		t.Fatalf("queue mutated by rejected reorder: %+v", items)
	}
}

func TestQueueHandler_ResolvedFiltersOrphans(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	queue := app.NewQueueManager(zerolog.Nop(), sqlite.NewQueueRepository(db.SQL), nil)
	if err := queue.Add(ctx, "ep-1", "feed-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := queue.Add(ctx, "ep-gone", "feed-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	catalog := &stubCatalog{episodes: []domain.Episode{
		{ID: "ep-1", FeedID: "feed-1", Title: "Berakhot 2a"},
	}}

	r := chi.NewRouter()
	NewQueueHandler(queue, catalog, "dev-1").Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/queue/resolved", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: want %d, got %d", http.StatusOK, rr.Code)
	}
	var resolved []app.QueuedEpisode
	if err := json.Unmarshal(rr.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// L'entrée sans épisode au catalogue est écartée de la vue jointe.
	if len(resolved) != 1 || resolved[0].EpisodeID != "ep-1" {
		t.Fatalf("resolved = %+v", resolved)
	}
	if resolved[0].Episode.Title != "Berakhot 2a" {
		t.Fatalf("episode not joined: %+v", resolved[0])
	}

	// La file stockée garde l'entrée orpheline.
	items, err := queue.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("stored queue = %+v", items)
	}
}
