package app

import (
	"context"
	"errors"
	"testing"

	"github.com/drosenbaum/shiurcast/internal/adapters/sqlite"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/rs/zerolog"
)

func newTestPositions(t *testing.T) (*PositionTracker, context.Context) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPositionTracker(zerolog.Nop(), sqlite.NewPositionsRepository(db.SQL), nil), ctx
}

func TestPositionTracker_SaveLoadRoundTrip(t *testing.T) {
	tr, ctx := newTestPositions(t)

	if err := tr.Save(ctx, "ep-1", "feed-1", 90_000, 3_600_000); err != nil {
		t.Fatalf("Save: %v", err)
	}
	pos, ok, err := tr.Load(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load: ok = false for saved episode")
	}
	if pos.PositionMs != 90_000 || pos.DurationMs != 3_600_000 {
		t.Fatalf("unexpected position: %+v", pos)
	}

	// Upsert: la dernière sauvegarde gagne.
	if err := tr.Save(ctx, "ep-1", "feed-1", 120_000, 3_600_000); err != nil {
		t.Fatalf("Save: %v", err)
	}
	pos, _, _ = tr.Load(ctx, "ep-1")
	if pos.PositionMs != 120_000 {
		t.Fatalf("PositionMs = %d, want 120000", pos.PositionMs)
	}
}

func TestPositionTracker_LoadAbsentIsNotZero(t *testing.T) {
	tr, ctx := newTestPositions(t)

	_, ok, err := tr.Load(ctx, "never-played")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("absent episode reported as saved")
	}
}

func TestPositionTracker_RejectsNegativeValues(t *testing.T) {
	tr, ctx := newTestPositions(t)

	if err := tr.Save(ctx, "ep-1", "feed-1", -1, 1000); err == nil {
		t.Fatal("expected rejection of negative position")
	}
	if err := tr.Save(ctx, "", "feed-1", 0, 1000); err == nil {
		t.Fatal("expected rejection of empty episode id")
	}
}

type failingPositionRepo struct{}

func (failingPositionRepo) Save(ctx context.Context, pos domain.SavedPosition) (domain.SavedPosition, error) {
	return domain.SavedPosition{}, errors.New("disk full")
}

func (failingPositionRepo) Get(ctx context.Context, episodeID string) (domain.SavedPosition, error) {
	return domain.SavedPosition{}, errors.New("disk full")
}

func (failingPositionRepo) All(ctx context.Context) (map[string]domain.SavedPosition, error) {
	return nil, errors.New("disk full")
}

func TestPositionTracker_ListenerFiresOncePerSaveEvenOnFailure(t *testing.T) {
	tr := NewPositionTracker(zerolog.Nop(), failingPositionRepo{}, nil)
	ctx := context.Background()

	fired := 0
	unsubscribe := tr.Subscribe(func() { fired++ })

	// La persistance échoue: best-effort, l'appelant n'en sait rien et le
	// listener est notifié une seule fois.
	if err := tr.Save(ctx, "ep-1", "feed-1", 1000, 2000); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	unsubscribe()
	if err := tr.Save(ctx, "ep-1", "feed-1", 2000, 2000); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired after unsubscribe = %d, want 1", fired)
	}
}

func TestSavedPosition_Finished(t *testing.T) {
	pos := domain.SavedPosition{PositionMs: 950, DurationMs: 1000}
	if !pos.Finished(domain.DefaultCompletionThreshold) {
		t.Fatal("95% should count as finished")
	}
	pos.PositionMs = 940
	if pos.Finished(domain.DefaultCompletionThreshold) {
		t.Fatal("94% should not count as finished")
	}
	// Durée inconnue: jamais fini.
	pos = domain.SavedPosition{PositionMs: 10_000, DurationMs: 0}
	if pos.Finished(domain.DefaultCompletionThreshold) {
		t.Fatal("unknown duration should never count as finished")
	}
}
