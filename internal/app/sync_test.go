package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drosenbaum/shiurcast/internal/adapters/sqlite"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/rs/zerolog"
)

type syncFixture struct {
	orch     *SyncOrchestrator
	catalog  *fakeCatalog
	notifier *fakeNotifier
	seen     *SeenService
	settings *SettingsService
	kv       *sqlite.KVRepository
	dlrepo   *sqlite.DownloadsRepository
}

func newSyncFixture(t *testing.T, wifi bool) (*syncFixture, context.Context) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	catalog := &fakeCatalog{byFeed: map[string][]domain.Episode{}}
	notifier := &fakeNotifier{permitted: true}
	kv := sqlite.NewKVRepository(db.SQL)
	seen := NewSeenService(zerolog.Nop(), sqlite.NewSeenRepository(db.SQL, sqlite.DefaultSeenLimit))
	settings := NewSettingsService(sqlite.NewSettingsRepository(db.SQL))
	dlrepo := sqlite.NewDownloadsRepository(db.SQL)
	downloads := NewDownloadManager(zerolog.Nop(), dlrepo, catalog, nil, NewDynamicLimiter(2), "")
	errlog := NewErrorLog(zerolog.Nop(), kv)
	dispatcher := NewDispatcher(zerolog.Nop(), notifier, nil)

	orch := NewSyncOrchestrator(
		zerolog.Nop(), catalog, seen, dispatcher, downloads, settings,
		notifier, fakeConnectivity{wifi: wifi}, kv, nil, errlog,
		"device-1", SyncOptions{MinInterval: time.Nanosecond, BackgroundGuard: 4 * time.Minute},
	)
	return &syncFixture{orch: orch, catalog: catalog, notifier: notifier, seen: seen, settings: settings, kv: kv, dlrepo: dlrepo}, ctx
}

func TestSyncOrchestrator_NotifiesAfterBootstrap(t *testing.T) {
	f, ctx := newSyncFixture(t, true)
	f.catalog.feeds = []domain.Feed{{ID: "feed-1", Title: "Daf Yomi"}}
	f.catalog.latest = episodesFor("feed-1", "ep-1", "ep-2")

	// Premier run: bootstrap, zéro notification.
	f.orch.RunOnce(ctx)
	if f.notifier.count() != 0 {
		t.Fatalf("bootstrap run notified: %d", f.notifier.count())
	}

	// Nouveauté au run suivant.
	f.catalog.latest = episodesFor("feed-1", "ep-1", "ep-2", "ep-3")
	f.orch.RunOnce(ctx)
	if f.notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", f.notifier.count())
	}

	// Run identique: l'épisode est déjà vu.
	f.orch.RunOnce(ctx)
	if f.notifier.count() != 1 {
		t.Fatalf("episode notified twice: %d", f.notifier.count())
	}
}

func TestSyncOrchestrator_FetchFailureLeavesSeenUntouched(t *testing.T) {
	f, ctx := newSyncFixture(t, true)
	f.catalog.feeds = []domain.Feed{{ID: "feed-1"}}
	f.catalog.latest = episodesFor("feed-1", "ep-1")
	f.orch.RunOnce(ctx)

	// Fetch en panne: le run s'arrête avant le détecteur.
	f.catalog.latestErr = errors.New("network down")
	f.catalog.latest = episodesFor("feed-1", "ep-1", "ep-2")
	f.orch.RunOnce(ctx)
	if f.notifier.count() != 0 {
		t.Fatalf("failed run notified: %d", f.notifier.count())
	}

	// Rétabli: ep-2 est toujours inédit et passe.
	f.catalog.latestErr = nil
	f.orch.RunOnce(ctx)
	if f.notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1 after recovery", f.notifier.count())
	}
}

func TestSyncOrchestrator_MinIntervalSpacing(t *testing.T) {
	f, ctx := newSyncFixture(t, true)
	f.orch.opts.MinInterval = time.Hour
	f.catalog.feeds = []domain.Feed{{ID: "feed-1"}}
	f.catalog.latest = episodesFor("feed-1", "ep-1")

	f.orch.RunOnce(ctx)
	calls := f.catalog.latestCalls

	// Trop tôt: le run est sauté.
	f.orch.RunOnce(ctx)
	if f.catalog.latestCalls != calls {
		t.Fatalf("second run fetched despite spacing guard")
	}
}

func TestSyncOrchestrator_BackgroundRunDeduplicated(t *testing.T) {
	f, ctx := newSyncFixture(t, true)
	f.catalog.feeds = []domain.Feed{{ID: "feed-1"}}
	f.catalog.latest = episodesFor("feed-1", "ep-1")

	f.orch.RunBackground(ctx)
	calls := f.catalog.latestCalls

	// Invocation OS rapprochée: dédupliquée par l'horodatage persisté.
	f.orch.RunBackground(ctx)
	if f.catalog.latestCalls != calls {
		t.Fatal("background run not deduplicated")
	}

	// Horodatage vieilli: le run repart.
	old := time.Now().Add(-10 * time.Minute).UTC().Format(time.RFC3339)
	if err := f.kv.Put(ctx, lastBackgroundRunKey, []byte(old)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	f.orch.RunBackground(ctx)
	if f.catalog.latestCalls == calls {
		t.Fatal("stale stamp did not allow a new run")
	}
}

func TestSyncOrchestrator_WifiGateSuppressesAutoDownload(t *testing.T) {
	f, ctx := newSyncFixture(t, false)
	f.catalog.feeds = []domain.Feed{{ID: "feed-1"}}
	f.catalog.latest = episodesFor("feed-1", "ep-1")
	f.catalog.byFeed["feed-1"] = []domain.Episode{{ID: "ep-1", FeedID: "feed-1", AudioURL: "https://cdn.example.com/1.mp3"}}

	s := domain.DefaultSettings()
	s.AutoDownloadEnabled = true
	s.AutoDownloadWifiOnly = true
	if _, err := f.settings.Put(ctx, s); err != nil {
		t.Fatalf("Put settings: %v", err)
	}

	// Hors wifi avec wifiOnly actif: aucun téléchargement.
	f.orch.RunOnce(ctx)
	recs, err := f.dlrepo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("downloads off wifi: %+v", recs)
	}

	// Retour sur wifi: le quota se remplit.
	onWifi, ctx2 := newSyncFixture(t, true)
	onWifi.catalog.feeds = f.catalog.feeds
	onWifi.catalog.latest = f.catalog.latest
	onWifi.catalog.byFeed = f.catalog.byFeed
	if _, err := onWifi.settings.Put(ctx2, s); err != nil {
		t.Fatalf("Put settings: %v", err)
	}
	onWifi.orch.RunOnce(ctx2)
	recs, err = onWifi.dlrepo.List(ctx2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("downloads on wifi = %d, want 1", len(recs))
	}
}

func TestSyncOrchestrator_PermissionDeniedPreservesSeen(t *testing.T) {
	f, ctx := newSyncFixture(t, true)
	f.notifier.permitted = false
	f.catalog.feeds = []domain.Feed{{ID: "feed-1"}}
	f.catalog.latest = episodesFor("feed-1", "ep-1")
	f.orch.RunOnce(ctx)

	// Nouveauté pendant que la permission est refusée: pas consommée.
	f.catalog.latest = episodesFor("feed-1", "ep-1", "ep-2")
	f.orch.RunOnce(ctx)
	if f.notifier.count() != 0 {
		t.Fatalf("denied permission still notified: %d", f.notifier.count())
	}

	// Permission accordée: l'épisode arrive enfin.
	f.notifier.permitted = true
	f.orch.RunOnce(ctx)
	if f.notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1 after permission grant", f.notifier.count())
	}
}
