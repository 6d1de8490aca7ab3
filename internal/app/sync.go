package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/rs/zerolog"
)

const lastBackgroundRunKey = "sync_last_background_run"

type SyncOptions struct {
	// MinInterval espace les checks effectifs au premier plan.
	MinInterval time.Duration
	// BackgroundGuard dé-duplique les invocations OS, qui peuvent arriver
	// plus souvent que demandé.
	BackgroundGuard time.Duration
	// LatestLimit borne la page d'épisodes récents.
	LatestLimit int
}

func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		MinInterval:     60 * time.Second,
		BackgroundGuard: 4 * time.Minute,
		LatestLimit:     100,
	}
}

// SyncOrchestrator pilote le cycle idle → checking → (notifying |
// downloading)* → idle: fetch des flux suivis et des nouveautés, détection,
// dispatch, auto-download, purge. Un fetch raté log et s'arrête là — le
// détecteur n'est jamais invoqué sans données fraîches, donc aucun seen set
// partiel.
type SyncOrchestrator struct {
	logger       zerolog.Logger
	catalog      ports.CatalogAPI
	seen         *SeenService
	dispatcher   *Dispatcher
	downloads    *DownloadManager
	settings     *SettingsService
	notifier     ports.Notifier
	connectivity ports.Connectivity
	kv           ports.KVRepository
	bus          ports.EventBus
	errlog       *ErrorLog
	deviceID     string
	opts         SyncOptions

	mu      sync.Mutex
	lastRun time.Time
	wake    chan struct{}
}

func NewSyncOrchestrator(
	logger zerolog.Logger,
	catalog ports.CatalogAPI,
	seen *SeenService,
	dispatcher *Dispatcher,
	downloads *DownloadManager,
	settings *SettingsService,
	notifier ports.Notifier,
	connectivity ports.Connectivity,
	kv ports.KVRepository,
	bus ports.EventBus,
	errlog *ErrorLog,
	deviceID string,
	opts SyncOptions,
) *SyncOrchestrator {
	def := DefaultSyncOptions()
	if opts.MinInterval <= 0 {
		opts.MinInterval = def.MinInterval
	}
	if opts.BackgroundGuard <= 0 {
		opts.BackgroundGuard = def.BackgroundGuard
	}
	if opts.LatestLimit <= 0 {
		opts.LatestLimit = def.LatestLimit
	}
	return &SyncOrchestrator{
		logger:       logger,
		catalog:      catalog,
		seen:         seen,
		dispatcher:   dispatcher,
		downloads:    downloads,
		settings:     settings,
		notifier:     notifier,
		connectivity: connectivity,
		kv:           kv,
		bus:          bus,
		errlog:       errlog,
		deviceID:     deviceID,
		opts:         opts,
		wake:         make(chan struct{}, 1),
	}
}

func (o *SyncOrchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.opts.MinInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("sync orchestrator stopped")
			return
		case <-ticker.C:
			o.RunOnce(ctx)
		case <-o.wake:
			o.RunOnce(ctx)
		}
	}
}

// Wake déclenche un check (transition au premier plan). Non bloquant;
// l'espacement minimal s'applique quand même.
func (o *SyncOrchestrator) Wake() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// RunOnce exécute un check, sous réserve de l'espacement minimal.
func (o *SyncOrchestrator) RunOnce(ctx context.Context) {
	o.mu.Lock()
	if time.Since(o.lastRun) < o.opts.MinInterval && !o.lastRun.IsZero() {
		o.mu.Unlock()
		return
	}
	o.lastRun = time.Now()
	o.mu.Unlock()

	o.check(ctx)
}

// RunBackground est le point d'entrée des exécutions planifiées par l'OS,
// gardé par un horodatage persisté: l'OS peut invoquer la tâche plus souvent
// ou moins prévisiblement que demandé.
func (o *SyncOrchestrator) RunBackground(ctx context.Context) {
	if b, err := o.kv.Get(ctx, lastBackgroundRunKey); err == nil {
		if last, perr := time.Parse(time.RFC3339, string(b)); perr == nil {
			if time.Since(last) < o.opts.BackgroundGuard {
				o.logger.Debug().Msg("background run deduplicated")
				return
			}
		}
	}
	if err := o.kv.Put(ctx, lastBackgroundRunKey, []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
		o.logger.Warn().Err(err).Msg("persist background run stamp failed")
	}
	o.check(ctx)
}

func (o *SyncOrchestrator) check(ctx context.Context) {
	// Frontière d'orchestration: rien ne doit tuer le process ni bloquer
	// les runs suivants.
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Msg("sync run panicked")
		}
	}()

	feeds, err := o.catalog.SubscribedFeeds(ctx, o.deviceID)
	if err != nil {
		o.fail("sync.feeds", err)
		return
	}
	episodes, err := o.catalog.LatestEpisodes(ctx, o.opts.LatestLimit)
	if err != nil {
		o.fail("sync.episodes", err)
		return
	}

	settings, err := o.settings.Get(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("load settings failed, using defaults")
		settings = domain.DefaultSettings()
	}

	if err := o.seen.Bootstrap(ctx, episodes); err != nil {
		o.fail("sync.bootstrap", err)
		return
	}

	if settings.AnyNotifications() && o.notifier.PermissionGranted(ctx) {
		fresh, err := o.seen.CheckForNew(ctx, feeds, episodes)
		if err != nil {
			o.fail("sync.detect", err)
		} else if len(fresh) > 0 {
			o.dispatcher.Dispatch(ctx, settings, GroupNewEpisodes(fresh, feeds))
		}
	} else {
		// Permission refusée ou notifications coupées: état valide, pas
		// une erreur. Le seen set n'est pas consommé.
		o.logger.Debug().Msg("notification path suppressed")
	}

	if settings.AutoDownloadEnabled {
		if !settings.AutoDownloadWifiOnly || o.connectivity.OnWifi(ctx) {
			res := o.downloads.AutoDownload(ctx, feeds, settings)
			for id, derr := range res.Errors {
				o.errlog.Record(ctx, fmt.Sprintf("autodownload.%s", id), derr)
			}
		}
	}

	if favs, err := o.catalog.Favorites(ctx, o.deviceID); err == nil {
		set := make(map[string]struct{}, len(favs))
		for _, id := range favs {
			set[id] = struct{}{}
		}
		if _, err := o.downloads.CleanupExpired(ctx, set); err != nil {
			o.errlog.Record(ctx, "sync.cleanup", err)
		}
	} else {
		o.logger.Warn().Err(err).Msg("fetch favorites failed, cleanup skipped")
	}

	if o.bus != nil {
		b, _ := json.Marshal(map[string]any{"feeds": len(feeds), "episodes": len(episodes)})
		o.bus.Publish("sync.completed", b)
	}
}

func (o *SyncOrchestrator) fail(source string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	o.logger.Warn().Err(err).Str("source", source).Msg("sync step failed")
	o.errlog.Record(context.Background(), source, err)
}
