package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drosenbaum/shiurcast/internal/adapters/httpapi"
	"github.com/drosenbaum/shiurcast/internal/adapters/memorybus"
	"github.com/drosenbaum/shiurcast/internal/adapters/shiurapi"
	"github.com/drosenbaum/shiurcast/internal/adapters/sqlite"
	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/buildinfo"
	"github.com/drosenbaum/shiurcast/internal/config"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	def := config.Default()
	addr := flag.String("addr", def.Addr, "Adresse d'écoute (ex: 127.0.0.1:8080)")
	dbPath := flag.String("db", def.DBPath, "Chemin SQLite (ex: shiurcast.db)")
	downloadDir := flag.String("downloads", def.DownloadDir, "Répertoire des téléchargements")
	apiURL := flag.String("api", def.APIURL, "URL du backend catalogue")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "shiurcast").Logger()
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", *dbPath).Msg("starting")

	ctx := context.Background()
	db, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open db")
	}
	defer func() { _ = db.Close() }()

	bus := memorybus.New()
	defer bus.Close()

	kvRepo := sqlite.NewKVRepository(db.SQL)
	deviceID, err := app.LoadOrCreateDeviceID(ctx, kvRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load device id")
	}
	logger.Info().Str("device_id", deviceID).Msg("device identity")

	catalog := shiurapi.NewClient(logger.With().Str("component", "catalog").Logger(), *apiURL)

	settingsSvc := app.NewSettingsService(sqlite.NewSettingsRepository(db.SQL))
	positions := app.NewPositionTracker(logger, sqlite.NewPositionsRepository(db.SQL), bus)
	queue := app.NewQueueManager(logger, sqlite.NewQueueRepository(db.SQL), bus)
	seen := app.NewSeenService(logger, sqlite.NewSeenRepository(db.SQL, sqlite.DefaultSeenLimit))

	// Limiteur global (partagé) pour tous les téléchargements + hook côté API settings.
	settings, err := settingsSvc.Get(ctx)
	if err != nil {
		settings = domain.DefaultSettings()
	}
	downloadLimiter := app.NewDynamicLimiter(settings.MaxConcurrentDownloads)

	downloads := app.NewDownloadManager(logger, sqlite.NewDownloadsRepository(db.SQL), catalog, bus, downloadLimiter, *downloadDir)

	errlog := app.NewErrorLog(logger, kvRepo)
	errlog.Hydrate(ctx)

	notifier := &busNotifier{bus: bus}
	dispatcher := app.NewDispatcher(logger.With().Str("component", "dispatcher").Logger(), notifier, bus)
	deeplink := app.NewDeepLinkHandler(logger, catalog, &busPlayer{bus: bus}, positions)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Orchestrateur: détection des nouveautés, auto-download, purge.
	orchestrator := app.NewSyncOrchestrator(
		logger.With().Str("component", "sync").Logger(),
		catalog, seen, dispatcher, downloads, settingsSvc,
		notifier, alwaysWifi{}, kvRepo, bus, errlog,
		deviceID, app.DefaultSyncOptions(),
	)
	go orchestrator.Run(shutdownCtx)

	srv := httpapi.NewServer(logger, httpapi.ServerDeps{
		Positions:       positions,
		Queue:           queue,
		Downloads:       downloads,
		Settings:        settingsSvc,
		Sync:            orchestrator,
		DeepLink:        deeplink,
		ErrorLog:        errlog,
		Catalog:         catalog,
		KV:              kvRepo,
		Bus:             bus,
		DeviceID:        deviceID,
		DownloadLimiter: downloadLimiter,
	})
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	logger.Info().Msg("bye")
}

// busNotifier relaie les notifications sur le bus; le shell (app mobile) les
// consomme via SSE et les rend avec l'API native.
type busNotifier struct {
	bus ports.EventBus
}

func (n *busNotifier) Notify(ctx context.Context, notif ports.Notification) error {
	payload, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	n.bus.Publish("notification.show", payload)
	return nil
}

func (n *busNotifier) PermissionGranted(ctx context.Context) bool { return true }

// busPlayer publie load/seek sur le bus; le lecteur audio vit côté shell.
type busPlayer struct {
	bus ports.EventBus
}

func (p *busPlayer) Load(ctx context.Context, ep domain.Episode) error {
	payload, err := json.Marshal(ep)
	if err != nil {
		return err
	}
	p.bus.Publish("player.load", payload)
	return nil
}

func (p *busPlayer) Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (p *busPlayer) Seek(ctx context.Context, positionMs int64) error {
	payload, _ := json.Marshal(map[string]int64{"positionMs": positionMs})
	p.bus.Publish("player.seek", payload)
	return nil
}

// alwaysWifi: le daemon tourne derrière le shell, qui coupe le process hors
// wifi quand wifiOnly est actif. Côté serveur on considère le lien permanent.
type alwaysWifi struct{}

func (alwaysWifi) OnWifi(ctx context.Context) bool { return true }
