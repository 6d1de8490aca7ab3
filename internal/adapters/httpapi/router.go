package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
)

type Server struct {
	logger    zerolog.Logger
	positions *app.PositionTracker
	queue     *app.QueueManager
	downloads *app.DownloadManager
	settings  *app.SettingsService
	sync      *app.SyncOrchestrator
	deeplink  *app.DeepLinkHandler
	errlog    *app.ErrorLog
	catalog   ports.CatalogAPI
	kv        ports.KVRepository
	bus       ports.EventBus
	deviceID  string
	// downloadLimiter est optionnel et permet d'appliquer maxConcurrentDownloads à chaud.
	downloadLimiter *app.DynamicLimiter
	// onSettingsUpdated est optionnel (ex: réveiller l'orchestrateur).
	onSettingsUpdated func(domain.Settings)
}

type ServerDeps struct {
	Positions *app.PositionTracker
	Queue     *app.QueueManager
	Downloads *app.DownloadManager
	Settings  *app.SettingsService
	Sync      *app.SyncOrchestrator
	DeepLink  *app.DeepLinkHandler
	ErrorLog  *app.ErrorLog
	Catalog   ports.CatalogAPI
	KV        ports.KVRepository
	Bus       ports.EventBus
	DeviceID  string

	DownloadLimiter   *app.DynamicLimiter
	OnSettingsUpdated func(domain.Settings)
}

func NewServer(logger zerolog.Logger, deps ServerDeps) *Server {
	return &Server{
		logger:            logger,
		positions:         deps.Positions,
		queue:             deps.Queue,
		downloads:         deps.Downloads,
		settings:          deps.Settings,
		sync:              deps.Sync,
		deeplink:          deps.DeepLink,
		errlog:            deps.ErrorLog,
		catalog:           deps.Catalog,
		kv:                deps.KV,
		bus:               deps.Bus,
		deviceID:          deps.DeviceID,
		downloadLimiter:   deps.DownloadLimiter,
		onSettingsUpdated: deps.OnSettingsUpdated,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/device", s.handleDevice)
		r.Get("/events", s.handleEvents)

		if s.positions != nil {
			NewPositionsHandler(s.positions).Routes(r)
		}
		if s.queue != nil {
			NewQueueHandler(s.queue, s.catalog, s.deviceID).Routes(r)
		}
		if s.downloads != nil {
			NewDownloadsHandler(s.downloads).Routes(r)
		}
		if s.settings != nil {
			NewSettingsHandler(s.settings, func(updated domain.Settings) {
				if s.downloadLimiter != nil && updated.MaxConcurrentDownloads > 0 {
					s.downloadLimiter.SetLimit(updated.MaxConcurrentDownloads)
				}
				if s.onSettingsUpdated != nil {
					s.onSettingsUpdated(updated)
				}
			}).Routes(r)
		}
		if s.sync != nil {
			NewSyncHandler(s.sync).Routes(r)
		}
		if s.deeplink != nil {
			NewDeepLinkHTTPHandler(s.deeplink).Routes(r)
		}
		if s.errlog != nil {
			NewErrorsHandler(s.errlog).Routes(r)
		}
		if s.catalog != nil {
			NewFavoritesHandler(s.catalog, s.deviceID).Routes(r)
		}
		if s.catalog != nil && s.kv != nil {
			NewPushTokenHandler(s.kv, s.catalog, s.deviceID).Routes(r)
		}
	})

	return r
}
