package app

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/rs/zerolog"
)

// DeepLink est un lien de partage: /episode/{id} avec ?t={seconds} optionnel
// pour reprendre à un horodatage.
type DeepLink struct {
	EpisodeID string
	ResumeMs  int64
}

func ParseDeepLink(raw string) (DeepLink, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return DeepLink{}, Coded(KindInvalid, "invalid link", err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Forme app-scheme (shiurcast://episode/{id}): "episode" atterrit dans
	// le host, l'id est le premier segment.
	if u.Host == "episode" {
		segments = append([]string{"episode"}, segments...)
	}
	id := ""
	for i, seg := range segments {
		if seg == "episode" && i+1 < len(segments) {
			id = segments[i+1]
			break
		}
	}
	if id == "" {
		return DeepLink{}, Coded(KindInvalid, "link has no episode id", nil)
	}

	link := DeepLink{EpisodeID: id}
	if t := u.Query().Get("t"); t != "" {
		if secs, err := strconv.ParseInt(t, 10, 64); err == nil && secs > 0 {
			link.ResumeMs = secs * 1000
		}
	}
	return link, nil
}

// DeepLinkHandler résout un lien partagé et lance la lecture au bon offset.
type DeepLinkHandler struct {
	logger    zerolog.Logger
	catalog   ports.CatalogAPI
	player    ports.Player
	positions *PositionTracker

	// ReadyTimeout borne l'attente du signal de readiness du player.
	ReadyTimeout time.Duration
}

func NewDeepLinkHandler(logger zerolog.Logger, catalog ports.CatalogAPI, player ports.Player, positions *PositionTracker) *DeepLinkHandler {
	return &DeepLinkHandler{
		logger:       logger,
		catalog:      catalog,
		player:       player,
		positions:    positions,
		ReadyTimeout: 10 * time.Second,
	}
}

// Resolve renvoie l'épisode et le flux d'un lien, sans toucher au player.
func (h *DeepLinkHandler) Resolve(ctx context.Context, raw string) (DeepLink, domain.Episode, domain.Feed, error) {
	link, err := ParseDeepLink(raw)
	if err != nil {
		return DeepLink{}, domain.Episode{}, domain.Feed{}, err
	}
	ep, feed, err := h.catalog.ResolveSharedEpisode(ctx, link.EpisodeID)
	if err != nil {
		return DeepLink{}, domain.Episode{}, domain.Feed{}, err
	}
	return link, ep, feed, nil
}

// Open charge l'épisode puis attend le signal ready avant de seeker: pas de
// délai fixe, le seek ne part jamais avant que le moteur soit prêt.
func (h *DeepLinkHandler) Open(ctx context.Context, raw string) error {
	link, ep, _, err := h.Resolve(ctx, raw)
	if err != nil {
		return err
	}

	if err := h.player.Load(ctx, ep); err != nil {
		return Coded(KindIO, "load episode", err)
	}

	resumeMs := link.ResumeMs
	if resumeMs == 0 {
		// Sans timestamp explicite, reprendre à la position sauvegardée.
		if pos, ok, err := h.positions.Load(ctx, ep.ID); err == nil && ok {
			resumeMs = pos.PositionMs
		}
	}
	if resumeMs <= 0 {
		return nil
	}

	select {
	case <-h.player.Ready():
	case <-time.After(h.ReadyTimeout):
		return Coded(KindIO, "player not ready before seek", nil)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := h.player.Seek(ctx, resumeMs); err != nil {
		return Coded(KindIO, "seek", err)
	}
	return nil
}
