package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/rs/zerolog"
)

// GroupNewEpisodes regroupe les nouveautés par flux pour le dispatch, dans
// l'ordre de première apparition.
func GroupNewEpisodes(episodes []domain.Episode, feeds []domain.Feed) []domain.NewEpisodeGroup {
	byID := make(map[string]domain.Feed, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
	}

	order := []string{}
	grouped := map[string][]domain.Episode{}
	for _, ep := range episodes {
		if _, ok := grouped[ep.FeedID]; !ok {
			order = append(order, ep.FeedID)
		}
		grouped[ep.FeedID] = append(grouped[ep.FeedID], ep)
	}

	out := make([]domain.NewEpisodeGroup, 0, len(order))
	for _, feedID := range order {
		out = append(out, domain.NewEpisodeGroup{
			Feed:     byID[feedID],
			Episodes: grouped[feedID],
		})
	}
	return out
}

// Dispatcher décide du contenu des notifications: un seul épisode par flux →
// titre + nom du flux; plusieurs → une seule notification batch avec le
// compte (pas de rafale sur une mise à jour massive).
type Dispatcher struct {
	logger   zerolog.Logger
	notifier ports.Notifier
	bus      ports.EventBus
}

func NewDispatcher(logger zerolog.Logger, notifier ports.Notifier, bus ports.EventBus) *Dispatcher {
	return &Dispatcher{logger: logger, notifier: notifier, bus: bus}
}

func (d *Dispatcher) Dispatch(ctx context.Context, settings domain.Settings, groups []domain.NewEpisodeGroup) {
	for _, g := range groups {
		if !settings.NotificationsFor(g.Feed.ID) {
			continue
		}

		var n ports.Notification
		switch len(g.Episodes) {
		case 0:
			continue
		case 1:
			ep := g.Episodes[0]
			n = ports.Notification{
				FeedID:    g.Feed.ID,
				EpisodeID: ep.ID,
				Title:     ep.Title,
				Body:      g.Feed.Title,
				Count:     1,
			}
		default:
			n = ports.Notification{
				FeedID: g.Feed.ID,
				Title:  g.Feed.Title,
				Body:   fmt.Sprintf("%d new shiurim", len(g.Episodes)),
				Count:  len(g.Episodes),
			}
		}

		if err := d.notifier.Notify(ctx, n); err != nil {
			d.logger.Warn().Err(err).Str("feed_id", g.Feed.ID).Msg("notification dispatch failed")
			continue
		}
		d.publish(n)
	}
}

func (d *Dispatcher) publish(n ports.Notification) {
	if d.bus == nil {
		return
	}
	b, err := json.Marshal(n)
	if err != nil {
		return
	}
	d.bus.Publish("episodes.new", b)
}
