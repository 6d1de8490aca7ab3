package app

import (
	"context"
	"strings"
	"testing"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/rs/zerolog"
)

func TestGroupNewEpisodes(t *testing.T) {
	feeds := []domain.Feed{
		{ID: "feed-1", Title: "Daf Yomi"},
		{ID: "feed-2", Title: "Weekly Parsha"},
	}
	episodes := []domain.Episode{
		{ID: "ep-1", FeedID: "feed-1"},
		{ID: "ep-2", FeedID: "feed-2"},
		{ID: "ep-3", FeedID: "feed-1"},
	}

	groups := GroupNewEpisodes(episodes, feeds)
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	// Ordre de première apparition.
	if groups[0].Feed.ID != "feed-1" || len(groups[0].Episodes) != 2 {
		t.Fatalf("group 0: %+v", groups[0])
	}
	if groups[1].Feed.ID != "feed-2" || len(groups[1].Episodes) != 1 {
		t.Fatalf("group 1: %+v", groups[1])
	}
}

func TestDispatcher_SingleEpisodeUsesEpisodeTitle(t *testing.T) {
	n := &fakeNotifier{permitted: true}
	d := NewDispatcher(zerolog.Nop(), n, nil)

	groups := []domain.NewEpisodeGroup{{
		Feed:     domain.Feed{ID: "feed-1", Title: "Daf Yomi"},
		Episodes: []domain.Episode{{ID: "ep-1", FeedID: "feed-1", Title: "Berakhot 2a"}},
	}}
	d.Dispatch(context.Background(), domain.DefaultSettings(), groups)

	if n.count() != 1 {
		t.Fatalf("notifications = %d, want 1", n.count())
	}
	if n.sent[0] != "Berakhot 2a|Daf Yomi" {
		t.Fatalf("notification = %q", n.sent[0])
	}
}

func TestDispatcher_BatchesMultipleEpisodes(t *testing.T) {
	n := &fakeNotifier{permitted: true}
	d := NewDispatcher(zerolog.Nop(), n, nil)

	groups := []domain.NewEpisodeGroup{{
		Feed: domain.Feed{ID: "feed-1", Title: "Daf Yomi"},
		Episodes: []domain.Episode{
			{ID: "ep-1", FeedID: "feed-1"},
			{ID: "ep-2", FeedID: "feed-1"},
			{ID: "ep-3", FeedID: "feed-1"},
		},
	}}
	d.Dispatch(context.Background(), domain.DefaultSettings(), groups)

	// Une seule notification batch, pas une rafale.
	if n.count() != 1 {
		t.Fatalf("notifications = %d, want 1", n.count())
	}
	if !strings.Contains(n.sent[0], "3 new shiurim") {
		t.Fatalf("notification = %q", n.sent[0])
	}
}

func TestDispatcher_HonorsFeedOverride(t *testing.T) {
	n := &fakeNotifier{permitted: true}
	d := NewDispatcher(zerolog.Nop(), n, nil)

	off := false
	settings := domain.DefaultSettings()
	settings.FeedOverrides = map[string]domain.FeedOverride{
		"feed-muted": {Notifications: &off},
	}

	groups := []domain.NewEpisodeGroup{
		{Feed: domain.Feed{ID: "feed-muted", Title: "Muted"}, Episodes: []domain.Episode{{ID: "ep-1"}}},
		{Feed: domain.Feed{ID: "feed-loud", Title: "Loud"}, Episodes: []domain.Episode{{ID: "ep-2", Title: "Shiur"}}},
	}
	d.Dispatch(context.Background(), settings, groups)

	if n.count() != 1 {
		t.Fatalf("notifications = %d, want 1", n.count())
	}
	if !strings.Contains(n.sent[0], "Loud") {
		t.Fatalf("wrong feed notified: %q", n.sent[0])
	}
}
