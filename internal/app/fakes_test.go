package app

import (
	"context"
	"errors"
	"sync"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
)

// fakeCatalog est un backend catalogue en mémoire, avec pannes simulables.
type fakeCatalog struct {
	mu sync.Mutex

	feeds    []domain.Feed
	latest   []domain.Episode
	byFeed   map[string][]domain.Episode
	favs     []string
	sharedEp domain.Episode
	sharedFd domain.Feed

	feedsErr  error
	latestErr error
	favsErr   error

	latestCalls int
	pushTokens  []string
}

func (c *fakeCatalog) SubscribedFeeds(ctx context.Context, deviceID string) ([]domain.Feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedsErr != nil {
		return nil, c.feedsErr
	}
	return c.feeds, nil
}

func (c *fakeCatalog) SubscribedEpisodes(ctx context.Context, deviceID string) ([]domain.Episode, error) {
	return c.LatestEpisodes(ctx, 0)
}

func (c *fakeCatalog) LatestEpisodes(ctx context.Context, limit int) ([]domain.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestCalls++
	if c.latestErr != nil {
		return nil, c.latestErr
	}
	return c.latest, nil
}

func (c *fakeCatalog) FeedEpisodes(ctx context.Context, feedID string) ([]domain.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	eps, ok := c.byFeed[feedID]
	if !ok {
		return []domain.Episode{}, nil
	}
	return eps, nil
}

func (c *fakeCatalog) Favorites(ctx context.Context, deviceID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.favsErr != nil {
		return nil, c.favsErr
	}
	return c.favs, nil
}

func (c *fakeCatalog) AddFavorite(ctx context.Context, deviceID, episodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.favs = append(c.favs, episodeID)
	return nil
}

func (c *fakeCatalog) RemoveFavorite(ctx context.Context, deviceID, episodeID string) error {
	return nil
}

func (c *fakeCatalog) RegisterPushToken(ctx context.Context, deviceID, token, platform string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushTokens = append(c.pushTokens, token)
	return nil
}

func (c *fakeCatalog) ResolveSharedEpisode(ctx context.Context, episodeID string) (domain.Episode, domain.Feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sharedEp.ID != episodeID {
		return domain.Episode{}, domain.Feed{}, errors.New("unknown episode")
	}
	return c.sharedEp, c.sharedFd, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	permitted bool
	sent      []string // "title|body"
	err       error
}

func (n *fakeNotifier) Notify(ctx context.Context, notif ports.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notif.Title+"|"+notif.Body)
	return nil
}

func (n *fakeNotifier) PermissionGranted(ctx context.Context) bool {
	return n.permitted
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeConnectivity struct {
	wifi bool
}

func (c fakeConnectivity) OnWifi(ctx context.Context) bool { return c.wifi }

// fakePlayer bloque Seek tant que ready n'est pas fermé.
type fakePlayer struct {
	mu     sync.Mutex
	ready  chan struct{}
	loaded []string
	seeks  []int64
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{ready: make(chan struct{})}
}

func (p *fakePlayer) Load(ctx context.Context, ep domain.Episode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = append(p.loaded, ep.ID)
	return nil
}

func (p *fakePlayer) Ready() <-chan struct{} { return p.ready }

func (p *fakePlayer) Seek(ctx context.Context, positionMs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, positionMs)
	return nil
}

func (p *fakePlayer) seekAt(i int) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= len(p.seeks) {
		return 0, false
	}
	return p.seeks[i], true
}
