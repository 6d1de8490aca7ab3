package shiurapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/drosenbaum/shiurcast/internal/app"
	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/rs/zerolog"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultCacheTTL       = 5 * time.Minute
)

// Client parle au backend catalogue (JSON sur HTTPS). Chaque appel porte son
// timeout; les chemins de lecture retombent sur la dernière réponse réussie
// quand le fetch échoue et qu'une entrée de cache existe.
type Client struct {
	logger  zerolog.Logger
	baseURL string
	http    *http.Client
	cache   *memoryCache

	// Timeout par requête, abort à l'échéance.
	Timeout time.Duration
}

func NewClient(logger zerolog.Logger, baseURL string) *Client {
	return &Client{
		logger:  logger,
		baseURL: baseURL,
		http:    &http.Client{},
		cache:   newMemoryCache(defaultCacheTTL),
		Timeout: defaultRequestTimeout,
	}
}

func (c *Client) SubscribedFeeds(ctx context.Context, deviceID string) ([]domain.Feed, error) {
	path := fmt.Sprintf("/subscriptions/%s/feeds", url.PathEscape(deviceID))
	var feeds []domain.Feed
	if err := c.getJSON(ctx, path, &feeds); err != nil {
		if cached, ok := cachedAs[[]domain.Feed](c.cache, path); ok {
			c.logger.Debug().Str("path", path).Msg("serving stale feeds after fetch failure")
			return cached, nil
		}
		return nil, err
	}
	c.cache.put(path, feeds)
	return feeds, nil
}

func (c *Client) SubscribedEpisodes(ctx context.Context, deviceID string) ([]domain.Episode, error) {
	path := fmt.Sprintf("/subscriptions/%s/episodes", url.PathEscape(deviceID))
	var episodes []domain.Episode
	if err := c.getJSON(ctx, path, &episodes); err != nil {
		if cached, ok := cachedAs[[]domain.Episode](c.cache, path); ok {
			return cached, nil
		}
		return nil, err
	}
	c.cache.put(path, episodes)
	return episodes, nil
}

func (c *Client) LatestEpisodes(ctx context.Context, limit int) ([]domain.Episode, error) {
	if limit <= 0 {
		limit = 100
	}
	path := fmt.Sprintf("/episodes/latest?limit=%d", limit)
	var episodes []domain.Episode
	if err := c.getJSON(ctx, path, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

func (c *Client) FeedEpisodes(ctx context.Context, feedID string) ([]domain.Episode, error) {
	path := fmt.Sprintf("/feeds/%s/episodes", url.PathEscape(feedID))
	var episodes []domain.Episode
	if err := c.getJSON(ctx, path, &episodes); err != nil {
		if cached, ok := cachedAs[[]domain.Episode](c.cache, path); ok {
			return cached, nil
		}
		return nil, err
	}
	c.cache.put(path, episodes)
	return episodes, nil
}

func (c *Client) Favorites(ctx context.Context, deviceID string) ([]string, error) {
	path := fmt.Sprintf("/favorites/%s", url.PathEscape(deviceID))
	var ids []string
	if err := c.getJSON(ctx, path, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) AddFavorite(ctx context.Context, deviceID, episodeID string) error {
	body := map[string]string{"deviceId": deviceID, "episodeId": episodeID}
	return c.send(ctx, http.MethodPost, "/favorites", body)
}

func (c *Client) RemoveFavorite(ctx context.Context, deviceID, episodeID string) error {
	path := fmt.Sprintf("/favorites/%s/%s", url.PathEscape(deviceID), url.PathEscape(episodeID))
	return c.send(ctx, http.MethodDelete, path, nil)
}

func (c *Client) RegisterPushToken(ctx context.Context, deviceID, token, platform string) error {
	body := map[string]string{"deviceId": deviceID, "token": token, "platform": platform}
	return c.send(ctx, http.MethodPost, "/push-token", body)
}

func (c *Client) ResolveSharedEpisode(ctx context.Context, episodeID string) (domain.Episode, domain.Feed, error) {
	path := fmt.Sprintf("/share/episode/%s", url.PathEscape(episodeID))
	var payload struct {
		Episode domain.Episode `json:"episode"`
		Feed    domain.Feed    `json:"feed"`
	}
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return domain.Episode{}, domain.Feed{}, err
	}
	return payload.Episode, payload.Feed, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return app.Coded(app.KindNetwork, fmt.Sprintf("catalog request %s", path), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return app.Coded(app.KindNetwork, fmt.Sprintf("catalog request %s: status %d", path, resp.StatusCode), nil)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method, path string, body any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return app.Coded(app.KindNetwork, fmt.Sprintf("catalog request %s", path), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return app.Coded(app.KindNetwork, fmt.Sprintf("catalog request %s: status %d", path, resp.StatusCode), nil)
	}
	return nil
}

func cachedAs[T any](c *memoryCache, key string) (T, bool) {
	var zero T
	v, _, ok := c.get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
