package domain

// FeedOverride carries per-feed preferences; nil fields fall back to the
// global setting.
type FeedOverride struct {
	Notifications *bool `json:"notifications,omitempty"`
	AutoDownload  *bool `json:"autoDownload,omitempty"`
	MaxEpisodes   *int  `json:"maxEpisodes,omitempty"`
}

type Settings struct {
	NotificationsEnabled bool `json:"notificationsEnabled"`
	AutoDownloadEnabled  bool `json:"autoDownloadEnabled"`
	AutoDownloadWifiOnly bool `json:"autoDownloadWifiOnly"`

	// Quota: retained downloads per feed.
	MaxEpisodesPerFeed int `json:"maxEpisodesPerFeed"`

	// Concurrency bound for batched transfers.
	MaxConcurrentDownloads int `json:"maxConcurrentDownloads"`

	FeedOverrides map[string]FeedOverride `json:"feedOverrides,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		NotificationsEnabled:   true,
		AutoDownloadEnabled:    false,
		AutoDownloadWifiOnly:   true,
		MaxEpisodesPerFeed:     3,
		MaxConcurrentDownloads: 3,
	}
}

func (s Settings) NotificationsFor(feedID string) bool {
	if o, ok := s.FeedOverrides[feedID]; ok && o.Notifications != nil {
		return *o.Notifications
	}
	return s.NotificationsEnabled
}

func (s Settings) AutoDownloadFor(feedID string) bool {
	if o, ok := s.FeedOverrides[feedID]; ok && o.AutoDownload != nil {
		return *o.AutoDownload
	}
	return s.AutoDownloadEnabled
}

func (s Settings) MaxEpisodesFor(feedID string) int {
	if o, ok := s.FeedOverrides[feedID]; ok && o.MaxEpisodes != nil && *o.MaxEpisodes > 0 {
		return *o.MaxEpisodes
	}
	return s.MaxEpisodesPerFeed
}

// AnyNotifications reports whether the notification path is worth running at
// all: enabled globally, or for at least one feed override.
func (s Settings) AnyNotifications() bool {
	if s.NotificationsEnabled {
		return true
	}
	for _, o := range s.FeedOverrides {
		if o.Notifications != nil && *o.Notifications {
			return true
		}
	}
	return false
}
