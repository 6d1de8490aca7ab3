package domain

import "time"

// QueueItem is one "up next" entry. Array order is play order; no two items
// share an episode ID.
type QueueItem struct {
	EpisodeID string    `json:"episodeId"`
	FeedID    string    `json:"feedId"`
	AddedAt   time.Time `json:"addedAt"`
}
