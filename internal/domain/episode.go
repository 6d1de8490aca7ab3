package domain

import "time"

// Episode is the catalog's unit of audio: one shiur. The remote API owns
// these; the engine never mutates them.
type Episode struct {
	ID          string    `json:"id"`
	FeedID      string    `json:"feedId"`
	Title       string    `json:"title"`
	AudioURL    string    `json:"audioUrl"`
	Duration    int64     `json:"duration"` // seconds
	PublishedAt time.Time `json:"publishedAt"`
	GUID        string    `json:"guid"`
}

type Feed struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Active   bool   `json:"active"`
}

// NewEpisodeGroup is the unit handed to the notification dispatcher: all
// freshly-detected episodes of one feed.
type NewEpisodeGroup struct {
	Feed     Feed      `json:"feed"`
	Episodes []Episode `json:"episodes"`
}
