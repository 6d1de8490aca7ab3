package domain

import "time"

// DefaultCompletionThreshold is the playback ratio past which an episode
// counts as finished for retention purposes.
const DefaultCompletionThreshold = 0.95

// SavedPosition is the last known playback offset for an episode. One per
// episode ever played; never proactively deleted.
type SavedPosition struct {
	EpisodeID  string    `json:"episodeId"`
	FeedID     string    `json:"feedId"`
	PositionMs int64     `json:"positionMs"`
	DurationMs int64     `json:"durationMs"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Finished reports whether the position crosses the completion threshold.
// With an unknown duration the ratio is undefined and the answer is false:
// the record then only serves resume.
func (p SavedPosition) Finished(threshold float64) bool {
	if p.DurationMs <= 0 {
		return false
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultCompletionThreshold
	}
	return float64(p.PositionMs) >= float64(p.DurationMs)*threshold
}
