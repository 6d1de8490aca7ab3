package domain

import "time"

type DownloadState string

const (
	DownloadAbsent      DownloadState = "absent"
	DownloadDownloading DownloadState = "downloading"
	DownloadDownloaded  DownloadState = "downloaded"
	DownloadRemoved     DownloadState = "removed"
	DownloadExpired     DownloadState = "expired"
)

// CanTransition encodes the download lifecycle. There is no persisted
// "failed" state: failures fall back to absent.
func CanTransition(from, to DownloadState) bool {
	if from == to {
		return true
	}
	switch from {
	case DownloadAbsent:
		return to == DownloadDownloading
	case DownloadDownloading:
		return to == DownloadDownloaded || to == DownloadAbsent
	case DownloadDownloaded:
		return to == DownloadRemoved || to == DownloadExpired || to == DownloadDownloading
	case DownloadRemoved, DownloadExpired:
		return to == DownloadDownloading
	default:
		return false
	}
}

// DownloadRecord exists only for completed downloads. LocalURI is a file
// path, or the remote audio URL when the platform has no local filesystem
// (degraded but playable).
type DownloadRecord struct {
	EpisodeID    string    `json:"episodeId"`
	FeedID       string    `json:"feedId"`
	Title        string    `json:"title"`
	AudioURL     string    `json:"audioUrl"`
	Duration     int64     `json:"duration"`
	LocalURI     string    `json:"localUri"`
	DownloadedAt time.Time `json:"downloadedAt"`
	FeedTitle    string    `json:"feedTitle"`
	FeedImageURL string    `json:"feedImageUrl"`
}
