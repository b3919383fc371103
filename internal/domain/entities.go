package domain

import (
	"fmt"
	"time"
)

// Quality identifies a stream resolution tier offered by the catalog.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Show is an immutable snapshot of catalog metadata for a single broadcast.
// Records store a copy of this snapshot, never a reference, so later catalog
// changes cannot mutate saved history.
type Show struct {
	CatalogID    string             // Catalog's stable identifier
	Title        string             // Display title
	Topic        string             // Series / topic grouping
	Channel      string             // Broadcasting channel
	Description  string             // Synopsis
	Duration     time.Duration      // Total runtime
	AiredAt      time.Time          // Original broadcast time
	SizeHint     int64              // Declared size in bytes (0 = unknown)
	StreamURLs   map[Quality]string // Stream URL per quality tier
	ThumbnailURL string             // Remote thumbnail image URL
}

// StreamURL returns the stream URL for the requested quality tier.
func (s Show) StreamURL(q Quality) (string, bool) {
	url, ok := s.StreamURLs[q]
	if !ok || url == "" {
		return "", false
	}
	return url, true
}

// FormattedDuration returns the duration in a human-readable format
func (s Show) FormattedDuration() string {
	h := int(s.Duration.Hours())
	mins := int(s.Duration.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// DownloadStatus represents the lifecycle state of a download record.
type DownloadStatus int

const (
	DownloadStatusNone DownloadStatus = iota
	DownloadStatusQueued
	DownloadStatusDownloading
	DownloadStatusCompleted
	DownloadStatusFailed
)

// String returns a human-readable representation of the download status
func (d DownloadStatus) String() string {
	switch d {
	case DownloadStatusNone:
		return "None"
	case DownloadStatusQueued:
		return "Queued"
	case DownloadStatusDownloading:
		return "Downloading"
	case DownloadStatusCompleted:
		return "Completed"
	case DownloadStatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
