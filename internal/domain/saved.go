package domain

import (
	"time"

	"github.com/google/uuid"
)

// SavedShow is the unit of all three persisted collections (bookmarks,
// continue-watching, downloads). One record shape is shared across
// collections; fields that only apply to one collection stay zero elsewhere.
type SavedShow struct {
	RecordID  string // Opaque unique identifier, generated at creation
	CatalogID string // Natural key within a collection
	Show      Show   // Snapshot copied at creation / last refresh

	// Bookmark fields
	Bookmarked   bool
	BookmarkedAt time.Time

	// Playback resume fields (seconds)
	PlaybackPosition int64
	VideoDuration    int64
	LastPlayedAt     time.Time

	// Download fields
	DownloadStatus   DownloadStatus
	DownloadProgress int   // 0-100, monotonic non-decreasing while downloading
	DownloadedBytes  int64 // cumulative bytes written (0 = none yet)
	ExpectedBytes    int64 // declared total (0 = unknown)
	DownloadQuality  Quality

	// Local artifacts, populated only after successful completion
	LocalVideoPath     string
	LocalThumbnailPath string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSavedShow creates a fresh record for a catalog show with a new record ID.
func NewSavedShow(show Show) SavedShow {
	now := time.Now()
	return SavedShow{
		RecordID:  uuid.NewString(),
		CatalogID: show.CatalogID,
		Show:      show,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasLocalVideo reports whether the record references a completed local file.
func (s SavedShow) HasLocalVideo() bool {
	return s.DownloadStatus == DownloadStatusCompleted && s.LocalVideoPath != ""
}

// ResetDownloadState clears all transfer state and local artifact references.
// Used when a download is (re)started or cancelled.
func (s *SavedShow) ResetDownloadState() {
	s.DownloadStatus = DownloadStatusNone
	s.DownloadProgress = 0
	s.DownloadedBytes = 0
	s.ExpectedBytes = 0
	s.LocalVideoPath = ""
	s.LocalThumbnailPath = ""
}

// ShouldResume returns true if playback should resume from the saved position
func (s SavedShow) ShouldResume() bool {
	return s.PlaybackPosition > 0 && s.PlaybackPosition < s.VideoDuration
}
