package store

import (
	"time"

	"github.com/tvleaf/tvleaf/internal/domain"
)

// UpsertQueuedDownload creates or resets the download record for a show to
// status=queued with zero progress. An existing record is updated in place
// (catalog ID is unique within the collection) and its snapshot refreshed.
func (s *MediaStore) UpsertQueuedDownload(show domain.Show, quality domain.Quality) domain.SavedShow {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionDownloads)
	i := findByCatalogID(shows, show.CatalogID)
	if i < 0 {
		shows = append(shows, domain.NewSavedShow(show))
		i = len(shows) - 1
	}

	shows[i].Show = show
	shows[i].ResetDownloadState()
	shows[i].DownloadStatus = domain.DownloadStatusQueued
	shows[i].DownloadQuality = quality
	shows[i].UpdatedAt = time.Now()

	rec := shows[i]
	s.save(domain.CollectionDownloads, shows)
	s.logger.Debug("download queued", "catalogID", show.CatalogID, "quality", string(quality))
	return rec
}

// ApplyDownloadProgress records transfer progress for an in-flight download.
// The reported fraction is clamped to [0,1]; when the expected byte count is
// known the byte-derived fraction is computed and the maximum of the two wins,
// guarding against a reporting layer that under-reports fraction while byte
// counts are precise. The stored percent never decreases within an attempt.
func (s *MediaStore) ApplyDownloadProgress(catalogID string, fraction float64, downloaded, expected int64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionDownloads)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return
	}

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	if expected <= 0 {
		expected = shows[i].ExpectedBytes
	}
	if expected > 0 {
		if byteFraction := float64(downloaded) / float64(expected); byteFraction > fraction {
			fraction = byteFraction
		}
		if fraction > 1 {
			fraction = 1
		}
	}

	percent := int(fraction * 100)
	if percent > shows[i].DownloadProgress {
		shows[i].DownloadProgress = percent
	}
	shows[i].DownloadStatus = domain.DownloadStatusDownloading
	shows[i].DownloadedBytes = downloaded
	shows[i].ExpectedBytes = expected
	shows[i].UpdatedAt = time.Now()

	s.save(domain.CollectionDownloads, shows)
}

// MarkDownloadCompleted finalizes a successful download. The byte count read
// back from the finished file is ground truth and overrides any estimate.
func (s *MediaStore) MarkDownloadCompleted(catalogID, videoPath, thumbnailPath string, size int64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionDownloads)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return
	}

	shows[i].DownloadStatus = domain.DownloadStatusCompleted
	shows[i].DownloadProgress = 100
	shows[i].DownloadedBytes = size
	shows[i].ExpectedBytes = size
	shows[i].LocalVideoPath = videoPath
	shows[i].LocalThumbnailPath = thumbnailPath
	shows[i].UpdatedAt = time.Now()

	s.save(domain.CollectionDownloads, shows)
	s.logger.Info("download completed", "catalogID", catalogID, "bytes", size)
}

// MarkDownloadFailed marks an attempt as failed with zero progress. The record
// and its snapshot remain so the user can retry without re-searching.
func (s *MediaStore) MarkDownloadFailed(catalogID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionDownloads)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return
	}

	shows[i].ResetDownloadState()
	shows[i].DownloadStatus = domain.DownloadStatusFailed
	shows[i].UpdatedAt = time.Now()

	s.save(domain.CollectionDownloads, shows)
	s.logger.Warn("download failed", "catalogID", catalogID)
}

// ResetDownload returns a record to the post-cancel resting state
// (status=none, zero progress and bytes, no local paths).
func (s *MediaStore) ResetDownload(catalogID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionDownloads)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return
	}

	shows[i].ResetDownloadState()
	shows[i].UpdatedAt = time.Now()

	s.save(domain.CollectionDownloads, shows)
}

// SetDownloadThumbnail backfills the thumbnail path on a completed record.
func (s *MediaStore) SetDownloadThumbnail(catalogID, thumbnailPath string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionDownloads)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return
	}

	shows[i].LocalThumbnailPath = thumbnailPath
	shows[i].UpdatedAt = time.Now()

	s.save(domain.CollectionDownloads, shows)
}

// RemoveDownload deletes the record entirely and returns it so the caller can
// clean up local files.
func (s *MediaStore) RemoveDownload(catalogID string) (domain.SavedShow, bool) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionDownloads)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return domain.SavedShow{}, false
	}

	rec := shows[i]
	shows = append(shows[:i], shows[i+1:]...)
	s.save(domain.CollectionDownloads, shows)
	return rec, true
}

// ClearDownloads empties the collection and returns the removed records for
// file cleanup.
func (s *MediaStore) ClearDownloads() []domain.SavedShow {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionDownloads)
	s.save(domain.CollectionDownloads, nil)
	return shows
}
