package store

import (
	"sort"
	"time"

	"github.com/tvleaf/tvleaf/internal/domain"
)

// === Bookmarks ===

// ToggleBookmark removes an existing bookmark for the show's catalog ID, or
// creates one when none exists. Returns true when a bookmark was added.
func (s *MediaStore) ToggleBookmark(show domain.Show) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionBookmarks)
	if i := findByCatalogID(shows, show.CatalogID); i >= 0 {
		shows = append(shows[:i], shows[i+1:]...)
		s.save(domain.CollectionBookmarks, shows)
		s.logger.Debug("bookmark removed", "catalogID", show.CatalogID)
		return false
	}

	rec := domain.NewSavedShow(show)
	rec.Bookmarked = true
	rec.BookmarkedAt = time.Now()
	shows = append(shows, rec)
	s.save(domain.CollectionBookmarks, shows)
	s.logger.Debug("bookmark added", "catalogID", show.CatalogID)
	return true
}

// RemoveBookmark deletes the bookmark for a catalog ID, if present.
func (s *MediaStore) RemoveBookmark(catalogID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionBookmarks)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return
	}
	shows = append(shows[:i], shows[i+1:]...)
	s.save(domain.CollectionBookmarks, shows)
}

// === Continue-watching ===

// SavePlaybackPosition upserts the resume point into continue-watching and
// propagates position/duration to matching bookmark and download records.
// Propagation never creates records in collections where none exists.
func (s *MediaStore) SavePlaybackPosition(show domain.Show, position, duration int64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	now := time.Now()

	shows := s.load(domain.CollectionContinueWatching)
	if i := findByCatalogID(shows, show.CatalogID); i >= 0 {
		shows[i].PlaybackPosition = position
		shows[i].VideoDuration = duration
		shows[i].LastPlayedAt = now
		shows[i].UpdatedAt = now
	} else {
		rec := domain.NewSavedShow(show)
		rec.PlaybackPosition = position
		rec.VideoDuration = duration
		rec.LastPlayedAt = now
		shows = append(shows, rec)
	}

	// Bound to the most recently played entries
	if len(shows) > continueWatchingLimit {
		sort.Slice(shows, func(a, b int) bool {
			return shows[a].LastPlayedAt.After(shows[b].LastPlayedAt)
		})
		shows = shows[:continueWatchingLimit]
	}
	s.save(domain.CollectionContinueWatching, shows)

	s.propagatePosition(domain.CollectionBookmarks, show.CatalogID, position, duration, now)
	s.propagatePosition(domain.CollectionDownloads, show.CatalogID, position, duration, now)
}

// propagatePosition updates position/duration on an existing record in another
// collection sharing the catalog ID. No-op when the collection has no record.
func (s *MediaStore) propagatePosition(col domain.Collection, catalogID string, position, duration int64, now time.Time) {
	shows := s.load(col)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return
	}
	shows[i].PlaybackPosition = position
	shows[i].VideoDuration = duration
	shows[i].LastPlayedAt = now
	shows[i].UpdatedAt = now
	s.save(col, shows)
}

// RemoveContinueWatching deletes the resume record for a catalog ID.
func (s *MediaStore) RemoveContinueWatching(catalogID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	shows := s.load(domain.CollectionContinueWatching)
	i := findByCatalogID(shows, catalogID)
	if i < 0 {
		return
	}
	shows = append(shows[:i], shows[i+1:]...)
	s.save(domain.CollectionContinueWatching, shows)
}

// ClearContinueWatching empties the continue-watching collection.
func (s *MediaStore) ClearContinueWatching() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.save(domain.CollectionContinueWatching, nil)
}
