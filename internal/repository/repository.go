// Package repository is the consumer-facing aggregation point over the local
// media store, download pipeline and thumbnail cache. It mirrors store
// contents as observable state and exposes intent-level operations to the UI
// layer.
package repository

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"github.com/tvleaf/tvleaf/internal/domain"
	"github.com/tvleaf/tvleaf/internal/download"
	"github.com/tvleaf/tvleaf/internal/store"
	"github.com/tvleaf/tvleaf/internal/thumb"
)

// Repository reloads a full collection on every change notification rather
// than applying deltas; the store's notification granularity makes this cheap
// enough and eliminates merge conflicts entirely.
type Repository struct {
	store   *store.MediaStore
	manager *download.Manager
	thumbs  *thumb.Cache
	logger  *slog.Logger

	mu               sync.RWMutex
	bookmarks        []domain.SavedShow
	continueWatching []domain.SavedShow
	downloads        []domain.SavedShow

	events chan domain.CollectionChanged
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(st *store.MediaStore, manager *download.Manager, thumbs *thumb.Cache, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Repository{
		store:   st,
		manager: manager,
		thumbs:  thumbs,
		logger:  logger,
		events:  make(chan domain.CollectionChanged, 16),
		ctx:     ctx,
		cancel:  cancel,
	}

	st.Subscribe(r.events)
	r.reload(domain.CollectionBookmarks)
	r.reload(domain.CollectionContinueWatching)
	r.reload(domain.CollectionDownloads)

	r.wg.Add(1)
	go r.run()
	return r
}

// run consumes store change events until Close.
func (r *Repository) run() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.events:
			r.reload(ev.Collection)
		case <-r.ctx.Done():
			return
		}
	}
}

// reload refreshes the mirrored slice for one collection and kicks off
// thumbnail warm-up for its records.
func (r *Repository) reload(col domain.Collection) {
	shows := r.loadCollection(col)

	r.mu.Lock()
	switch col {
	case domain.CollectionBookmarks:
		r.bookmarks = shows
	case domain.CollectionContinueWatching:
		r.continueWatching = shows
	case domain.CollectionDownloads:
		r.downloads = shows
	}
	r.mu.Unlock()

	r.warmThumbnails(shows)
}

func (r *Repository) loadCollection(col domain.Collection) []domain.SavedShow {
	switch col {
	case domain.CollectionBookmarks:
		return r.store.Bookmarks()
	case domain.CollectionContinueWatching:
		return r.store.ContinueWatching()
	default:
		return r.store.Downloads()
	}
}

// warmThumbnails pre-generates list-tier thumbnails in a tracked background
// task. Failures are absorbed; a missing thumbnail degrades to a placeholder
// at the UI layer.
func (r *Repository) warmThumbnails(shows []domain.SavedShow) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for _, rec := range shows {
			if r.ctx.Err() != nil {
				return
			}
			source := thumbnailSource(rec)
			if source == "" {
				continue
			}
			if _, err := r.thumbs.Fetch(r.ctx, source, thumb.TierList); err != nil {
				r.logger.Debug("thumbnail warm-up failed", "catalogID", rec.CatalogID, "error", err)
			}
		}
	}()
}

// thumbnailSource picks the cheapest usable source for a record's thumbnail:
// the completed local file when present, otherwise a stream URL.
func thumbnailSource(rec domain.SavedShow) string {
	if rec.HasLocalVideo() {
		return rec.LocalVideoPath
	}
	for _, q := range []domain.Quality{domain.QualityMedium, domain.QualityLow, domain.QualityHigh} {
		if url, ok := rec.Show.StreamURL(q); ok {
			return url
		}
	}
	return ""
}

// === Observable state ===

func (r *Repository) Bookmarks() []domain.SavedShow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SavedShow(nil), r.bookmarks...)
}

func (r *Repository) ContinueWatching() []domain.SavedShow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SavedShow(nil), r.continueWatching...)
}

func (r *Repository) Downloads() []domain.SavedShow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SavedShow(nil), r.downloads...)
}

// === Intents ===

// ToggleBookmark adds or removes a bookmark. Returns true when added.
func (r *Repository) ToggleBookmark(show domain.Show) bool {
	return r.store.ToggleBookmark(show)
}

// IsBookmarked reports whether a bookmark exists for the catalog ID.
func (r *Repository) IsBookmarked(catalogID string) bool {
	return r.store.IsBookmarked(catalogID)
}

// SavePlaybackPosition records the resume point for a show.
func (r *Repository) SavePlaybackPosition(show domain.Show, position, duration int64) {
	r.store.SavePlaybackPosition(show, position, duration)
}

// RemoveContinueWatching drops a show from the continue-watching list.
func (r *Repository) RemoveContinueWatching(catalogID string) {
	r.store.RemoveContinueWatching(catalogID)
}

// StartDownload queues a background download for the show at the quality.
func (r *Repository) StartDownload(show domain.Show, quality domain.Quality) error {
	return r.manager.Start(show, quality)
}

// CancelDownload aborts an in-flight download and resets its record.
func (r *Repository) CancelDownload(catalogID string) {
	r.manager.Cancel(catalogID)
}

// DeleteDownload removes a download record and its local files.
func (r *Repository) DeleteDownload(catalogID string) {
	r.manager.Delete(catalogID)
}

// DeleteAllDownloads removes every download record and local file.
func (r *Repository) DeleteAllDownloads() {
	r.manager.DeleteAll()
}

// Thumbnail fetches a thumbnail for immediate display. Unlike background
// warm-up, errors propagate so the caller can present a placeholder.
func (r *Repository) Thumbnail(ctx context.Context, source string, tier thumb.Tier) (image.Image, error) {
	return r.thumbs.Fetch(ctx, source, tier)
}

// ClearThumbnails empties both thumbnail cache tiers.
func (r *Repository) ClearThumbnails() error {
	return r.thumbs.Clear()
}

// Close stops the event loop and waits for background tasks.
func (r *Repository) Close() {
	r.cancel()
	r.wg.Wait()
}
