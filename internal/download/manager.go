// Package download orchestrates per-show background downloads: network
// transfer with progress reporting, cancellation, completion side-effects and
// opportunistic thumbnail backfill.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"

	"github.com/tvleaf/tvleaf/internal/domain"
	"github.com/tvleaf/tvleaf/internal/store"
	"github.com/tvleaf/tvleaf/internal/thumb"
)

// DefaultProbeTimeout bounds the metadata probe for the expected size.
const DefaultProbeTimeout = 15 * time.Second

// Options configures a Manager.
type Options struct {
	Dir          string        // Destination directory for downloaded files
	ProbeTimeout time.Duration // Size probe timeout (0 = DefaultProbeTimeout)
}

// Manager runs at most one active transfer per catalog ID; distinct catalog
// IDs download concurrently. Failures inside the pipeline are absorbed and
// reflected only as record state, never returned to the caller.
type Manager struct {
	store        *store.MediaStore
	transport    domain.Transport
	thumbs       *thumb.Cache
	dir          string
	probeTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	active map[string]*task
	wg     sync.WaitGroup

	sweep singleflight.Group
}

// task tracks one in-flight transfer so it can be cancelled and awaited.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(st *store.MediaStore, transport domain.Transport, thumbs *thumb.Cache, opts Options, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	return &Manager{
		store:        st,
		transport:    transport,
		thumbs:       thumbs,
		dir:          opts.Dir,
		probeTimeout: probeTimeout,
		logger:       logger,
		active:       make(map[string]*task),
	}, nil
}

// VideoPath returns the destination file for a catalog ID.
func (m *Manager) VideoPath(catalogID string) string {
	return filepath.Join(m.dir, sanitizeID(catalogID)+".mp4")
}

// ThumbnailPath returns the thumbnail file for a catalog ID.
func (m *Manager) ThumbnailPath(catalogID string) string {
	return filepath.Join(m.dir, sanitizeID(catalogID)+".jpg")
}

// sanitizeID maps a catalog ID to a safe file name component.
func sanitizeID(catalogID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, catalogID)
}

// Start queues a download record and begins the transfer in the background.
// A download already in flight for the same catalog ID is superseded: the
// previous transfer is cancelled and its partial state discarded first.
// Control returns as soon as the record is queued.
func (m *Manager) Start(show domain.Show, quality domain.Quality) error {
	// Restarting always discards the previous attempt first: the record's
	// local paths are cleared below, so the files must go with them.
	m.cancelTask(show.CatalogID)
	m.removeLocalFiles(show.CatalogID)

	url, ok := show.StreamURL(quality)
	if !ok {
		// No network call is attempted; the record stays visible as failed
		// so the user can retry another quality.
		m.store.UpsertQueuedDownload(show, quality)
		m.store.MarkDownloadFailed(show.CatalogID)
		return fmt.Errorf("%w: %s", domain.ErrNoStreamURL, quality)
	}

	rec := m.store.UpsertQueuedDownload(show, quality)

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.active[show.CatalogID] = t
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx, t, rec, url)
	return nil
}

// run performs a single download attempt.
func (m *Manager) run(ctx context.Context, t *task, rec domain.SavedShow, url string) {
	catalogID := rec.CatalogID
	defer m.wg.Done()
	defer close(t.done)
	defer m.clearTask(catalogID, t)

	expected := m.resolveExpectedSize(ctx, rec, url)
	dest := m.VideoPath(catalogID)

	written, err := m.transport.Download(ctx, url, dest, expected, func(downloaded, total int64) {
		// Trust a freshly reported total first, then the cached hint.
		if total <= 0 {
			total = expected
		}
		var fraction float64
		if total > 0 {
			fraction = float64(downloaded) / float64(total)
		}
		m.store.ApplyDownloadProgress(catalogID, fraction, downloaded, total)
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			// Cancelled: the canceller resets the record and removes files.
			m.logger.Debug("download cancelled", "catalogID", catalogID)
			return
		}
		m.logger.Warn("download transfer failed", "catalogID", catalogID, "error", err)
		m.store.MarkDownloadFailed(catalogID)
		return
	}

	// Read back the finished file; actual size is ground truth.
	size := written
	if info, statErr := os.Stat(dest); statErr == nil {
		size = info.Size()
	}

	thumbPath := m.ThumbnailPath(catalogID)
	if err := m.captureThumbnail(ctx, rec.Show, dest, thumbPath); err != nil {
		// Absence of a thumbnail is a degraded-but-valid state; the sweep
		// backfills it later.
		m.logger.Warn("thumbnail capture failed", "catalogID", catalogID, "error", err)
		thumbPath = ""
	}

	if ctx.Err() != nil {
		// Lost a race against cancel after the transfer finished; drop the
		// completion as a no-op.
		return
	}
	m.store.MarkDownloadCompleted(catalogID, dest, thumbPath, size)
}

// resolveExpectedSize prefers a size hint already known from the snapshot and
// otherwise issues a bounded metadata probe. Absence of a size is not fatal.
func (m *Manager) resolveExpectedSize(ctx context.Context, rec domain.SavedShow, url string) int64 {
	if rec.Show.SizeHint > 0 {
		return rec.Show.SizeHint
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	size, err := m.transport.Probe(probeCtx, url)
	if err != nil {
		m.logger.Debug("size probe failed", "catalogID", rec.CatalogID, "error", err)
		return 0
	}
	return size
}

// captureThumbnail tries the local video file first, then the remote
// thumbnail URL, keeping whichever succeeds first.
func (m *Manager) captureThumbnail(ctx context.Context, show domain.Show, videoPath, dest string) error {
	img, err := m.thumbs.Fetch(ctx, videoPath, thumb.TierDetail)
	if err != nil && show.ThumbnailURL != "" {
		img, err = m.transport.FetchImage(ctx, show.ThumbnailURL)
	}
	if err != nil {
		return err
	}
	return imaging.Save(img, dest, imaging.JPEGQuality(85))
}

// Cancel aborts any in-flight transfer for the catalog ID, resets the record
// to its resting state and removes partial local files. No-op on the transfer
// side when nothing is in flight.
func (m *Manager) Cancel(catalogID string) {
	m.cancelTask(catalogID)
	m.removeLocalFiles(catalogID)
	m.store.ResetDownload(catalogID)
}

// Delete cancels any in-flight transfer, deletes local files and removes the
// record entirely.
func (m *Manager) Delete(catalogID string) {
	m.cancelTask(catalogID)
	rec, ok := m.store.RemoveDownload(catalogID)
	if ok {
		m.removeRecordFiles(rec)
	}
	m.removeLocalFiles(catalogID)
}

// DeleteAll cancels every in-flight transfer, deletes every referenced local
// file and clears the collection.
func (m *Manager) DeleteAll() {
	m.mu.Lock()
	tasks := make(map[string]*task, len(m.active))
	for id, t := range m.active {
		tasks[id] = t
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		<-t.done
	}

	for _, rec := range m.store.ClearDownloads() {
		m.removeRecordFiles(rec)
		m.removeLocalFiles(rec.CatalogID)
	}
}

// SweepThumbnails backfills thumbnails for completed downloads that lack one,
// from the already-downloaded video file. Overlapping invocations coalesce
// into a single sweep.
func (m *Manager) SweepThumbnails(ctx context.Context) error {
	_, err, _ := m.sweep.Do("sweep", func() (interface{}, error) {
		for _, rec := range m.store.Downloads() {
			if rec.DownloadStatus != domain.DownloadStatusCompleted ||
				rec.LocalThumbnailPath != "" || rec.LocalVideoPath == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			dest := m.ThumbnailPath(rec.CatalogID)
			if err := m.captureThumbnail(ctx, rec.Show, rec.LocalVideoPath, dest); err != nil {
				m.logger.Debug("thumbnail backfill failed", "catalogID", rec.CatalogID, "error", err)
				continue
			}
			m.store.SetDownloadThumbnail(rec.CatalogID, dest)
			m.logger.Info("thumbnail backfilled", "catalogID", rec.CatalogID)
		}
		return nil, nil
	})
	return err
}

// Active reports whether a transfer is currently in flight for the catalog ID.
func (m *Manager) Active(catalogID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[catalogID]
	return ok
}

// Close cancels all in-flight transfers and waits for them to settle.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, t := range m.active {
		t.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// cancelTask aborts and awaits the in-flight transfer for an ID, if any.
func (m *Manager) cancelTask(catalogID string) {
	m.mu.Lock()
	t, ok := m.active[catalogID]
	if ok {
		delete(m.active, catalogID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// clearTask removes the task entry when its run loop exits, unless it was
// already superseded by a newer task for the same ID.
func (m *Manager) clearTask(catalogID string, t *task) {
	m.mu.Lock()
	if current, ok := m.active[catalogID]; ok && current == t {
		delete(m.active, catalogID)
	}
	m.mu.Unlock()
}

// removeLocalFiles deletes the canonical video and thumbnail files for an ID.
// Best-effort: a failed delete is logged and does not abort the operation.
func (m *Manager) removeLocalFiles(catalogID string) {
	for _, path := range []string{m.VideoPath(catalogID), m.ThumbnailPath(catalogID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove local file", "path", path, "error", err)
		}
	}
}

// removeRecordFiles deletes the files a record points at, which may differ
// from the canonical paths after a directory move.
func (m *Manager) removeRecordFiles(rec domain.SavedShow) {
	for _, path := range []string{rec.LocalVideoPath, rec.LocalThumbnailPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove local file", "path", path, "error", err)
		}
	}
}
