package store_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/tvleaf/tvleaf/internal/adapter"
	"github.com/tvleaf/tvleaf/internal/domain"
	"github.com/tvleaf/tvleaf/internal/store"
)

func newTestStore(t *testing.T) *store.MediaStore {
	t.Helper()
	s, err := store.NewMediaStore(t.TempDir(), adapter.NullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testShow(catalogID string) domain.Show {
	return domain.Show{
		CatalogID:   catalogID,
		Title:       "Show " + catalogID,
		Topic:       "Topic",
		Channel:     "ARD",
		Description: "A test broadcast",
		Duration:    30 * time.Minute,
		AiredAt:     time.Date(2026, 3, 1, 20, 15, 0, 0, time.UTC),
		StreamURLs: map[domain.Quality]string{
			domain.QualityMedium: "https://example.org/" + catalogID + ".mp4",
		},
		ThumbnailURL: "https://example.org/" + catalogID + ".jpg",
	}
}

func TestToggleBookmark(t *testing.T) {
	s := newTestStore(t)

	added := s.ToggleBookmark(testShow("1"))
	assert.True(t, added)

	bookmarks := s.Bookmarks()
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "1", bookmarks[0].CatalogID)
	assert.True(t, bookmarks[0].Bookmarked)
	assert.False(t, bookmarks[0].BookmarkedAt.IsZero())
	assert.NotEmpty(t, bookmarks[0].RecordID)
	assert.True(t, s.IsBookmarked("1"))
}

func TestToggleBookmark_TwoTogglesUndo(t *testing.T) {
	s := newTestStore(t)

	added := s.ToggleBookmark(testShow("1"))
	assert.True(t, added)
	added = s.ToggleBookmark(testShow("1"))
	assert.False(t, added)

	assert.Empty(t, s.Bookmarks())
	assert.False(t, s.IsBookmarked("1"))
}

func TestSavePlaybackPosition_Upsert(t *testing.T) {
	s := newTestStore(t)

	s.SavePlaybackPosition(testShow("1"), 120, 1800)
	s.SavePlaybackPosition(testShow("1"), 300, 1800)

	entries := s.ContinueWatching()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(300), entries[0].PlaybackPosition)
	assert.Equal(t, int64(1800), entries[0].VideoDuration)
	assert.False(t, entries[0].LastPlayedAt.IsZero())
}

func TestSavePlaybackPosition_PropagatesToOtherCollections(t *testing.T) {
	s := newTestStore(t)
	show := testShow("1")

	s.ToggleBookmark(show)
	s.UpsertQueuedDownload(show, domain.QualityMedium)

	s.SavePlaybackPosition(show, 240, 1800)

	require.Len(t, s.ContinueWatching(), 1)

	bookmarks := s.Bookmarks()
	require.Len(t, bookmarks, 1)
	assert.Equal(t, int64(240), bookmarks[0].PlaybackPosition)
	assert.Equal(t, int64(1800), bookmarks[0].VideoDuration)

	downloads := s.Downloads()
	require.Len(t, downloads, 1)
	assert.Equal(t, int64(240), downloads[0].PlaybackPosition)
}

func TestSavePlaybackPosition_DoesNotCreateRecordsElsewhere(t *testing.T) {
	s := newTestStore(t)

	s.SavePlaybackPosition(testShow("1"), 60, 1800)

	assert.Empty(t, s.Bookmarks())
	assert.Empty(t, s.Downloads())
	assert.Len(t, s.ContinueWatching(), 1)
}

func TestContinueWatching_BoundedToMostRecent(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 60; i++ {
		s.SavePlaybackPosition(testShow(fmt.Sprintf("show-%02d", i)), 10, 1800)
	}

	entries := s.ContinueWatching()
	require.Len(t, entries, 50)

	// The ten oldest entries were evicted
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.CatalogID] = true
	}
	for i := 0; i < 10; i++ {
		assert.False(t, seen[fmt.Sprintf("show-%02d", i)], "expected show-%02d to be evicted", i)
	}
	for i := 10; i < 60; i++ {
		assert.True(t, seen[fmt.Sprintf("show-%02d", i)], "expected show-%02d to be retained", i)
	}
}

func TestUpsertQueuedDownload_NoDuplicates(t *testing.T) {
	s := newTestStore(t)

	first := s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)
	second := s.UpsertQueuedDownload(testShow("1"), domain.QualityHigh)

	downloads := s.Downloads()
	require.Len(t, downloads, 1)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.Equal(t, domain.QualityHigh, downloads[0].DownloadQuality)
	assert.Equal(t, domain.DownloadStatusQueued, downloads[0].DownloadStatus)
	assert.Zero(t, downloads[0].DownloadProgress)
}

func TestApplyDownloadProgress_ByteFractionDominates(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)

	// 500/1000 bytes but only 0.3 reported: the byte fraction wins
	s.ApplyDownloadProgress("1", 0.3, 500, 1000)

	rec, ok := s.Download("1")
	require.True(t, ok)
	assert.Equal(t, 50, rec.DownloadProgress)
	assert.Equal(t, domain.DownloadStatusDownloading, rec.DownloadStatus)
	assert.Equal(t, int64(500), rec.DownloadedBytes)
	assert.Equal(t, int64(1000), rec.ExpectedBytes)
}

func TestApplyDownloadProgress_MonotonicWithinAttempt(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)

	s.ApplyDownloadProgress("1", 0.5, 0, 0)
	s.ApplyDownloadProgress("1", 0.2, 0, 0)

	rec, _ := s.Download("1")
	assert.Equal(t, 50, rec.DownloadProgress)
}

func TestApplyDownloadProgress_UsesCachedExpectedBytes(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)

	s.ApplyDownloadProgress("1", 0, 100, 1000)
	// Later report omits the total; the cached hint still applies
	s.ApplyDownloadProgress("1", 0, 800, 0)

	rec, _ := s.Download("1")
	assert.Equal(t, 80, rec.DownloadProgress)
	assert.Equal(t, int64(1000), rec.ExpectedBytes)
}

func TestApplyDownloadProgress_ClampsFraction(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)

	s.ApplyDownloadProgress("1", 3.5, 0, 0)

	rec, _ := s.Download("1")
	assert.Equal(t, 100, rec.DownloadProgress)
}

func TestMarkDownloadCompleted(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)

	s.MarkDownloadCompleted("1", "/videos/1.mp4", "/videos/1.jpg", 4096)

	rec, _ := s.Download("1")
	assert.Equal(t, domain.DownloadStatusCompleted, rec.DownloadStatus)
	assert.Equal(t, 100, rec.DownloadProgress)
	assert.Equal(t, int64(4096), rec.DownloadedBytes)
	assert.Equal(t, int64(4096), rec.ExpectedBytes)
	assert.Equal(t, "/videos/1.mp4", rec.LocalVideoPath)
	assert.True(t, rec.HasLocalVideo())
}

func TestMarkDownloadFailed_KeepsRecordForRetry(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)
	s.ApplyDownloadProgress("1", 0.5, 500, 1000)

	s.MarkDownloadFailed("1")

	rec, ok := s.Download("1")
	require.True(t, ok)
	assert.Equal(t, domain.DownloadStatusFailed, rec.DownloadStatus)
	assert.Zero(t, rec.DownloadProgress)
	assert.Zero(t, rec.DownloadedBytes)
	assert.Equal(t, "Show 1", rec.Show.Title)
}

func TestResetDownload(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)
	s.ApplyDownloadProgress("1", 0.5, 500, 1000)

	s.ResetDownload("1")

	rec, ok := s.Download("1")
	require.True(t, ok)
	assert.Equal(t, domain.DownloadStatusNone, rec.DownloadStatus)
	assert.Zero(t, rec.DownloadProgress)
	assert.Zero(t, rec.DownloadedBytes)
	assert.Zero(t, rec.ExpectedBytes)
	assert.Empty(t, rec.LocalVideoPath)
}

func TestRemoveDownload_ReturnsRecord(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)
	s.MarkDownloadCompleted("1", "/videos/1.mp4", "", 10)

	rec, ok := s.RemoveDownload("1")
	require.True(t, ok)
	assert.Equal(t, "/videos/1.mp4", rec.LocalVideoPath)
	assert.Empty(t, s.Downloads())

	_, ok = s.RemoveDownload("1")
	assert.False(t, ok)
}

func TestClearDownloads(t *testing.T) {
	s := newTestStore(t)
	s.UpsertQueuedDownload(testShow("1"), domain.QualityMedium)
	s.UpsertQueuedDownload(testShow("2"), domain.QualityMedium)

	removed := s.ClearDownloads()
	assert.Len(t, removed, 2)
	assert.Empty(t, s.Downloads())
}

func TestBookmarkRemovalLeavesOtherCollectionsAlone(t *testing.T) {
	s := newTestStore(t)
	show := testShow("1")

	s.ToggleBookmark(show)
	s.SavePlaybackPosition(show, 60, 1800)
	s.UpsertQueuedDownload(show, domain.QualityMedium)

	s.ToggleBookmark(show) // removes the bookmark

	assert.Empty(t, s.Bookmarks())
	assert.Len(t, s.ContinueWatching(), 1)
	assert.Len(t, s.Downloads(), 1)
}

func TestPersistenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := store.NewMediaStore(dir, adapter.NullLogger())
	require.NoError(t, err)
	s.ToggleBookmark(testShow("1"))
	require.NoError(t, s.Close())

	reopened, err := store.NewMediaStore(dir, adapter.NullLogger())
	require.NoError(t, err)
	defer reopened.Close()

	bookmarks := reopened.Bookmarks()
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "1", bookmarks[0].CatalogID)
}

func TestCorruptCollectionDecodesToEmpty(t *testing.T) {
	dir := t.TempDir()

	s, err := store.NewMediaStore(dir, adapter.NullLogger())
	require.NoError(t, err)
	s.ToggleBookmark(testShow("1"))
	require.NoError(t, s.Close())

	// Corrupt the persisted slot directly
	db, err := bolt.Open(dir+"/tvleaf.db", 0600, nil)
	require.NoError(t, err)
	err = db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("bookmarks")).Put([]byte("list"), []byte("{not json"))
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := store.NewMediaStore(dir, adapter.NullLogger())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Empty(t, reopened.Bookmarks())
}

func TestSubscribe_NotifiesOnMutation(t *testing.T) {
	s := newTestStore(t)

	ch := make(chan domain.CollectionChanged, 4)
	s.Subscribe(ch)

	s.ToggleBookmark(testShow("1"))

	select {
	case ev := <-ch:
		assert.Equal(t, domain.CollectionBookmarks, ev.Collection)
	case <-time.After(time.Second):
		t.Fatal("expected a collection-changed event")
	}
}

func TestSubscribe_FullChannelDoesNotBlock(t *testing.T) {
	s := newTestStore(t)

	ch := make(chan domain.CollectionChanged) // unbuffered, never drained
	s.Subscribe(ch)

	done := make(chan struct{})
	go func() {
		s.ToggleBookmark(testShow("1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mutation blocked on a full subscriber channel")
	}
}
