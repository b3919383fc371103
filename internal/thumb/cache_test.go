package thumb_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvleaf/tvleaf/internal/adapter"
	"github.com/tvleaf/tvleaf/internal/domain"
	"github.com/tvleaf/tvleaf/internal/thumb"
)

type stubExtractor struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{} // when non-nil, ExtractFrame blocks until closed
}

func (s *stubExtractor) ExtractFrame(ctx context.Context, source string, at time.Duration) (image.Image, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	err := s.err
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return imaging.New(640, 360, color.NRGBA{R: 40, G: 80, B: 120, A: 255}), nil
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestCache(t *testing.T, extractor domain.FrameExtractor, opts thumb.Options) *thumb.Cache {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = "/thumbs"
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewMemMapFs()
	}
	c, err := thumb.New(extractor, opts, adapter.NullLogger())
	require.NoError(t, err)
	return c
}

func TestFetch_GeneratesAndResizesToTier(t *testing.T) {
	ext := &stubExtractor{}
	c := newTestCache(t, ext, thumb.Options{})

	img, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 180, img.Bounds().Dy())
	assert.Equal(t, 1, ext.callCount())
}

func TestFetch_TiersAreIndependentEntries(t *testing.T) {
	ext := &stubExtractor{}
	c := newTestCache(t, ext, thumb.Options{})

	_, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	img, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierDetail)
	require.NoError(t, err)

	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 2, ext.callCount())
}

func TestFetch_ServedFromMemoryTier(t *testing.T) {
	ext := &stubExtractor{}
	fs := afero.NewMemMapFs()
	c := newTestCache(t, ext, thumb.Options{Fs: fs})

	_, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	c.Wait()

	// Wipe the disk tier; a memory hit must not notice
	entries, err := afero.ReadDir(fs, "/thumbs")
	require.NoError(t, err)
	for _, entry := range entries {
		require.NoError(t, fs.Remove(filepath.Join("/thumbs", entry.Name())))
	}

	_, err = c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	assert.Equal(t, 1, ext.callCount())
}

func TestFetch_ServedFromDiskTier(t *testing.T) {
	ext := &stubExtractor{}
	// MemoryBudget 1 rejects every entry, forcing the disk path
	c := newTestCache(t, ext, thumb.Options{MemoryBudget: 1})

	_, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)

	assert.Equal(t, 1, ext.callCount())
	assert.Positive(t, c.DiskUsage())
}

func TestFetch_CoalescesConcurrentGeneration(t *testing.T) {
	release := make(chan struct{})
	ext := &stubExtractor{block: release}
	c := newTestCache(t, ext, thumb.Options{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
			assert.NoError(t, err)
		}()
	}

	// Let all fetchers reach the in-flight wait before releasing the frame
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, ext.callCount())
}

func TestFetch_GenerationSurvivesCallerCancel(t *testing.T) {
	release := make(chan struct{})
	ext := &stubExtractor{block: release}
	c := newTestCache(t, ext, thumb.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, "local/video.mp4", thumb.TierList)
		done <- err
	}()

	// Cancel the requester while the frame extraction is in flight
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(release)

	require.NoError(t, <-done)

	// The completed generation is cached for later requesters
	img, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 1, ext.callCount())
}

func TestFetch_FailureIsNotCached(t *testing.T) {
	ext := &stubExtractor{err: errors.New("no such stream")}
	c := newTestCache(t, ext, thumb.Options{})

	_, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoFrame)
	failedCalls := ext.callCount()
	assert.Positive(t, failedCalls)

	ext.mu.Lock()
	ext.err = nil
	ext.mu.Unlock()

	_, err = c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	assert.Greater(t, ext.callCount(), failedCalls)
}

func TestDiskTier_EvictsLeastRecentlyUsed(t *testing.T) {
	// Measure the size of one cached entry first
	probe := newTestCache(t, &stubExtractor{}, thumb.Options{MemoryBudget: 1})
	_, err := probe.Fetch(context.Background(), "probe", thumb.TierList)
	require.NoError(t, err)
	entrySize := probe.DiskUsage()
	require.Positive(t, entrySize)

	ext := &stubExtractor{}
	c := newTestCache(t, ext, thumb.Options{
		MemoryBudget: 1,
		DiskBudget:   entrySize*2 + entrySize/2, // room for two entries
	})

	ctx := context.Background()
	for _, source := range []string{"a", "b", "c"} {
		_, err := c.Fetch(ctx, source, thumb.TierList)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // distinct mod times
	}

	assert.LessOrEqual(t, c.DiskUsage(), entrySize*2+entrySize/2)

	// "a" was oldest and evicted: fetching it regenerates
	before := ext.callCount()
	_, err = c.Fetch(ctx, "a", thumb.TierList)
	require.NoError(t, err)
	assert.Greater(t, ext.callCount(), before)
}

func TestDiskTier_ReadRefreshesEvictionOrder(t *testing.T) {
	probe := newTestCache(t, &stubExtractor{}, thumb.Options{MemoryBudget: 1})
	_, err := probe.Fetch(context.Background(), "probe", thumb.TierList)
	require.NoError(t, err)
	entrySize := probe.DiskUsage()
	require.Positive(t, entrySize)

	ext := &stubExtractor{}
	c := newTestCache(t, ext, thumb.Options{
		MemoryBudget: 1,
		DiskBudget:   entrySize*2 + entrySize/2,
	})

	ctx := context.Background()
	_, err = c.Fetch(ctx, "a", thumb.TierList)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.Fetch(ctx, "b", thumb.TierList)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Touch "a" so "b" becomes the eviction candidate
	_, err = c.Fetch(ctx, "a", thumb.TierList)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = c.Fetch(ctx, "c", thumb.TierList)
	require.NoError(t, err)

	// "a" survives on disk, "b" needs regeneration
	before := ext.callCount()
	_, err = c.Fetch(ctx, "a", thumb.TierList)
	require.NoError(t, err)
	assert.Equal(t, before, ext.callCount())

	_, err = c.Fetch(ctx, "b", thumb.TierList)
	require.NoError(t, err)
	assert.Greater(t, ext.callCount(), before)
}

func TestClear_EmptiesBothTiers(t *testing.T) {
	ext := &stubExtractor{}
	c := newTestCache(t, ext, thumb.Options{})

	_, err := c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	c.Wait()

	require.NoError(t, c.Clear())
	assert.Zero(t, c.DiskUsage())

	_, err = c.Fetch(context.Background(), "local/video.mp4", thumb.TierList)
	require.NoError(t, err)
	assert.Equal(t, 2, ext.callCount())
}

func TestKey_NormalizesSource(t *testing.T) {
	assert.Equal(t,
		thumb.Key("https://example.org/v.mp4", thumb.TierList),
		thumb.Key("  https://example.org/v.mp4/ ", thumb.TierList),
	)
	assert.NotEqual(t,
		thumb.Key("https://example.org/v.mp4", thumb.TierList),
		thumb.Key("https://example.org/v.mp4", thumb.TierDetail),
	)
}
