// Package thumb implements the two-tier thumbnail cache: a cost-bounded
// in-memory tier over a byte-budgeted on-disk tier, with coalesced generation
// through an external frame extractor.
package thumb

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/tvleaf/tvleaf/internal/domain"
)

// Tier selects the output size bound for a generated thumbnail.
type Tier int

const (
	// TierList is the small tier for list thumbnails
	TierList Tier = iota
	// TierDetail is the larger tier for detail views
	TierDetail
)

// String returns the tier's cache-key prefix
func (t Tier) String() string {
	if t == TierDetail {
		return "detail"
	}
	return "list"
}

// bounds returns the maximum output dimensions for the tier
func (t Tier) bounds() (w, h int) {
	if t == TierDetail {
		return 960, 540
	}
	return 320, 180
}

// Candidate frame timestamps, tried in order until one decodes.
var frameCandidates = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	5 * time.Second,
	0,
}

const (
	DefaultDiskBudget   = 200 << 20 // 200MB
	DefaultMemoryBudget = 50 << 20  // 50MB
)

// Options configures a Cache.
type Options struct {
	Dir          string   // Disk tier directory
	DiskBudget   int64    // Disk tier byte budget (0 = DefaultDiskBudget)
	MemoryBudget int64    // Memory tier cost budget (0 = DefaultMemoryBudget)
	Fs           afero.Fs // Filesystem backend (nil = OS filesystem)
}

// Cache maps a (source, tier) pair to a decoded image, generating lazily and
// caching at both tiers. Disk-tier state is mutex-guarded so at most one
// cache-mutating operation executes at a time; the tiers evict independently,
// since disk can always repopulate memory and generation can repopulate disk.
type Cache struct {
	extractor  domain.FrameExtractor
	fs         afero.Fs
	dir        string
	diskBudget int64
	logger     *slog.Logger

	mem   *ristretto.Cache
	group singleflight.Group

	mu sync.Mutex // Serializes disk-tier reads, writes and pruning
}

func New(extractor domain.FrameExtractor, opts Options, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	diskBudget := opts.DiskBudget
	if diskBudget <= 0 {
		diskBudget = DefaultDiskBudget
	}
	memBudget := opts.MemoryBudget
	if memBudget <= 0 {
		memBudget = DefaultMemoryBudget
	}

	if err := fs.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create thumbnail directory: %w", err)
	}

	mem, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     memBudget,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory tier: %w", err)
	}

	return &Cache{
		extractor:  extractor,
		fs:         fs,
		dir:        opts.Dir,
		diskBudget: diskBudget,
		logger:     logger,
		mem:        mem,
	}, nil
}

// Key computes the cache key for a source and tier. The source is normalized
// so equivalent references share an entry.
func Key(source string, tier Tier) string {
	return tier.String() + "|" + normalizeSource(source)
}

func normalizeSource(source string) string {
	return strings.TrimRight(strings.TrimSpace(source), "/")
}

// fileName is the disk-tier file for a key: a one-way hash, so arbitrary
// source strings map to safe file names.
func (c *Cache) fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".jpg")
}

// Fetch returns the thumbnail for (source, tier), consulting the memory tier,
// then the disk tier, then coalescing with any in-flight generation for the
// same key before starting one. Failures are propagated to every awaiter and
// never cached.
func (c *Cache) Fetch(ctx context.Context, source string, tier Tier) (image.Image, error) {
	key := Key(source, tier)

	if img, ok := c.memGet(key); ok {
		return img, nil
	}

	if img, ok := c.diskGet(key); ok {
		c.memSet(key, img)
		return img, nil
	}

	// Generation is detached from the requesting context: once started it
	// runs to completion, so a cancelled first awaiter cannot fail the
	// coalesced awaiters piggybacking on the same key.
	genCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		img, err := c.generate(genCtx, source, tier)
		if err != nil {
			return nil, err
		}
		c.diskPut(key, img)
		c.memSet(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// generate extracts a representative frame, trying candidate timestamps in
// order, and bounds the result to the tier's output size.
func (c *Cache) generate(ctx context.Context, source string, tier Tier) (image.Image, error) {
	var lastErr error
	for _, at := range frameCandidates {
		frame, err := c.extractor.ExtractFrame(ctx, source, at)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		w, h := tier.bounds()
		return imaging.Fit(frame, w, h, imaging.Lanczos), nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoFrame, lastErr)
	}
	return nil, domain.ErrNoFrame
}

// Clear empties both tiers unconditionally.
func (c *Cache) Clear() error {
	c.mem.Clear()

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := c.fs.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			c.logger.Warn("failed to remove cached thumbnail", "file", entry.Name(), "error", err)
		}
	}
	return nil
}

// === Memory tier ===

func (c *Cache) memGet(key string) (image.Image, bool) {
	v, ok := c.mem.Get(key)
	if !ok {
		return nil, false
	}
	img, ok := v.(image.Image)
	return img, ok
}

func (c *Cache) memSet(key string, img image.Image) {
	c.mem.Set(key, img, imageCost(img))
}

// imageCost estimates the decoded byte size of an image for cost accounting.
func imageCost(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// === Disk tier ===

// diskGet reads and decodes a cached file, refreshing its access time so it
// is not the next eviction candidate.
func (c *Cache) diskGet(key string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.fileName(key)
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, false
	}
	img, err := imaging.Decode(f)
	f.Close()
	if err != nil {
		// Undecodable file is treated as absent and removed
		c.fs.Remove(path)
		return nil, false
	}

	now := time.Now()
	if err := c.fs.Chtimes(path, now, now); err != nil {
		c.logger.Debug("failed to refresh thumbnail access time", "error", err)
	}
	return img, true
}

// diskPut encodes the image to the disk tier and prunes past the byte budget.
// Disk failures degrade to memory-only caching.
func (c *Cache) diskPut(key string, img image.Image) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		c.logger.Warn("failed to encode thumbnail", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.fileName(key)
	if err := afero.WriteFile(c.fs, path, buf.Bytes(), 0644); err != nil {
		c.logger.Warn("failed to write thumbnail", "error", err)
		return
	}
	now := time.Now()
	if err := c.fs.Chtimes(path, now, now); err != nil {
		c.logger.Debug("failed to set thumbnail access time", "error", err)
	}

	c.prune()
}

// prune deletes files in ascending last-access order until cumulative size is
// at or below the disk budget. Caller holds c.mu.
func (c *Cache) prune() {
	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return
	}

	var total int64
	files := entries[:0]
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		total += entry.Size()
		files = append(files, entry)
	}
	if total <= c.diskBudget {
		return
	}

	sort.Slice(files, func(a, b int) bool {
		return files[a].ModTime().Before(files[b].ModTime())
	})

	for _, entry := range files {
		if total <= c.diskBudget {
			break
		}
		path := filepath.Join(c.dir, entry.Name())
		if err := c.fs.Remove(path); err != nil {
			c.logger.Warn("failed to evict thumbnail", "file", entry.Name(), "error", err)
			continue
		}
		total -= entry.Size()
		c.logger.Debug("evicted thumbnail", "file", entry.Name(), "bytes", entry.Size())
	}
}

// DiskUsage returns the cumulative size of the disk tier in bytes.
func (c *Cache) DiskUsage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		if !entry.IsDir() {
			total += entry.Size()
		}
	}
	return total
}

// Wait blocks until pending memory-tier writes are applied. Intended for tests.
func (c *Cache) Wait() {
	c.mem.Wait()
}
