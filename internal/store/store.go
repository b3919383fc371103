package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tvleaf/tvleaf/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketBookmarks = []byte("bookmarks")
	bucketContinue  = []byte("continue")
	bucketDownloads = []byte("downloads")
)

// Each collection is stored as one JSON slice under a single key, so a
// collection rewrite is a single-slot atomic replacement.
const listKey = "list"

// continueWatchingLimit bounds the continue-watching collection to the
// most-recently-played entries.
const continueWatchingLimit = 50

// MediaStore is the single source of truth for the three persisted
// collections. All mutations are read-modify-write cycles serialized by opMu,
// so the collections are never read and written concurrently.
type MediaStore struct {
	db     *bolt.DB
	logger *slog.Logger

	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte

	opMu sync.Mutex // Serializes read-modify-write mutations

	subMu sync.Mutex
	subs  []chan<- domain.CollectionChanged
}

func NewMediaStore(dataDir string, logger *slog.Logger) (*MediaStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dataDir == "" {
		// Memory-only mode (no persistence)
		return &MediaStore{cache: make(map[string][]byte), logger: logger}, nil
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "tvleaf.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketBookmarks, bucketContinue, bucketDownloads} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &MediaStore{db: db, cache: make(map[string][]byte), logger: logger}, nil
}

func (s *MediaStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Subscribe registers a channel that receives collection-changed events.
// Publishing never blocks; a full channel drops the event.
func (s *MediaStore) Subscribe(ch chan<- domain.CollectionChanged) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, ch)
}

func (s *MediaStore) notify(col domain.Collection) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- domain.CollectionChanged{Collection: col}:
		default: // Non-blocking if channel full
		}
	}
}

// === Generic helpers ===

func (s *MediaStore) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	// Read from BoltDB
	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *MediaStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	// Update memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	// Write to BoltDB
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

// === Collection access ===

func bucketFor(col domain.Collection) []byte {
	switch col {
	case domain.CollectionBookmarks:
		return bucketBookmarks
	case domain.CollectionContinueWatching:
		return bucketContinue
	default:
		return bucketDownloads
	}
}

// load returns the persisted collection. A missing or undecodable slot
// yields an empty collection, never an error.
func (s *MediaStore) load(col domain.Collection) []domain.SavedShow {
	var shows []domain.SavedShow
	if !s.get(bucketFor(col), listKey, &shows) {
		s.logger.Debug("collection empty or unreadable", "collection", col.String())
		return nil
	}
	return shows
}

// save re-persists the full collection and notifies observers.
// Write failures are absorbed (best-effort persistence for cache/history data).
func (s *MediaStore) save(col domain.Collection, shows []domain.SavedShow) {
	if err := s.set(bucketFor(col), listKey, shows); err != nil {
		s.logger.Error("failed to persist collection", "collection", col.String(), "error", err)
	}
	s.notify(col)
}

func findByCatalogID(shows []domain.SavedShow, catalogID string) int {
	for i := range shows {
		if shows[i].CatalogID == catalogID {
			return i
		}
	}
	return -1
}

// === Reads ===

func (s *MediaStore) Bookmarks() []domain.SavedShow {
	return s.load(domain.CollectionBookmarks)
}

func (s *MediaStore) ContinueWatching() []domain.SavedShow {
	return s.load(domain.CollectionContinueWatching)
}

func (s *MediaStore) Downloads() []domain.SavedShow {
	return s.load(domain.CollectionDownloads)
}

// Download returns the download record for a catalog ID.
func (s *MediaStore) Download(catalogID string) (domain.SavedShow, bool) {
	shows := s.load(domain.CollectionDownloads)
	if i := findByCatalogID(shows, catalogID); i >= 0 {
		return shows[i], true
	}
	return domain.SavedShow{}, false
}

// IsBookmarked reports whether a bookmark exists for the catalog ID.
func (s *MediaStore) IsBookmarked(catalogID string) bool {
	return findByCatalogID(s.load(domain.CollectionBookmarks), catalogID) >= 0
}
