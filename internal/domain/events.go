package domain

// Collection identifies one of the three persisted record sets.
type Collection int

const (
	CollectionBookmarks Collection = iota
	CollectionContinueWatching
	CollectionDownloads
)

// String returns a human-readable representation of the collection
func (c Collection) String() string {
	switch c {
	case CollectionBookmarks:
		return "bookmarks"
	case CollectionContinueWatching:
		return "continue-watching"
	case CollectionDownloads:
		return "downloads"
	default:
		return "unknown"
	}
}

// CollectionChanged announces that a persisted collection was rewritten.
// Observers reload the full collection on receipt rather than applying deltas.
type CollectionChanged struct {
	Collection Collection
}
