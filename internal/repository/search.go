package repository

import (
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/tvleaf/tvleaf/internal/domain"
)

// downloadIndex implements sahilm/fuzzy.Source over the mirrored downloads.
type downloadIndex struct {
	records []domain.SavedShow
	titles  []string // Pre-computed lowercase "title topic" strings
}

// String returns the lowercase searchable text at index i (implements fuzzy.Source)
func (idx *downloadIndex) String(i int) string { return idx.titles[i] }

// Len returns the number of records (implements fuzzy.Source)
func (idx *downloadIndex) Len() int { return len(idx.records) }

// SearchDownloads performs a fuzzy search over locally downloaded shows only.
// This is the offline degradation path: it needs no network call, so
// downloaded content stays searchable and playable without a connection.
func (r *Repository) SearchDownloads(query string) []domain.SavedShow {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	r.mu.RLock()
	idx := &downloadIndex{
		records: append([]domain.SavedShow(nil), r.downloads...),
		titles:  make([]string, len(r.downloads)),
	}
	for i, rec := range idx.records {
		idx.titles[i] = strings.ToLower(rec.Show.Title + " " + rec.Show.Topic)
	}
	r.mu.RUnlock()

	matches := fuzzy.FindFrom(query, idx)
	if len(matches) > 0 {
		results := make([]domain.SavedShow, len(matches))
		for i, m := range matches {
			results[i] = idx.records[m.Index]
		}
		return results
	}

	// Fall back to edit-distance ranking for typo-heavy queries
	ranked := lfuzzy.RankFindFold(query, idx.titles)
	sort.Slice(ranked, func(a, b int) bool {
		return ranked[a].Distance < ranked[b].Distance
	})
	results := make([]domain.SavedShow, 0, len(ranked))
	for _, m := range ranked {
		results = append(results, idx.records[m.OriginalIndex])
	}
	return results
}
