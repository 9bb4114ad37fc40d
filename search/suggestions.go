package search

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/semsearch/core"
)

// MaxSuggestions caps the suggestions attached to a response.
const MaxSuggestions = 3

const (
	suggestLoosenFilters = "Try removing some filters to broaden your search"
	suggestCategory      = "Try searching within a specific category"
)

// suggestions proposes a spelling fix, then for empty results a filter
// hint and a category hint.
func (s *Service) suggestions(normalized string, filters *core.SearchFilters, total int, pool []*core.Record) []string {
	out := []string{}

	if len(s.processor.Corrections(normalized)) > 0 {
		if corrected := s.processor.SpellCorrect(normalized); corrected != normalized {
			out = append(out, fmt.Sprintf("Did you mean %q?", corrected))
		}
	}

	if total == 0 {
		if !filters.IsEmpty() {
			out = append(out, suggestLoosenFilters)
		}
		if filters == nil || len(filters.Categories) == 0 {
			if cats := topCategories(pool, 3); len(cats) > 0 {
				out = append(out, "Try searching within a category such as "+strings.Join(cats, ", "))
			} else {
				out = append(out, suggestCategory)
			}
		}
	}

	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

// topCategories returns up to n of the most common categories in pool.
func topCategories(pool []*core.Record, n int) []string {
	counts := make(map[string]int)
	for _, r := range pool {
		if c := r.String(core.FieldCategory); c != "" {
			counts[c]++
		}
	}
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	slices.SortFunc(cats, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})
	if len(cats) > n {
		cats = cats[:n]
	}
	return cats
}
