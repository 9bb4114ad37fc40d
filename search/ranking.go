package search

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/poiesic/semsearch/core"
)

// daysPerYear is the horizon over which the recency boost decays to zero.
const daysPerYear = 365.0

// applyFilters drops candidates failing any hard filter. Filters combine
// with AND; values within one filter match if any is present.
func applyFilters(candidates map[string]*candidate, filters *core.SearchFilters) []*candidate {
	kept := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if passesHard(c.record, filters) {
			kept = append(kept, c)
		}
	}
	return kept
}

func passesHard(r *core.Record, f *core.SearchFilters) bool {
	if f == nil {
		return true
	}
	if f.PriceRange != nil {
		price, ok := r.Float(core.FieldPrice)
		if !ok {
			return false
		}
		if f.PriceRange.Min != nil && price < *f.PriceRange.Min {
			return false
		}
		if f.PriceRange.Max != nil && price > *f.PriceRange.Max {
			return false
		}
	}
	lists := []struct {
		field string
		want  []string
	}{
		{core.FieldIndustries, f.Industries},
		{core.FieldTechnologies, f.Technologies},
		{core.FieldLocations, f.Locations},
		{core.FieldFeatures, f.Features},
		{core.FieldCompliance, f.Compliance},
	}
	for _, l := range lists {
		if len(l.want) > 0 && !anyMatch(r.Strings(l.field), l.want) {
			return false
		}
	}
	return true
}

// rank adds the entity, popularity and recency boosts, sorts by final score
// (ties by record id) and builds the results.
func (s *Service) rank(candidates []*candidate, intent core.Intent, strategy Strategy, explain bool, now time.Time) []*core.SearchResult {
	w := strategy.Weights
	entities := entityTerms(intent.Entities)

	results := make([]*core.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		entityBoost := entityFraction(entities, s.lexical(c.record)) * w.Filters
		popularityBoost := popularity(c.record) * w.Popularity
		recencyBoost := recency(c.record, now) * w.Recency
		score := round(c.score + entityBoost + popularityBoost + recencyBoost)

		result := &core.SearchResult{
			RecordID:   c.record.ID,
			Score:      score,
			Similarity: round(c.vectorScore),
			Distance:   round(1 - c.vectorScore),
			Record:     c.record,
		}
		if explain {
			result.Explanation = &core.Explanation{
				Strategy:        strategy.Name,
				VectorScore:     round(c.vectorScore),
				TextScore:       round(c.textScore),
				ExactMatches:    nonNil(c.exact),
				PartialMatches:  nonNil(c.partial),
				EntityBoost:     round(entityBoost),
				PopularityBoost: round(popularityBoost),
				RecencyBoost:    round(recencyBoost),
			}
		}
		results = append(results, result)
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.RecordID, b.RecordID)
	})
	return results
}

func entityTerms(e core.Entities) []string {
	terms := make([]string, 0, e.Count())
	terms = append(terms, e.Technologies...)
	terms = append(terms, e.Industries...)
	return append(terms, e.UseCases...)
}

// entityFraction is the share of recognised query entities found in document.
func entityFraction(entities []string, document string) float64 {
	if len(entities) == 0 {
		return 0
	}
	found := 0
	for _, e := range entities {
		if containsTerm(document, e) {
			found++
		}
	}
	return float64(found) / float64(len(entities))
}

func popularity(r *core.Record) float64 {
	reviews, ok := r.Float(core.FieldReviewCount)
	if !ok || reviews <= 0 {
		return 0
	}
	return reviews / 100
}

func recency(r *core.Record, now time.Time) float64 {
	if r.UpdatedAt.IsZero() {
		return 0
	}
	days := now.Sub(r.UpdatedAt).Hours() / 24
	return math.Max(0, 1-days/daysPerYear)
}

// round keeps scores stable across platforms and in cached responses.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
