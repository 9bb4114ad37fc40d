package search

import (
	"context"
	"errors"
	"strings"

	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/similarity"
)

// candidate is one record with the signals gathered for it so far.
type candidate struct {
	record      *core.Record
	vectorScore float64
	textScore   float64
	hasVector   bool
	hasText     bool
	exact       []string
	partial     []string
	score       float64
}

func hitIDs(hits map[string]*candidate) []string {
	ids := make([]string, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	return ids
}

// loadCandidates returns the records that pass the coarse filters. Category
// and provider type narrow at the store; min rating is checked in memory.
func (s *Service) loadCandidates(ctx context.Context, filters *core.SearchFilters) ([]*core.Record, error) {
	var (
		records []*core.Record
		err     error
	)

	switch {
	case filters != nil && len(filters.Categories) > 0:
		records, err = s.store.QueryWhereIn(ctx, core.FieldCategory, filters.Categories)
	case filters != nil && len(filters.ProviderTypes) > 0:
		records, err = s.store.QueryWhereIn(ctx, core.FieldProviderType, filters.ProviderTypes)
	default:
		records, err = s.scanAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	kept := records[:0]
	for _, r := range records {
		if passesCoarse(r, filters) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (s *Service) scanAll(ctx context.Context) ([]*core.Record, error) {
	var (
		all    []*core.Record
		cursor string
	)
	for {
		page, err := s.store.Scan(ctx, s.config.ScanPageSize, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// passesCoarse applies the category, provider type and min rating filters.
func passesCoarse(r *core.Record, filters *core.SearchFilters) bool {
	if filters == nil {
		return true
	}
	if len(filters.Categories) > 0 && !anyMatch(r.Strings(core.FieldCategory), filters.Categories) {
		return false
	}
	if len(filters.ProviderTypes) > 0 && !anyMatch(r.Strings(core.FieldProviderType), filters.ProviderTypes) {
		return false
	}
	if filters.MinRating != nil {
		rating, ok := r.Float(core.FieldRating)
		if !ok || rating < *filters.MinRating {
			return false
		}
	}
	return true
}

// vectorCandidates scores records by cosine similarity to vector and drops
// those below threshold. With a vector index the index supplies the
// similarities; otherwise every record in pool is compared. The second
// return is the number of records compared.
func (s *Service) vectorCandidates(ctx context.Context, vector []float32, pool []*core.Record, filters *core.SearchFilters, threshold float64) (map[string]*candidate, int, error) {
	if s.index != nil {
		return s.indexCandidates(ctx, vector, pool, filters, threshold)
	}

	hits := make(map[string]*candidate)
	compared := 0
	for _, r := range pool {
		if len(r.Embedding) == 0 {
			continue
		}
		compared++
		sim, err := similarity.Cosine(vector, r.Embedding)
		if err != nil {
			if errors.Is(err, core.ErrDimensionMismatch) {
				s.logger.Debug("skipping record with mismatched embedding", "record", r.ID, "dims", len(r.Embedding))
				continue
			}
			return nil, compared, err
		}
		if sim < threshold {
			continue
		}
		hits[r.ID] = &candidate{record: r, vectorScore: sim, hasVector: true}
	}
	return hits, compared, nil
}

func (s *Service) indexCandidates(ctx context.Context, vector []float32, pool []*core.Record, filters *core.SearchFilters, threshold float64) (map[string]*candidate, int, error) {
	matches, err := s.index.Query(ctx, vector, s.config.IndexCandidates, indexWhere(filters))
	if err != nil {
		return nil, 0, err
	}

	var ids []string
	for _, m := range matches {
		if m.Similarity >= threshold {
			ids = append(ids, m.ID)
		}
	}

	byID := make(map[string]*core.Record, len(pool))
	for _, r := range pool {
		byID[r.ID] = r
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		records, err := s.store.GetMany(ctx, missing...)
		if err != nil {
			return nil, len(matches), err
		}
		for _, r := range records {
			if passesCoarse(r, filters) {
				byID[r.ID] = r
			}
		}
	}

	hits := make(map[string]*candidate, len(ids))
	for _, m := range matches {
		r, ok := byID[m.ID]
		if !ok || m.Similarity < threshold {
			continue
		}
		hits[m.ID] = &candidate{record: r, vectorScore: m.Similarity, hasVector: true}
	}
	return hits, len(matches), nil
}

// indexWhere pushes a single-valued coarse filter down to the index. Lists
// of more than one value are filtered after the query.
func indexWhere(filters *core.SearchFilters) map[string]string {
	if filters == nil {
		return nil
	}
	where := make(map[string]string)
	if len(filters.Categories) == 1 {
		where[core.FieldCategory] = strings.ToLower(filters.Categories[0])
	}
	if len(filters.ProviderTypes) == 1 {
		where[core.FieldProviderType] = strings.ToLower(filters.ProviderTypes[0])
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

// textCandidates scores each record's lexical projection against the
// processed query. Records without any match are left out.
func (s *Service) textCandidates(processed string, pool []*core.Record) map[string]*candidate {
	terms := uniqueTerms(processed)
	hits := make(map[string]*candidate)
	if len(terms) == 0 {
		return hits
	}
	for _, r := range pool {
		m := scoreText(terms, s.lexical(r))
		if m.score <= 0 {
			continue
		}
		hits[r.ID] = &candidate{record: r, textScore: m.score, hasText: true, exact: m.exact, partial: m.partial}
	}
	return hits
}

// lexical is the text a record is matched against: its stored search
// content, or the freshly extracted content when it has none yet.
func (s *Service) lexical(r *core.Record) string {
	if r.SearchContent != "" {
		return r.SearchContent
	}
	return s.embeddings.Extractor().ExtractSearchableContent(r)
}

// merge combines vector and text candidates. Strategies without a text
// weight keep the raw similarity; the others sum the weighted signals, so a
// record found by one side alone still scores its one weighted term.
func merge(vector, text map[string]*candidate, strategy Strategy) map[string]*candidate {
	w := strategy.Weights
	if !strategy.UsesText() {
		for _, c := range vector {
			c.score = c.vectorScore
		}
		return vector
	}

	merged := make(map[string]*candidate, len(vector)+len(text))
	for id, c := range vector {
		merged[id] = c
	}
	for id, t := range text {
		c, ok := merged[id]
		if !ok {
			merged[id] = t
			continue
		}
		c.textScore = t.textScore
		c.hasText = true
		c.exact = t.exact
		c.partial = t.partial
	}
	for _, c := range merged {
		c.score = c.vectorScore*w.Vector + c.textScore*w.Text
	}
	return merged
}

func anyMatch(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}
