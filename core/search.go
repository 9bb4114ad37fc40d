package core

import "time"

// PriceRange bounds the "price" field. Nil bounds are open.
type PriceRange struct {
	Min *float64 `json:"min,omitempty" validate:"omitempty,gte=0"`
	Max *float64 `json:"max,omitempty" validate:"omitempty,gte=0"`
}

// SearchFilters narrows the candidate set. Categories, ProviderTypes and
// MinRating are applied before scoring; the rest are hard excludes applied
// after scoring. All filters combine with AND, values inside one filter with OR.
type SearchFilters struct {
	Categories    []string    `json:"categories,omitempty"`
	ProviderTypes []string    `json:"providerTypes,omitempty"`
	MinRating     *float64    `json:"minRating,omitempty" validate:"omitempty,gte=0,lte=5"`
	PriceRange    *PriceRange `json:"priceRange,omitempty" validate:"omitempty"`
	Industries    []string    `json:"industries,omitempty"`
	Technologies  []string    `json:"technologies,omitempty"`
	Locations     []string    `json:"locations,omitempty"`
	Features      []string    `json:"features,omitempty"`
	Compliance    []string    `json:"compliance,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f *SearchFilters) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.Categories) == 0 && len(f.ProviderTypes) == 0 && f.MinRating == nil &&
		f.PriceRange == nil && len(f.Industries) == 0 && len(f.Technologies) == 0 &&
		len(f.Locations) == 0 && len(f.Features) == 0 && len(f.Compliance) == 0
}

// SearchOptions controls pagination and scoring of a search.
type SearchOptions struct {
	Limit              int      `json:"limit,omitempty" validate:"gte=0"`
	Offset             int      `json:"offset,omitempty" validate:"gte=0"`
	Threshold          *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	IncludeTextSearch  *bool    `json:"includeTextSearch,omitempty"`
	IncludeExplanation bool     `json:"includeExplanation,omitempty"`
}

// TextSearchEnabled defaults to true when unset.
func (o *SearchOptions) TextSearchEnabled() bool {
	return o == nil || o.IncludeTextSearch == nil || *o.IncludeTextSearch
}

// SearchRequest is a natural-language query with optional filters and options.
type SearchRequest struct {
	Query   string         `json:"query"`
	Filters *SearchFilters `json:"filters,omitempty" validate:"omitempty"`
	Options *SearchOptions `json:"options,omitempty" validate:"omitempty"`
}

// Explanation breaks a result's score into its signals.
type Explanation struct {
	Strategy        string   `json:"strategy"`
	VectorScore     float64  `json:"vectorScore"`
	TextScore       float64  `json:"textScore"`
	ExactMatches    []string `json:"exactMatches"`
	PartialMatches  []string `json:"partialMatches"`
	EntityBoost     float64  `json:"entityBoost"`
	PopularityBoost float64  `json:"popularityBoost"`
	RecencyBoost    float64  `json:"recencyBoost"`
}

// SearchResult is one ranked record.
type SearchResult struct {
	RecordID    string       `json:"recordId"`
	Score       float64      `json:"score"`
	Similarity  float64      `json:"similarity"`
	Distance    float64      `json:"distance"`
	Record      *Record      `json:"record"`
	Explanation *Explanation `json:"explanation,omitempty"`
}

// Entities are domain terms recognised in a query.
type Entities struct {
	Technologies []string `json:"technologies"`
	Industries   []string `json:"industries"`
	UseCases     []string `json:"useCases"`
	Budget       *int     `json:"budget,omitempty"`
}

// Count returns the number of recognised terms, budget excluded.
func (e Entities) Count() int {
	return len(e.Technologies) + len(e.Industries) + len(e.UseCases)
}

// Intent is the classified purpose of a query.
type Intent struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities"`
}

// QueryMetadata describes how a query was interpreted.
type QueryMetadata struct {
	OriginalQuery  string  `json:"originalQuery"`
	ProcessedQuery string  `json:"processedQuery"`
	Intent         Intent  `json:"intent"`
	Strategy       string  `json:"strategy"`
	Threshold      float64 `json:"threshold"`
	Limit          int     `json:"limit"`
	Offset         int     `json:"offset"`
	EmbeddingModel string  `json:"embeddingModel"`
	QueryTokens    int     `json:"queryTokens"`
	QueryCost      float64 `json:"queryCost"`
}

// Performance is the timing breakdown of one search, in milliseconds.
type Performance struct {
	Phases           map[string]float64 `json:"phases"`
	TotalMs          float64            `json:"totalMs"`
	DocumentsScanned int                `json:"documentsScanned"`
	VectorCandidates int                `json:"vectorCandidates"`
	TextCandidates   int                `json:"textCandidates"`
}

// Cache statuses reported on a SearchResponse.
const (
	CacheStatusHit      = "hit"
	CacheStatusMiss     = "miss"
	CacheStatusDisabled = "disabled"
)

// SearchResponse is the result of one search.
type SearchResponse struct {
	Results       []*SearchResult `json:"results"`
	TotalCount    int             `json:"totalCount"`
	QueryMetadata QueryMetadata   `json:"queryMetadata"`
	Performance   Performance     `json:"performance"`
	Suggestions   []string        `json:"suggestions"`
	CacheStatus   string          `json:"cacheStatus"`
	GeneratedAt   time.Time       `json:"generatedAt"`
}
