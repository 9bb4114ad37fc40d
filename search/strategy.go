package search

import (
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/query"
)

// Strategy names.
const (
	StrategyHybrid     = "hybrid"
	StrategySemantic   = "semantic"
	StrategyVectorOnly = "vector_only"
	StrategyKeyword    = "keyword"
)

// Weights scale each ranking signal.
type Weights struct {
	Vector     float64 `json:"vector"`
	Text       float64 `json:"text"`
	Filters    float64 `json:"filters"`
	Popularity float64 `json:"popularity"`
	Recency    float64 `json:"recency"`
}

// Strategy is a named weight vector.
type Strategy struct {
	Name    string  `json:"name"`
	Weights Weights `json:"weights"`
}

// UsesText reports whether lexical candidates contribute to the score.
func (s Strategy) UsesText() bool {
	return s.Weights.Text > 0
}

var strategies = map[string]Strategy{
	StrategyHybrid:     {Name: StrategyHybrid, Weights: Weights{Vector: 0.6, Text: 0.3, Filters: 0.1, Popularity: 0.05, Recency: 0.05}},
	StrategySemantic:   {Name: StrategySemantic, Weights: Weights{Vector: 0.8, Text: 0.1, Filters: 0.1, Popularity: 0.05, Recency: 0.05}},
	StrategyVectorOnly: {Name: StrategyVectorOnly, Weights: Weights{Vector: 1.0, Text: 0, Filters: 0.1, Popularity: 0.05, Recency: 0.05}},
	StrategyKeyword:    {Name: StrategyKeyword, Weights: Weights{Vector: 0.4, Text: 0.5, Filters: 0.1, Popularity: 0.05, Recency: 0.05}},
}

// StrategyByName returns the named strategy.
func StrategyByName(name string) (Strategy, bool) {
	s, ok := strategies[name]
	return s, ok
}

// SelectStrategy picks the weight vector for an intent. Disabling text
// search always yields vector_only.
func SelectStrategy(intent core.Intent, textEnabled bool) Strategy {
	if !textEnabled {
		return strategies[StrategyVectorOnly]
	}
	switch intent.Category {
	case query.IntentSpecificNeed, query.IntentComparison:
		return strategies[StrategySemantic]
	case query.IntentIntegration:
		return strategies[StrategyKeyword]
	}
	return strategies[StrategyHybrid]
}
