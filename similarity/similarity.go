// Package similarity implements the vector math used for semantic search:
// cosine similarity, Euclidean distance, distance-to-similarity
// normalization, and unit-length normalization.
package similarity

import (
	"fmt"
	"math"

	"github.com/poiesic/semsearch/core"
)

// Metric identifies a distance function.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
	MetricDotProduct Metric = "dot_product"
)

// Cosine returns the cosine similarity of a and b.
// Returns 0 when either vector has zero magnitude.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", core.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", core.ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// DotProduct returns the dot product of a and b.
func DotProduct(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", core.ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// DistanceToSimilarity maps a metric-specific distance onto a similarity in
// [0, 1]. The Euclidean mapping approaches but never reaches 1 for non-zero
// distances. Unknown metrics pass the distance through unchanged.
func DistanceToSimilarity(distance float64, metric Metric) float64 {
	switch metric {
	case MetricCosine:
		return math.Max(0, 1-distance)
	case MetricEuclidean:
		return math.Max(0, 1/(1+distance))
	case MetricDotProduct:
		return math.Max(0, math.Min(1, distance))
	default:
		return distance
	}
}
