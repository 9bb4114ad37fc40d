package similarity

import "math"

// Normalize normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)

	result := make([]float32, len(v))
	// Can't normalize zero vector
	if magnitude == 0 {
		return result
	}

	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// IsNormalized reports whether v has unit length within tolerance.
func IsNormalized(v []float32) bool {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Abs(sum-1) < 1e-5
}
