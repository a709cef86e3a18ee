package usecase

import "math"

// CosineSimilarity returns dot(a,b)/(|a|*|b|) clamped to [-1, 1]. Vectors of
// different length or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(sim):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}
