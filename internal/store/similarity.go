package store

import "math"

// CosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 for mismatched lengths or zero-magnitude vectors so a
// bad embedding can never rank above a real match.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
