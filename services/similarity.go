package services

import "math"

// CosineSimilarity computes the cosine similarity between two vectors:
// dot product divided by the product of magnitudes, range [-1, 1].
// Embeddings are expected to arrive unit-length from the model, but
// this deliberately does not assume it.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
