package matcher

import (
	"fmt"
	"math"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|) accumulated in float64.
// Vectors of different length, empty vectors and zero vectors yield 0.
func CosineSimilarity(a, b Embedding) float32 {
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
	// rounding can push identical vectors just past 1
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return float32(sim)
}

// nonFiniteIndex returns the first NaN or infinite component of e, or -1.
func nonFiniteIndex(e Embedding) int {
	for i, v := range e {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return i
		}
	}
	return -1
}

// ValidateQuery checks that query can be matched: non-empty with finite components.
func ValidateQuery(query Embedding) error {
	if len(query) == 0 {
		return ErrEmptyEmbedding
	}
	if i := nonFiniteIndex(query); i >= 0 {
		return fmt.Errorf("%w: component %d", ErrNonFiniteEmbedding, i)
	}
	return nil
}
