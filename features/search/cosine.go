package search

import "math"

// scoreCosine computes s = (q·v) / (‖q‖·‖v‖) for each candidate,
// guarding zero-norm vectors to a score of 0 rather than dividing by
// zero.
func scoreCosine(query []float32, candidates []candidate) []scoredCandidate {
	qNorm := norm(query)
	scored := make([]scoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = scoredCandidate{c: c, score: cosineSimilarity(query, c.vector, qNorm)}
	}
	return scored
}

func cosineSimilarity(a, b []float32, aNorm float64) float64 {
	bNorm := norm(b)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
