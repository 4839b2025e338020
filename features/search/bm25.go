package search

import (
	"math"
	"strings"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// scoreHybrid blends cosine similarity with a BM25-style lexical score
// over the candidate chunk corpus, min-max normalizing each to [0, 1]
// before combining with weight alpha.
func scoreHybrid(query []float32, queryText string, candidates []candidate, alpha float64) []scoredCandidate {
	cosineScores := scoreCosine(query, candidates)
	lexicalScores := bm25Scores(queryText, candidates)

	cosineNorm := minMaxNormalize(extractScores(cosineScores))
	lexicalNorm := minMaxNormalize(lexicalScores)

	scored := make([]scoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = scoredCandidate{
			c:     c,
			score: alpha*cosineNorm[i] + (1-alpha)*lexicalNorm[i],
		}
	}
	return scored
}

func extractScores(scored []scoredCandidate) []float64 {
	out := make([]float64, len(scored))
	for i, s := range scored {
		out[i] = s.score
	}
	return out
}

func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range scores {
			out[i] = 0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

// bm25Scores computes a BM25 score for each candidate chunk against
// query, treating the candidate set itself as the corpus: document
// frequency and average chunk length are both computed over chunks,
// not documents.
func bm25Scores(query string, candidates []candidate) []float64 {
	queryTerms := tokenizeLexical(query)
	if len(queryTerms) == 0 {
		return make([]float64, len(candidates))
	}

	docTerms := make([][]string, len(candidates))
	totalLen := 0
	df := map[string]int{}
	for i, c := range candidates {
		terms := tokenizeLexical(c.text)
		docTerms[i] = terms
		totalLen += len(terms)
		seen := map[string]bool{}
		for _, t := range terms {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}

	n := float64(len(candidates))
	avgLen := float64(totalLen) / n

	scores := make([]float64, len(candidates))
	for i, terms := range docTerms {
		tf := map[string]int{}
		for _, t := range terms {
			tf[t]++
		}
		docLen := float64(len(terms))

		var score float64
		for _, qt := range queryTerms {
			f := float64(tf[qt])
			if f == 0 {
				continue
			}
			docFreq := float64(df[qt])
			idf := bm25IDF(n, docFreq)
			numerator := f * (bm25K1 + 1)
			denominator := f + bm25K1*(1-bm25B+bm25B*(docLen/avgLen))
			score += idf * (numerator / denominator)
		}
		scores[i] = score
	}
	return scores
}

func bm25IDF(n, df float64) float64 {
	// Standard BM25 idf with the +1 smoothing term, kept non-negative.
	v := math.Log((n-df+0.5)/(df+0.5) + 1)
	if v < 0 {
		return 0
	}
	return v
}

func tokenizeLexical(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
