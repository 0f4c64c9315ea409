package memory

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters. Standard values; k1 controls term-frequency saturation,
// b controls document-length normalization.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// ScoredMemory pairs a memory with its relevance score for a query.
type ScoredMemory struct {
	Memory *Memory
	Score  float64
}

// RankBM25 scores candidates against the query and returns the topK best,
// highest score first. Memories with no term overlap are dropped.
func RankBM25(query string, candidates []*Memory, topK int) []ScoredMemory {
	terms := tokenize(query)
	if len(terms) == 0 || len(candidates) == 0 {
		return nil
	}

	docTokens := make([][]string, len(candidates))
	totalLen := 0
	for i, m := range candidates {
		docTokens[i] = tokenize(m.Content)
		totalLen += len(docTokens[i])
	}
	avgDocLen := float64(totalLen) / float64(len(candidates))
	if avgDocLen == 0 {
		return nil
	}

	// Document frequency per query term.
	df := make(map[string]int, len(terms))
	for _, tokens := range docTokens {
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			seen[tok] = true
		}
		for _, term := range terms {
			if seen[term] {
				df[term]++
			}
		}
	}

	n := float64(len(candidates))
	var results []ScoredMemory
	for i, m := range candidates {
		tokens := docTokens[i]
		docLen := float64(len(tokens))

		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}

		score := 0.0
		for _, term := range terms {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgDocLen))
		}
		if score > 0 {
			results = append(results, ScoredMemory{Memory: m, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
