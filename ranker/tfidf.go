package ranker

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var errNonFinite = errors.New("non-finite similarity")

// vectorSpace is a TF-IDF matrix over a fixed document set.
// Rows are L2 normalized; an all-zero row stays zero.
type vectorSpace struct {
	vocab []string
	rows  [][]float64
}

// buildVectorSpace uses raw term counts and smoothed idf,
// idf(t) = ln((1+n)/(1+df(t))) + 1. The vocabulary is sorted so that the
// arithmetic never depends on map iteration order.
func buildVectorSpace(docs []string, tok Tokenizer) (*vectorSpace, error) {
	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		terms, err := tok.Tokenize(doc)
		if err != nil {
			return nil, fmt.Errorf("tokenize document %d: %w", i, err)
		}
		tokenized[i] = terms
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	vocab := make([]string, 0, len(df))
	for t := range df {
		vocab = append(vocab, t)
	}
	sort.Strings(vocab)
	index := make(map[string]int, len(vocab))
	for i, t := range vocab {
		index[t] = i
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, t := range vocab {
		idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	rows := make([][]float64, len(docs))
	for i, terms := range tokenized {
		row := make([]float64, len(vocab))
		for _, t := range terms {
			row[index[t]]++
		}
		for j := range row {
			row[j] *= idf[j]
		}
		l2Normalize(row)
		rows[i] = row
	}
	return &vectorSpace{vocab: vocab, rows: rows}, nil
}

func l2Normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// RelevanceFunc scores each document against the query, returning one
// value in [0, 1] per document.
type RelevanceFunc func(query string, docs []string) ([]float64, error)

// TFIDFRelevance returns the cosine similarity between the query and each
// document in a TF-IDF space built over docs plus the query.
func TFIDFRelevance(tok Tokenizer) RelevanceFunc {
	if tok == nil {
		tok = WordTokenizer{}
	}
	return func(query string, docs []string) ([]float64, error) {
		all := make([]string, 0, len(docs)+1)
		all = append(all, docs...)
		all = append(all, query)
		space, err := buildVectorSpace(all, tok)
		if err != nil {
			return nil, err
		}
		q := space.rows[len(docs)]
		out := make([]float64, len(docs))
		for i := range docs {
			sim := cosineSimilarity(q, space.rows[i])
			if math.IsNaN(sim) || math.IsInf(sim, 0) {
				return nil, fmt.Errorf("document %d: %w", i, errNonFinite)
			}
			out[i] = clamp(sim, 0, 1)
		}
		return out, nil
	}
}
