package ranker

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Composite score weights. Relevance dominates, rating is moderate and
// price only breaks near-ties.
const (
	WeightRelevance = 0.6
	WeightRating    = 0.3
	WeightPrice     = 0.1

	MaxRating = 5.0
)

// Ranker orders candidates for a query. It keeps no state between calls
// and is safe for concurrent use.
type Ranker struct {
	logger    *zap.SugaredLogger
	relevance RelevanceFunc
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithLogger sets the logger used for input size, failures and result
// counts.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTokenizer builds the TF-IDF space with tok.
func WithTokenizer(tok Tokenizer) Option {
	return func(r *Ranker) {
		if tok != nil {
			r.relevance = TFIDFRelevance(tok)
		}
	}
}

// WithRelevance replaces the text similarity computation entirely.
func WithRelevance(fn RelevanceFunc) Option {
	return func(r *Ranker) {
		if fn != nil {
			r.relevance = fn
		}
	}
}

// New constructs a Ranker using the word tokenizer by default.
func New(opts ...Option) *Ranker {
	r := &Ranker{
		logger:    zap.NewNop().Sugar(),
		relevance: TFIDFRelevance(WordTokenizer{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromTokenizerFile is New with a SubwordTokenizer loaded from path.
// An empty path, or a file that fails to load, keeps the word tokenizer;
// the failure is logged as a warning.
func NewFromTokenizerFile(path string, logger *zap.SugaredLogger) *Ranker {
	opts := []Option{WithLogger(logger)}
	if path != "" {
		tok, err := NewSubwordTokenizer(path)
		if err != nil {
			if logger != nil {
				logger.Warnw("subword tokenizer unavailable, using word tokenizer", "path", path, "error", err)
			}
		} else {
			opts = append(opts, WithTokenizer(tok))
		}
	}
	return New(opts...)
}

var defaultRanker = New()

// Rank orders candidates with a default Ranker.
func Rank(candidates []Candidate, query string, limit int) []ScoredCandidate {
	return defaultRanker.Rank(candidates, query, limit)
}

// Rank returns up to limit candidates ordered best first.
//
// With an empty query the order is rating descending, then price
// ascending. Any other query, whitespace included, gives each candidate
// 0.6*relevance + 0.3*rating_score + 0.1*price_score; callers that want
// blank input treated as empty trim it first. When the similarity
// computation fails the order degrades to rating descending only; the
// failure is logged and never returned.
func (r *Ranker) Rank(candidates []Candidate, query string, limit int) []ScoredCandidate {
	if limit <= 0 || len(candidates) == 0 {
		return []ScoredCandidate{}
	}
	r.logger.Debugw("ranking candidates", "candidates", len(candidates), "query", query, "limit", limit)

	var out []ScoredCandidate
	if query == "" {
		out = byRatingThenPrice(candidates)
	} else {
		scored, err := r.score(candidates, query)
		if err != nil {
			r.logger.Errorw("similarity scoring failed, falling back to rating order",
				"query", query, "candidates", len(candidates), "error", err)
			out = byRatingOnly(candidates)
		} else {
			out = scored
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	r.logger.Infow("generated recommendations", "query", query, "results", len(out))
	return out
}

func (r *Ranker) score(candidates []Candidate, query string) (out []ScoredCandidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("similarity panicked: %v", rec)
		}
	}()

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = TextOf(c)
	}
	rel, err := r.relevance(strings.ToLower(query), docs)
	if err != nil {
		return nil, err
	}
	if len(rel) != len(candidates) {
		return nil, fmt.Errorf("relevance returned %d scores for %d candidates", len(rel), len(candidates))
	}

	out = make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		if math.IsNaN(rel[i]) || math.IsInf(rel[i], 0) {
			return nil, fmt.Errorf("candidate %d: %w", i, errNonFinite)
		}
		b := breakdown(c, clamp(rel[i], 0, 1))
		out[i] = ScoredCandidate{
			Candidate: c,
			Score:     Composite(b.Relevance, b.RatingScore, b.PriceScore),
			Breakdown: &b,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func breakdown(c Candidate, relevance float64) Breakdown {
	price := knownOrZero(c.Price)
	rating := knownOrZero(c.Rating)
	return Breakdown{
		Relevance:   relevance,
		PriceRaw:    price,
		PriceScore:  PriceScore(price),
		RatingRaw:   rating,
		RatingScore: RatingScore(rating),
	}
}

// Composite blends the three normalized signals.
func Composite(relevance, ratingScore, priceScore float64) float64 {
	return WeightRelevance*relevance + WeightRating*ratingScore + WeightPrice*priceScore
}

// PriceScore maps a positive price into (0, 1], decreasing with price.
// Unknown prices (zero, negative, NaN) score 0.
func PriceScore(price float64) float64 {
	price = knownOrZero(price)
	if price <= 0 || math.IsInf(price, 1) {
		return 0
	}
	return 1 / (1 + math.Log1p(price))
}

// RatingScore clamps rating to [0, 5] and scales it to [0, 1].
func RatingScore(rating float64) float64 {
	return clamp(knownOrZero(rating), 0, MaxRating) / MaxRating
}

func knownOrZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func hasPrice(c Candidate) bool {
	p := knownOrZero(c.Price)
	return p > 0 && !math.IsInf(p, 1)
}

func byRatingThenPrice(candidates []Candidate) []ScoredCandidate {
	out := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		b := breakdown(c, 0)
		out[i] = ScoredCandidate{
			Candidate: c,
			Score:     Composite(0, b.RatingScore, b.PriceScore),
			Breakdown: &b,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := knownOrZero(out[i].Rating), knownOrZero(out[j].Rating)
		if ri != rj {
			return ri > rj
		}
		pi, pj := hasPrice(out[i].Candidate), hasPrice(out[j].Candidate)
		if pi != pj {
			return pi
		}
		return pi && out[i].Price < out[j].Price
	})
	return out
}

func byRatingOnly(candidates []Candidate) []ScoredCandidate {
	out := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = ScoredCandidate{Candidate: c}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return knownOrZero(out[i].Rating) > knownOrZero(out[j].Rating)
	})
	return out
}
