// Package analytics derives price statistics, a recommended price, a
// demand estimate and comparison tables from product lists.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"yashubustudio/zsearch/ranker"
)

// PriceStats summarizes known prices of one marketplace.
type PriceStats struct {
	Marketplace string
	Count       int
	Min         float64
	Max         float64
	Mean        float64
	Median      float64
}

// PriceStatsByMarketplace groups products by marketplace, ignoring unknown
// prices, and returns the groups sorted by name.
func PriceStatsByMarketplace(products []ranker.Candidate) []PriceStats {
	groups := make(map[string][]float64)
	for _, p := range products {
		if !knownPrice(p.Price) {
			continue
		}
		groups[p.Marketplace] = append(groups[p.Marketplace], p.Price)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]PriceStats, 0, len(names))
	for _, name := range names {
		prices := groups[name]
		sort.Float64s(prices)
		sum := 0.0
		for _, v := range prices {
			sum += v
		}
		out = append(out, PriceStats{
			Marketplace: name,
			Count:       len(prices),
			Min:         prices[0],
			Max:         prices[len(prices)-1],
			Mean:        sum / float64(len(prices)),
			Median:      median(prices),
		})
	}
	return out
}

// DynamicPrice recommends a price from competitor offers: the median known
// competitor price raised by markupPercent, rounded to kopecks. ok is false
// when no competitor has a known price.
func DynamicPrice(competitors []ranker.Candidate, markupPercent float64) (price float64, ok bool, explanation string) {
	prices := make([]float64, 0, len(competitors))
	for _, c := range competitors {
		if knownPrice(c.Price) {
			prices = append(prices, c.Price)
		}
	}
	if len(prices) == 0 {
		return 0, false, "no competitor prices to compare against"
	}
	sort.Float64s(prices)
	m := median(prices)
	price = math.Round(m*(1+markupPercent/100)*100) / 100
	explanation = fmt.Sprintf("median of %d competitor prices %s with %s%% markup",
		len(prices), formatMoney(m), strconv.FormatFloat(markupPercent, 'f', -1, 64))
	return price, true, explanation
}

// Demand levels.
const (
	DemandLow    = "low"
	DemandMedium = "medium"
	DemandHigh   = "high"
)

// DemandEstimate guesses demand from review volume and rating.
func DemandEstimate(p ranker.Candidate) (level, explanation string) {
	switch {
	case p.ReviewsCount >= 500 && p.Rating >= 4.5:
		level = DemandHigh
	case p.ReviewsCount >= 50 && p.Rating >= 4.0:
		level = DemandMedium
	default:
		level = DemandLow
	}
	return level, fmt.Sprintf("%d reviews, rating %.1f", p.ReviewsCount, p.Rating)
}

// MaxCompare is how many products a comparison holds.
const MaxCompare = 5

// Comparison is an attribute-by-product table.
type Comparison struct {
	Products []ranker.Candidate
	Rows     []ComparisonRow
	// BestPrice and BestRating index into Products, or -1.
	BestPrice  int
	BestRating int
}

// ComparisonRow is one attribute across all compared products.
type ComparisonRow struct {
	Attribute string
	Values    []string
}

// Compare builds a comparison of at most MaxCompare products, in order.
func Compare(products []ranker.Candidate) Comparison {
	if len(products) > MaxCompare {
		products = products[:MaxCompare]
	}
	c := Comparison{
		Products:   append([]ranker.Candidate(nil), products...),
		BestPrice:  -1,
		BestRating: -1,
	}
	attrs := []struct {
		name  string
		value func(ranker.Candidate) string
	}{
		{"price", func(p ranker.Candidate) string {
			if !knownPrice(p.Price) {
				return "n/a"
			}
			return formatMoney(p.Price)
		}},
		{"rating", func(p ranker.Candidate) string { return strconv.FormatFloat(p.Rating, 'f', -1, 64) }},
		{"reviews", func(p ranker.Candidate) string { return strconv.Itoa(p.ReviewsCount) }},
		{"marketplace", func(p ranker.Candidate) string { return p.Marketplace }},
		{"delivery", func(p ranker.Candidate) string { return p.DeliveryTime }},
	}
	for _, a := range attrs {
		row := ComparisonRow{Attribute: a.name, Values: make([]string, len(c.Products))}
		for i, p := range c.Products {
			row.Values[i] = a.value(p)
		}
		c.Rows = append(c.Rows, row)
	}
	for i, p := range c.Products {
		if knownPrice(p.Price) && (c.BestPrice < 0 || p.Price < c.Products[c.BestPrice].Price) {
			c.BestPrice = i
		}
		if c.BestRating < 0 || p.Rating > c.Products[c.BestRating].Rating {
			c.BestRating = i
		}
	}
	return c
}

func knownPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
