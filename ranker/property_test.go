package ranker

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var productWords = []string{"kettle", "steel", "electric", "mug", "ceramic", "toaster", "glass", "teapot", ""}

func buildCandidates(ratings, prices []float64) []Candidate {
	n := len(ratings)
	if len(prices) < n {
		n = len(prices)
	}
	out := make([]Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = Candidate{
			ID:          fmt.Sprintf("p%d", i),
			Name:        productWords[i%len(productWords)] + " " + productWords[(i*3+1)%len(productWords)],
			Description: productWords[(i*7+2)%len(productWords)],
			Rating:      ratings[i],
			Price:       prices[i],
			Marketplace: "Wildberries",
		}
	}
	return out
}

func TestRankProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	queries := gen.OneConstOf("", "kettle", "steel mug", "teapot glass", "nothing matches", "x")

	properties.Property("identical input produces identical output", prop.ForAll(
		func(ratings, prices []float64, query string) bool {
			candidates := buildCandidates(ratings, prices)
			first := Rank(candidates, query, len(candidates))
			second := Rank(candidates, query, len(candidates))
			return reflect.DeepEqual(first, second)
		},
		gen.SliceOf(gen.Float64Range(-1, 6)),
		gen.SliceOf(gen.Float64Range(0, 10000)),
		queries,
	))

	properties.Property("result length is min(limit, n) and 0 for limit <= 0", prop.ForAll(
		func(ratings, prices []float64, query string, limit int) bool {
			candidates := buildCandidates(ratings, prices)
			got := len(Rank(candidates, query, limit))
			if limit <= 0 {
				return got == 0
			}
			want := limit
			if len(candidates) < want {
				want = len(candidates)
			}
			return got == want
		},
		gen.SliceOf(gen.Float64Range(0, 5)),
		gen.SliceOf(gen.Float64Range(0, 10000)),
		queries,
		gen.IntRange(-3, 20),
	))

	properties.Property("results are ordered by score for non-empty queries", prop.ForAll(
		func(ratings, prices []float64, query string) bool {
			got := Rank(buildCandidates(ratings, prices), query, 100)
			for i := 1; i < len(got); i++ {
				if got[i-1].Score < got[i].Score {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-1, 6)),
		gen.SliceOf(gen.Float64Range(0, 10000)),
		gen.OneConstOf("kettle", "steel mug", "ceramic teapot"),
	))

	properties.Property("cheaper positive price never scores lower", prop.ForAll(
		func(low, delta, rating float64) bool {
			high := low + delta
			candidates := []Candidate{
				{ID: "expensive", Name: "steel kettle", Rating: rating, Price: high},
				{ID: "cheap", Name: "steel kettle", Rating: rating, Price: low},
			}
			got := Rank(candidates, "kettle", 2)
			scores := map[string]float64{}
			for _, g := range got {
				scores[g.ID] = g.Score
			}
			return scores["cheap"] >= scores["expensive"]
		},
		gen.Float64Range(0.01, 5000),
		gen.Float64Range(0, 5000),
		gen.Float64Range(0, 5),
	))

	properties.TestingRun(t)
}
