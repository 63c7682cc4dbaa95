package ranker

// Dedupe drops results whose key is already in shown, keeping order.
func Dedupe(results []ScoredCandidate, shown []Candidate) []ScoredCandidate {
	if len(shown) == 0 {
		return results
	}
	seen := make(map[Key]struct{}, len(shown))
	for _, c := range shown {
		seen[c.Key()] = struct{}{}
	}
	out := make([]ScoredCandidate, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}
