package ranker

// Candidate is one product record under consideration for ranking.
// Marketplace, DeliveryTime, ImageURL and ProductURL are carried through
// untouched.
type Candidate struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	Rating       float64 `json:"rating"`
	ReviewsCount int     `json:"reviews_count"`
	Marketplace  string  `json:"marketplace,omitempty"`
	DeliveryTime string  `json:"delivery_time,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
	ProductURL   string  `json:"product_url,omitempty"`
}

// Key identifies a candidate across marketplaces.
type Key struct {
	ID          string
	Marketplace string
}

// Key returns the (ID, Marketplace) pair used for de-duplication.
func (c Candidate) Key() Key {
	return Key{ID: c.ID, Marketplace: c.Marketplace}
}

// Breakdown keeps the sub-scores behind a composite score for display.
type Breakdown struct {
	Relevance   float64 `json:"relevance"`
	PriceRaw    float64 `json:"price_raw"`
	PriceScore  float64 `json:"price_score_normalized"`
	RatingRaw   float64 `json:"rating_raw"`
	RatingScore float64 `json:"rating_score_normalized"`
}

// ScoredCandidate is a ranked copy of a Candidate.
// Breakdown is nil only for the rating-only fallback order.
type ScoredCandidate struct {
	Candidate
	Score     float64    `json:"score"`
	Breakdown *Breakdown `json:"debug_scores,omitempty"`
}
