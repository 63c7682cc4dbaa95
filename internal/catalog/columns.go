package catalog

import (
	"sync"

	"yashubustudio/zsearch/internal/config"
)

// ColumnCandidates defines possible header names for auto-detecting CSV/TSV columns.
type ColumnCandidates struct {
	ID           []string `json:"id"`
	Name         []string `json:"name"`
	Description  []string `json:"description"`
	Price        []string `json:"price"`
	Rating       []string `json:"rating"`
	ReviewsCount []string `json:"reviews_count"`
	Marketplace  []string `json:"marketplace"`
	DeliveryTime []string `json:"delivery_time"`
	ImageURL     []string `json:"image_url"`
	ProductURL   []string `json:"product_url"`
}

var (
	columnCandidatesMu  sync.RWMutex
	activeColumnOptions = defaultColumnCandidates()
)

func defaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		ID:           []string{"id", "sku", "article", "артикул"},
		Name:         []string{"name", "title", "product", "название", "наименование", "товар"},
		Description:  []string{"description", "desc", "summary", "описание"},
		Price:        []string{"price", "cost", "цена", "цена, ₽"},
		Rating:       []string{"rating", "stars", "рейтинг"},
		ReviewsCount: []string{"reviews_count", "reviews", "feedbacks", "отзывов", "отзывы"},
		Marketplace:  []string{"marketplace", "shop", "store", "маркетплейс", "магазин"},
		DeliveryTime: []string{"delivery_time", "delivery", "доставка"},
		ImageURL:     []string{"image_url", "image", "img", "изображение"},
		ProductURL:   []string{"product_url", "url", "link", "ссылка"},
	}
}

// DefaultColumnCandidates returns the built-in column detection candidates.
func DefaultColumnCandidates() ColumnCandidates {
	return defaultColumnCandidates().clone()
}

// SetColumnCandidates updates the column detection candidates used during auto-detection.
// Fields left nil fall back to the built-in defaults.
func SetColumnCandidates(candidates ColumnCandidates) {
	columnCandidatesMu.Lock()
	defer columnCandidatesMu.Unlock()
	activeColumnOptions = candidates.withDefaults()
}

// ColumnCandidatesFromConfig turns configured header names into detection
// candidates. Fields the config leaves empty keep the built-in names.
func ColumnCandidatesFromConfig(h config.ColumnHeaders) ColumnCandidates {
	return ColumnCandidates{
		ID:           nonEmpty(h.ID),
		Name:         nonEmpty(h.Name),
		Description:  nonEmpty(h.Description),
		Price:        nonEmpty(h.Price),
		Rating:       nonEmpty(h.Rating),
		ReviewsCount: nonEmpty(h.ReviewsCount),
		Marketplace:  nonEmpty(h.Marketplace),
		DeliveryTime: nonEmpty(h.DeliveryTime),
		ImageURL:     nonEmpty(h.ImageURL),
		ProductURL:   nonEmpty(h.ProductURL),
	}.withDefaults()
}

func nonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}

func getColumnCandidates() ColumnCandidates {
	columnCandidatesMu.RLock()
	defer columnCandidatesMu.RUnlock()
	return activeColumnOptions.clone()
}

func (c ColumnCandidates) withDefaults() ColumnCandidates {
	return c.withFallback(defaultColumnCandidates())
}

func (c ColumnCandidates) clone() ColumnCandidates {
	return c.withFallback(ColumnCandidates{})
}

func (c ColumnCandidates) withFallback(f ColumnCandidates) ColumnCandidates {
	return ColumnCandidates{
		ID:           pickStrings(c.ID, f.ID),
		Name:         pickStrings(c.Name, f.Name),
		Description:  pickStrings(c.Description, f.Description),
		Price:        pickStrings(c.Price, f.Price),
		Rating:       pickStrings(c.Rating, f.Rating),
		ReviewsCount: pickStrings(c.ReviewsCount, f.ReviewsCount),
		Marketplace:  pickStrings(c.Marketplace, f.Marketplace),
		DeliveryTime: pickStrings(c.DeliveryTime, f.DeliveryTime),
		ImageURL:     pickStrings(c.ImageURL, f.ImageURL),
		ProductURL:   pickStrings(c.ProductURL, f.ProductURL),
	}
}

func pickStrings(custom, fallback []string) []string {
	if custom == nil {
		return cloneStrings(fallback)
	}
	return cloneStrings(custom)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
