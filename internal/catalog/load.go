// Package catalog loads marketplace product files and filters them by query.
package catalog

import (
	"bytes"
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"yashubustudio/zsearch/ranker"
)

// ParseOptions allows callers to choose which CSV columns map to product fields.
// Values are header names or 1-based "#N" indices; empty means auto-detect.
type ParseOptions struct {
	NameColumn        string
	DescriptionColumn string
	PriceColumn       string
	RatingColumn      string
}

// ErrNoNameColumn is returned when a delimited file has no usable name column.
var ErrNoNameColumn = errors.New("no product name column found")

// LoadFile reads products from a .json, .csv or .tsv file. Records without
// a marketplace get one derived from the file name.
func LoadFile(path string) ([]ranker.Candidate, error) {
	return LoadFileWithOptions(path, ParseOptions{})
}

// LoadFileWithOptions is LoadFile with explicit column mappings for delimited files.
func LoadFileWithOptions(path string, opts ParseOptions) ([]ranker.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	marketplace := DefaultMarketplace(path)
	var products []ranker.Candidate
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		products, err = decodeDelimited(f, ',', opts)
	case ".tsv":
		products, err = decodeDelimited(f, '\t', opts)
	default:
		products, err = DecodeJSON(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	for i := range products {
		if products[i].Marketplace == "" {
			products[i].Marketplace = marketplace
		}
		if products[i].ID == "" {
			products[i].ID = SyntheticID(products[i].Marketplace, products[i].Name)
		}
	}
	return products, nil
}

// DefaultMarketplace derives a marketplace name from the part of the file
// name before the first underscore: "yandex_market_mock.json" -> "Yandex".
func DefaultMarketplace(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix, _, _ := strings.Cut(base, "_")
	if prefix == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(prefix)
	return string(unicode.ToUpper(r)) + strings.ToLower(prefix[size:])
}

// SyntheticID gives a product without an identifier a stable one.
func SyntheticID(marketplace, name string) string {
	h := sha1.Sum([]byte(marketplace + "|" + name))
	return hex.EncodeToString(h[:6])
}

// DecodeJSON reads a JSON array of product objects. Numeric fields accept
// numbers or numeric strings (decimal comma allowed); anything else is
// treated as unknown.
func DecodeJSON(r io.Reader) ([]ranker.Candidate, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	out := make([]ranker.Candidate, 0, len(raw))
	for _, m := range raw {
		if m == nil {
			continue
		}
		out = append(out, ranker.Candidate{
			ID:           textField(m, "id"),
			Name:         textField(m, "name"),
			Description:  textField(m, "description"),
			Price:        numberField(m, "price"),
			Rating:       numberField(m, "rating"),
			ReviewsCount: int(numberField(m, "reviews_count", "reviews")),
			Marketplace:  textField(m, "marketplace"),
			DeliveryTime: textField(m, "delivery_time"),
			ImageURL:     textField(m, "image_url"),
			ProductURL:   textField(m, "product_url"),
		})
	}
	return out, nil
}

func textField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func numberField(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			return ParseNumber(n.String())
		case string:
			return ParseNumber(n)
		}
		return 0
	}
	return 0
}

// ParseNumber parses "1 299,50", "1299.5" or "4,8". Unparsable or
// non-finite input yields 0.
func ParseNumber(s string) float64 {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '₽' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func decodeDelimited(r io.Reader, comma rune, opts ParseOptions) ([]ranker.Candidate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	cols, err := resolveColumns(header, opts)
	if err != nil {
		return nil, err
	}

	out := make([]ranker.Candidate, 0, len(rows)-1)
	for _, row := range rows[1:] {
		name := cellAt(row, cols.name)
		if name == "" {
			continue
		}
		out = append(out, ranker.Candidate{
			ID:           cellAt(row, cols.id),
			Name:         name,
			Description:  cellAt(row, cols.description),
			Price:        ParseNumber(cellAt(row, cols.price)),
			Rating:       ParseNumber(cellAt(row, cols.rating)),
			ReviewsCount: int(ParseNumber(cellAt(row, cols.reviews))),
			Marketplace:  cellAt(row, cols.marketplace),
			DeliveryTime: cellAt(row, cols.delivery),
			ImageURL:     cellAt(row, cols.image),
			ProductURL:   cellAt(row, cols.url),
		})
	}
	return out, nil
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return cleanCell(row[idx])
}

type resolvedColumns struct {
	id, name, description, price, rating, reviews int
	marketplace, delivery, image, url             int
}

func resolveColumns(header []string, opts ParseOptions) (resolvedColumns, error) {
	c := getColumnCandidates()
	res := resolvedColumns{
		id:          findColumn(header, c.ID),
		reviews:     findColumn(header, c.ReviewsCount),
		marketplace: findColumn(header, c.Marketplace),
		delivery:    findColumn(header, c.DeliveryTime),
		image:       findColumn(header, c.ImageURL),
		url:         findColumn(header, c.ProductURL),
	}
	var err error
	if res.name, err = pickColumn(header, opts.NameColumn, c.Name); err != nil {
		return res, err
	}
	if res.description, err = pickColumn(header, opts.DescriptionColumn, c.Description); err != nil {
		return res, err
	}
	if res.price, err = pickColumn(header, opts.PriceColumn, c.Price); err != nil {
		return res, err
	}
	if res.rating, err = pickColumn(header, opts.RatingColumn, c.Rating); err != nil {
		return res, err
	}
	if res.name < 0 {
		return res, ErrNoNameColumn
	}
	return res, nil
}

func findColumn(header []string, candidates []string) int {
	for i, col := range header {
		for _, cand := range candidates {
			if strings.EqualFold(col, cand) {
				return i
			}
		}
	}
	return -1
}

func pickColumn(header []string, explicit string, candidates []string) (int, error) {
	trimmed := strings.TrimSpace(explicit)
	if trimmed == "" {
		return findColumn(header, candidates), nil
	}
	for i, col := range header {
		if strings.EqualFold(col, trimmed) {
			return i, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := parseColumnIndex(trimmed)
		if err != nil {
			return -1, err
		}
		if idx >= len(header) {
			return -1, fmt.Errorf("column index %s is out of range", trimmed)
		}
		return idx, nil
	}
	return -1, fmt.Errorf("column %q not found", explicit)
}

func parseColumnIndex(token string) (int, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(token, "#"))
	idx, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	if idx <= 0 {
		return -1, fmt.Errorf("column indices are 1-based: %q", token)
	}
	return idx - 1, nil
}
