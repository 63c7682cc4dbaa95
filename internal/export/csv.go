// Package export writes product lists as spreadsheet-friendly CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"yashubustudio/zsearch/ranker"
)

// Columns is the field order of every export.
var Columns = []string{
	"name", "marketplace", "price", "rating", "reviews_count",
	"delivery_time", "description", "product_url", "image_url",
}

// ScoreColumns are appended by WriteScoredCSV.
var ScoreColumns = []string{"score", "relevance", "price_score", "rating_score"}

const bom = "\ufeff"

// WriteCSV writes products to w with a UTF-8 BOM and every value quoted.
// An empty list writes nothing and is not an error.
func WriteCSV(w io.Writer, products []ranker.Candidate, logger *zap.SugaredLogger) error {
	logger = orNop(logger)
	if len(products) == 0 {
		logger.Warnw("no products to export")
		return nil
	}
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, productFields(p))
	}
	if err := writeQuoted(w, Columns, rows); err != nil {
		return err
	}
	logger.Infow("exported products", "count", len(products))
	return nil
}

// WriteScoredCSV is WriteCSV for ranked results, with score columns appended.
// Results without a breakdown leave those columns empty.
func WriteScoredCSV(w io.Writer, results []ranker.ScoredCandidate, logger *zap.SugaredLogger) error {
	logger = orNop(logger)
	if len(results) == 0 {
		logger.Warnw("no ranked results to export")
		return nil
	}
	header := append(append([]string(nil), Columns...), ScoreColumns...)
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := productFields(r.Candidate)
		row = append(row, formatFloat(r.Score))
		if b := r.Breakdown; b != nil {
			row = append(row, formatFloat(b.Relevance), formatFloat(b.PriceScore), formatFloat(b.RatingScore))
		} else {
			row = append(row, "", "", "")
		}
		rows = append(rows, row)
	}
	if err := writeQuoted(w, header, rows); err != nil {
		return err
	}
	logger.Infow("exported ranked results", "count", len(results))
	return nil
}

// WriteFile creates path (and its directory) and writes products into it.
func WriteFile(path string, products []ranker.Candidate, logger *zap.SugaredLogger) error {
	return writeFile(path, func(w io.Writer) error { return WriteCSV(w, products, logger) })
}

// WriteScoredFile is WriteFile for ranked results.
func WriteScoredFile(path string, results []ranker.ScoredCandidate, logger *zap.SugaredLogger) error {
	return writeFile(path, func(w io.Writer) error { return WriteScoredCSV(w, results, logger) })
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func productFields(p ranker.Candidate) []string {
	price := ""
	if p.Price > 0 {
		price = formatFloat(p.Price)
	}
	return []string{
		p.Name,
		p.Marketplace,
		price,
		formatFloat(p.Rating),
		strconv.Itoa(p.ReviewsCount),
		p.DeliveryTime,
		p.Description,
		p.ProductURL,
		p.ImageURL,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// writeQuoted quotes every field, which encoding/csv cannot be told to do.
func writeQuoted(w io.Writer, header []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	if err := writeRecord(bw, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := writeRecord(bw, row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return nil
}

var cellReplacer = strings.NewReplacer("\r", "", "\n", " ", `"`, `""`)

func writeRecord(w *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + cellReplacer.Replace(field) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

func orNop(logger *zap.SugaredLogger) *zap.SugaredLogger {
	if logger == nil {
		return zap.NewNop().Sugar()
	}
	return logger
}
