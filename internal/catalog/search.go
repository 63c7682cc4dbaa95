package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"yashubustudio/zsearch/internal/config"
	"yashubustudio/zsearch/ranker"
)

// Filter keeps products whose name or description contains query,
// case-insensitively. An empty query keeps everything.
func Filter(products []ranker.Candidate, query string) []ranker.Candidate {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]ranker.Candidate, 0, len(products))
	for _, p := range products {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	return out
}

// Searcher answers queries from the configured mock catalogue files.
type Searcher struct {
	enabled bool
	dir     string
	files   []string
	logger  *zap.SugaredLogger
}

// NewSearcher builds a Searcher from configuration. A nil logger discards output.
func NewSearcher(cfg config.Config, logger *zap.SugaredLogger) *Searcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	files := cfg.MockFiles
	if len(files) == 0 {
		files = config.DefaultMockFiles
	}
	return &Searcher{
		enabled: cfg.UseMockData,
		dir:     cfg.MockDataDir,
		files:   append([]string(nil), files...),
		logger:  logger,
	}
}

// Search loads every catalogue file in order and returns the matching
// products. Unreadable files are logged and skipped.
func (s *Searcher) Search(ctx context.Context, query string) ([]ranker.Candidate, error) {
	if !s.enabled {
		s.logger.Warnw("mock data disabled and no live marketplace source configured", "query", query)
		return []ranker.Candidate{}, nil
	}
	var all []ranker.Candidate
	for _, name := range s.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, name)
		}
		products, err := LoadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			s.logger.Warnw("catalogue file not found", "path", path)
			continue
		case err != nil:
			s.logger.Errorw("catalogue file unreadable", "path", path, "error", err)
			continue
		}
		s.logger.Debugw("catalogue loaded", "path", path, "products", len(products))
		all = append(all, products...)
	}
	found := Filter(all, query)
	s.logger.Infow("search finished", "query", query, "found", len(found))
	return found, nil
}
