package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"yashubustudio/zsearch/internal/analytics"
	"yashubustudio/zsearch/internal/config"
	"yashubustudio/zsearch/internal/export"
	"yashubustudio/zsearch/internal/store"
	"yashubustudio/zsearch/ranker"
)

// ShownResults is how many search results count as already displayed when
// recommendations are deduplicated.
const ShownResults = 20

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrEmptyQuery  = errors.New("query is empty")
	ErrCompareFull = fmt.Errorf("at most %d products can be compared", analytics.MaxCompare)
	ErrNoResults   = errors.New("no search results")
)

// UserStore persists accounts and query history.
type UserStore interface {
	AddUser(ctx context.Context, username, password string) (store.User, error)
	Authenticate(ctx context.Context, username, password string) (store.User, error)
	SaveQuery(ctx context.Context, userID int64, text string) error
	RecentQueries(ctx context.Context, userID int64, limit int) ([]store.QueryHistoryEntry, error)
}

// ProductSearcher finds candidate products for a query.
type ProductSearcher interface {
	Search(ctx context.Context, query string) ([]ranker.Candidate, error)
}

// Session identifies the logged-in user.
type Session struct {
	ID       string
	UserID   int64
	Username string
	LoginAt  time.Time
}

// SearchResult is everything one search produces for display.
type SearchResult struct {
	Query           string
	Products        []ranker.Candidate
	// Shown is the first ShownResults products, the rows put on screen.
	Shown           []ranker.Candidate
	Recommendations []ranker.ScoredCandidate
	PriceStats      []analytics.PriceStats
}

// ProductDetails adds analytics to a single product.
type ProductDetails struct {
	Product           ranker.Candidate
	RecommendedPrice  float64
	HasRecommendation bool
	PriceExplanation  string
	Demand            string
	DemandExplanation string
}

// Service wires storage, search and ranking behind the desktop UI.
type Service struct {
	mu       sync.RWMutex
	cfg      config.Config
	users    UserStore
	searcher ProductSearcher
	ranker   *ranker.Ranker
	logger   *zap.SugaredLogger
	now      func() time.Time

	session *Session
	last    *SearchResult
	compare []ranker.Candidate
}

// NewService builds a Service. A nil ranker uses the default one and a nil
// logger discards output.
func NewService(cfg config.Config, users UserStore, searcher ProductSearcher, rk *ranker.Ranker, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if rk == nil {
		rk = ranker.New(ranker.WithLogger(logger))
	}
	cfg.ApplyDefaults()
	return &Service{
		cfg:      cfg.Clone(),
		users:    users,
		searcher: searcher,
		ranker:   rk,
		logger:   logger,
		now:      time.Now,
	}
}

// Config returns a copy of the active configuration.
func (s *Service) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Session returns the current session, if any.
func (s *Service) Session() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Register creates an account. It does not log the user in.
func (s *Service) Register(ctx context.Context, username, password string) error {
	u, err := s.users.AddUser(ctx, username, password)
	if err != nil {
		s.logger.Warnw("registration failed", "username", strings.TrimSpace(username), "error", err)
		return err
	}
	s.logger.Infow("user registered", "username", u.Username, "user_id", u.ID)
	return nil
}

// Login authenticates and starts a new session, replacing any previous one.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.Warnw("login failed", "username", strings.TrimSpace(username), "error", err)
		return Session{}, err
	}
	sess := Session{ID: uuid.NewString(), UserID: u.ID, Username: u.Username, LoginAt: s.now()}
	s.mu.Lock()
	s.session = &sess
	s.last = nil
	s.compare = nil
	s.mu.Unlock()
	s.logger.Infow("user logged in", "username", u.Username, "session", sess.ID)
	return sess, nil
}

// Logout ends the session and forgets per-user state.
func (s *Service) Logout() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.last = nil
	s.compare = nil
	s.mu.Unlock()
	if sess != nil {
		s.logger.Infow("user logged out", "username", sess.Username, "session", sess.ID)
	}
}

func (s *Service) requireSession() (Session, error) {
	sess, ok := s.Session()
	if !ok {
		return Session{}, ErrNotLoggedIn
	}
	return sess, nil
}

// Search records the query in the user's history, finds matching products
// and ranks recommendations that are not already among the shown results.
func (s *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	sess, err := s.requireSession()
	if err != nil {
		s.logger.Warnw("search attempted without login")
		return SearchResult{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, ErrEmptyQuery
	}
	if err := s.users.SaveQuery(ctx, sess.UserID, query); err != nil {
		s.logger.Errorw("save query failed", "user_id", sess.UserID, "error", err)
	}

	products, err := s.searcher.Search(ctx, query)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search: %w", err)
	}
	res := SearchResult{Query: query, Products: products, Recommendations: []ranker.ScoredCandidate{}}
	res.Shown = products
	if len(res.Shown) > ShownResults {
		res.Shown = res.Shown[:ShownResults]
	}
	res.PriceStats = analytics.PriceStatsByMarketplace(products)

	topN := s.Config().Ranker.TopN
	if len(products) > 0 {
		ranked := s.ranker.Rank(products, query, topN+len(res.Shown))
		recs := ranker.Dedupe(ranked, res.Shown)
		if len(recs) > topN {
			recs = recs[:topN]
		}
		res.Recommendations = recs
	}
	s.logger.Infow("search complete", "query", query, "found", len(products), "recommended", len(res.Recommendations))

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
	return res, nil
}

// LastResult returns the most recent search, if any.
func (s *Service) LastResult() (SearchResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return SearchResult{}, false
	}
	return *s.last, true
}

// History returns the user's recent queries, newest first.
func (s *Service) History(ctx context.Context) ([]string, error) {
	sess, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	entries, err := s.users.RecentQueries(ctx, sess.UserID, s.Config().HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.QueryText)
	}
	return out, nil
}

// ExportCSV writes the last search's products to w.
func (s *Service) ExportCSV(w io.Writer) error {
	res, ok := s.LastResult()
	if !ok || len(res.Products) == 0 {
		return ErrNoResults
	}
	return export.WriteCSV(w, res.Products, s.logger)
}

// ToggleCompare adds p to the comparison list, or removes it when present.
// It reports whether p is in the list afterwards.
func (s *Service) ToggleCompare(p ranker.Candidate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.compare {
		if c.Key() == p.Key() {
			s.compare = append(s.compare[:i:i], s.compare[i+1:]...)
			s.logger.Debugw("removed from comparison", "name", p.Name, "size", len(s.compare))
			return false, nil
		}
	}
	if len(s.compare) >= analytics.MaxCompare {
		return false, ErrCompareFull
	}
	s.compare = append(s.compare, p)
	s.logger.Debugw("added to comparison", "name", p.Name, "size", len(s.compare))
	return true, nil
}

// CompareList returns the products selected for comparison.
func (s *Service) CompareList() []ranker.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ranker.Candidate(nil), s.compare...)
}

// Comparison builds the comparison table of the selected products.
func (s *Service) Comparison() analytics.Comparison {
	return analytics.Compare(s.CompareList())
}

// ProductDetails prices p against the other products of the last search.
func (s *Service) ProductDetails(p ranker.Candidate) ProductDetails {
	var competitors []ranker.Candidate
	if res, ok := s.LastResult(); ok {
		for _, c := range res.Products {
			if c.Key() != p.Key() {
				competitors = append(competitors, c)
			}
		}
	}
	d := ProductDetails{Product: p}
	d.RecommendedPrice, d.HasRecommendation, d.PriceExplanation = analytics.DynamicPrice(competitors, s.Config().PriceMarkupPercentage)
	d.Demand, d.DemandExplanation = analytics.DemandEstimate(p)
	return d
}
