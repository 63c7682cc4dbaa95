package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"yashubustudio/zsearch/internal/catalog"
	"yashubustudio/zsearch/internal/config"
	"yashubustudio/zsearch/internal/export"
	"yashubustudio/zsearch/internal/logging"
	"yashubustudio/zsearch/ranker"
)

type cliOptions struct {
	configPath string
	query      string
	limit      int
	mockDir    string
	inputPath  string
	inputOpts  catalog.ParseOptions
	outputPath string
	outputDir  string
	stdout     bool
	debug      bool
}

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("zsearch-cli: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("zsearch-cli: %v", err)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (cliOptions, error) {
	var opts cliOptions
	fs.StringVar(&opts.configPath, "config", "", "Path to config.yaml (default: ./config.yaml)")
	fs.StringVar(&opts.query, "query", "", "Search query; empty ranks by rating and price")
	fs.IntVar(&opts.limit, "limit", 0, "Number of ranked results (default: ranker.top_n from config)")
	fs.StringVar(&opts.mockDir, "mock-dir", "", "Directory with marketplace mock files (overrides config)")
	fs.StringVar(&opts.inputPath, "input", "", "Rank products from this JSON/CSV/TSV file instead of the mock catalogue")
	fs.StringVar(&opts.inputOpts.NameColumn, "name-column", "", "Column name or #index for product names")
	fs.StringVar(&opts.inputOpts.DescriptionColumn, "description-column", "", "Column name or #index for descriptions")
	fs.StringVar(&opts.inputOpts.PriceColumn, "price-column", "", "Column name or #index for prices")
	fs.StringVar(&opts.inputOpts.RatingColumn, "rating-column", "", "Column name or #index for ratings")
	fs.StringVar(&opts.outputPath, "output", "", "CSV file to write ranked results (default uses --output-dir/ranked_*.csv)")
	fs.StringVar(&opts.outputDir, "output-dir", "csv", "Directory where result CSVs are written when --output is omitted")
	fs.BoolVar(&opts.stdout, "stdout", false, "Print ranked results to STDOUT")
	fs.BoolVar(&opts.debug, "debug", false, "Log at debug level")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s --query TEXT [options]\n\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.configPath = strings.TrimSpace(opts.configPath)
	opts.query = strings.TrimSpace(opts.query)
	opts.mockDir = strings.TrimSpace(opts.mockDir)
	opts.inputPath = strings.TrimSpace(opts.inputPath)
	opts.outputPath = strings.TrimSpace(opts.outputPath)
	opts.outputDir = strings.TrimSpace(opts.outputDir)

	if opts.limit < 0 {
		return opts, errors.New("--limit must not be negative")
	}
	return opts, nil
}

func run(ctx context.Context, opts cliOptions, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.mockDir != "" {
		cfg.MockDataDir = opts.mockDir
		cfg.UseMockData = true
	}
	level := cfg.LogLevel
	if opts.debug {
		level = "debug"
	}
	logger, closeLog, err := logging.New(logging.Options{Level: level, File: cfg.LogFile, Console: os.Stderr})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	catalog.SetColumnCandidates(catalog.ColumnCandidatesFromConfig(cfg.Columns))
	products, err := loadProducts(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}

	limit := opts.limit
	if limit == 0 {
		limit = cfg.Ranker.TopN
	}
	rk := ranker.NewFromTokenizerFile(cfg.Ranker.TokenizerPath, logger)
	results := rk.Rank(products, opts.query, limit)
	if len(results) == 0 {
		fmt.Fprintln(out, "No products matched.")
		return nil
	}

	outputPath, err := resolveOutputPath(opts.outputPath, opts.outputDir)
	if err != nil {
		return err
	}
	if err := export.WriteScoredFile(outputPath, results, logger); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	fmt.Fprintf(out, "Ranked %d of %d products, saved to %s\n", len(results), len(products), outputPath)

	if opts.stdout {
		printSummary(out, results)
	}
	return nil
}

func loadProducts(ctx context.Context, cfg config.Config, opts cliOptions, logger *zap.SugaredLogger) ([]ranker.Candidate, error) {
	if opts.inputPath == "" {
		return catalog.NewSearcher(cfg, logger).Search(ctx, opts.query)
	}
	products, err := catalog.LoadFileWithOptions(opts.inputPath, opts.inputOpts)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return catalog.Filter(products, opts.query), nil
}

func resolveOutputPath(path, dir string) (string, error) {
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		return absPath, nil
	}
	if dir == "" {
		dir = "csv"
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	filename := fmt.Sprintf("ranked_%s.csv", time.Now().Format("20060102150405"))
	return filepath.Join(absDir, filename), nil
}

func printSummary(out io.Writer, results []ranker.ScoredCandidate) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "==== Ranked results ====")
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s [%s]\n", i+1, summarize(r.Name), r.Marketplace)
		if b := r.Breakdown; b != nil {
			fmt.Fprintf(out, "    score=%.3f relevance=%.3f rating=%.2f (%.1f) price=%.3f (%.2f)\n",
				r.Score, b.Relevance, b.RatingScore, b.RatingRaw, b.PriceScore, b.PriceRaw)
		} else {
			fmt.Fprintf(out, "    rating=%.1f (fallback order)\n", r.Rating)
		}
	}
}

func summarize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "(no name)"
	}
	runes := []rune(name)
	if len(runes) > 60 {
		return string(runes[:60]) + "…"
	}
	return name
}
