package app

import (
	"context"
	"fmt"

	fyneapp "fyne.io/fyne/v2/app"
	"go.uber.org/zap"

	"yashubustudio/zsearch/internal/catalog"
	"yashubustudio/zsearch/internal/config"
	"yashubustudio/zsearch/internal/logging"
	"yashubustudio/zsearch/internal/store"
	"yashubustudio/zsearch/ranker"
)

const fyneAppID = "yashubustudio.zsearch"

// Run loads configuration, opens the database and starts the desktop UI.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pane := newLogPane(300)
	logger, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Extra: pane})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	st, err := store.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Errorw("database unavailable", "error", err)
		return err
	}
	defer func() { _ = st.Close() }()

	catalog.SetColumnCandidates(catalog.ColumnCandidatesFromConfig(cfg.Columns))
	svc := NewService(cfg, st, catalog.NewSearcher(cfg, logger), NewRanker(cfg, logger), logger)
	logger.Infow("application started", "mock_data", cfg.UseMockData, "top_n", cfg.Ranker.TopN)

	a := fyneapp.NewWithID(fyneAppID)
	u := buildUI(a, svc, pane)
	u.w.ShowAndRun()
	return nil
}

// NewRanker builds the ranker configured by cfg.
func NewRanker(cfg config.Config, logger *zap.SugaredLogger) *ranker.Ranker {
	return ranker.NewFromTokenizerFile(cfg.Ranker.TokenizerPath, logger)
}
