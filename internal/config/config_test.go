package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DATABASE_URL", "LOG_FILE", "LOG_LEVEL", "USE_MOCK_DATA",
	"PRICE_MARKUP_PERCENTAGE", "MOCK_DATA_DIR", "ZSEARCH_TOKENIZER", "ZSEARCH_TOP_N",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, DefaultLogFile, cfg.LogFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.UseMockData)
	assert.Equal(t, DefaultMockDataDir, cfg.MockDataDir)
	assert.Equal(t, DefaultMockFiles, cfg.MockFiles)
	assert.Equal(t, DefaultPriceMarkupPercentage, cfg.PriceMarkupPercentage)
	assert.Equal(t, DefaultTopN, cfg.Ranker.TopN)
	assert.Equal(t, DefaultHistoryLimit, cfg.HistoryLimit)
}

func TestLoad_FileValues(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
database_url: postgres://localhost/zsearch
log_level: DEBUG
log_file: ""
use_mock_data: false
mock_data_dir: data
mock_files: [ozon_mock.json]
price_markup_percentage: 0
history_limit: 5
ranker:
  top_n: 6
  tokenizer_path: models/tokenizer.json
columns:
  name: [позиция, item]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/zsearch", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
	assert.False(t, cfg.UseMockData)
	assert.Equal(t, "data", cfg.MockDataDir)
	assert.Equal(t, []string{"ozon_mock.json"}, cfg.MockFiles)
	assert.Zero(t, cfg.PriceMarkupPercentage)
	assert.Equal(t, 5, cfg.HistoryLimit)
	assert.Equal(t, 6, cfg.Ranker.TopN)
	assert.Equal(t, "models/tokenizer.json", cfg.Ranker.TokenizerPath)
	assert.Equal(t, []string{"позиция", "item"}, cfg.Columns.Name)
	assert.Nil(t, cfg.Columns.Price)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "use_mock_data: false\nprice_markup_percentage: 3\n")
	t.Setenv("USE_MOCK_DATA", "yes")
	t.Setenv("PRICE_MARKUP_PERCENTAGE", "12.5")
	t.Setenv("DATABASE_URL", "sqlite://other.db")
	t.Setenv("ZSEARCH_TOP_N", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.UseMockData)
	assert.Equal(t, 12.5, cfg.PriceMarkupPercentage)
	assert.Equal(t, "sqlite://other.db", cfg.DatabaseURL)
	assert.Equal(t, 2, cfg.Ranker.TopN)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICE_MARKUP_PERCENTAGE", "ten")
	t.Setenv("LOG_LEVEL", "chatty")
	t.Setenv("USE_MOCK_DATA", "maybe")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
	assert.Contains(t, err.Error(), "PRICE_MARKUP_PERCENTAGE")
	assert.Contains(t, err.Error(), "USE_MOCK_DATA")
}

func TestLoad_BrokenFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "ranker: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())

	cfg.PriceMarkupPercentage = -1
	cfg.Ranker.TopN = -2
	cfg.DatabaseURL = " "
	errs := cfg.Validate()
	assert.Contains(t, errs, ErrNegativeMarkup)
	assert.Contains(t, errs, ErrInvalidTopN)
	assert.Contains(t, errs, ErrMissingDatabaseURL)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.UseMockData = false
	cfg.PriceMarkupPercentage = 7.5
	cfg.Ranker.TopN = 3
	cfg.MockFiles = []string{"a_mock.json", "b_mock.csv"}

	require.NoError(t, Save(path, cfg))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestClone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.MockFiles[0] = "changed.json"
	assert.Equal(t, DefaultMockFiles[0], cfg.MockFiles[0])
}
