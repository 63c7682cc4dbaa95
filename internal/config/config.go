// Package config loads application settings from an optional YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "config.yaml"

// Config aggregates runtime settings.
type Config struct {
	DatabaseURL string `koanf:"database_url" yaml:"database_url"`
	LogFile     string `koanf:"log_file" yaml:"log_file"`
	LogLevel    string `koanf:"log_level" yaml:"log_level"`

	UseMockData bool     `koanf:"use_mock_data" yaml:"use_mock_data"`
	MockDataDir string   `koanf:"mock_data_dir" yaml:"mock_data_dir"`
	MockFiles   []string `koanf:"mock_files" yaml:"mock_files"`

	// PriceMarkupPercentage feeds the recommended price shown in details.
	PriceMarkupPercentage float64 `koanf:"price_markup_percentage" yaml:"price_markup_percentage"`

	Ranker       RankerConfig  `koanf:"ranker" yaml:"ranker"`
	HistoryLimit int           `koanf:"history_limit" yaml:"history_limit"`
	Columns      ColumnHeaders `koanf:"columns" yaml:"columns,omitempty"`
}

// ColumnHeaders lists extra header names recognised when reading CSV/TSV
// catalogues. An empty list keeps the built-in names for that field.
type ColumnHeaders struct {
	ID           []string `koanf:"id" yaml:"id,omitempty"`
	Name         []string `koanf:"name" yaml:"name,omitempty"`
	Description  []string `koanf:"description" yaml:"description,omitempty"`
	Price        []string `koanf:"price" yaml:"price,omitempty"`
	Rating       []string `koanf:"rating" yaml:"rating,omitempty"`
	ReviewsCount []string `koanf:"reviews_count" yaml:"reviews_count,omitempty"`
	Marketplace  []string `koanf:"marketplace" yaml:"marketplace,omitempty"`
	DeliveryTime []string `koanf:"delivery_time" yaml:"delivery_time,omitempty"`
	ImageURL     []string `koanf:"image_url" yaml:"image_url,omitempty"`
	ProductURL   []string `koanf:"product_url" yaml:"product_url,omitempty"`
}

// RankerConfig controls the recommendation panel.
type RankerConfig struct {
	TopN          int    `koanf:"top_n" yaml:"top_n"`
	TokenizerPath string `koanf:"tokenizer_path" yaml:"tokenizer_path"`
}

// Defaults for non-secret configuration.
const (
	DefaultDatabaseURL           = "sqlite://app.db"
	DefaultLogFile               = "logs/app.log"
	DefaultLogLevel              = "info"
	DefaultUseMockData           = true
	DefaultMockDataDir           = "mocks"
	DefaultPriceMarkupPercentage = 10.0
	DefaultTopN                  = 4
	DefaultHistoryLimit          = 20
)

// DefaultMockFiles are searched in this order.
var DefaultMockFiles = []string{
	"wildberries_mock.json",
	"yandex_market_mock.json",
	"aliexpress_mock.json",
}

// Validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrInvalidLogLevel    = errors.New("LOG_LEVEL must be one of debug, info, warn, error")
	ErrNegativeMarkup     = errors.New("PRICE_MARKUP_PERCENTAGE must not be negative")
	ErrInvalidTopN        = errors.New("ranker.top_n must be positive")
)

// Default returns a configuration with every default applied.
func Default() Config {
	cfg := Config{UseMockData: DefaultUseMockData}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults populates zero values with sensible defaults.
// UseMockData is left alone since false is a meaningful choice.
func (c *Config) ApplyDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = DefaultDatabaseURL
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.MockDataDir == "" {
		c.MockDataDir = DefaultMockDataDir
	}
	if len(c.MockFiles) == 0 {
		c.MockFiles = append([]string(nil), DefaultMockFiles...)
	}
	if c.Ranker.TopN == 0 {
		c.Ranker.TopN = DefaultTopN
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
}

// Clone creates a deep copy so callers can mutate safely.
func (c Config) Clone() Config {
	out := c
	out.MockFiles = append([]string(nil), c.MockFiles...)
	out.Columns = c.Columns.clone()
	return out
}

func (h ColumnHeaders) clone() ColumnHeaders {
	return ColumnHeaders{
		ID:           cloneList(h.ID),
		Name:         cloneList(h.Name),
		Description:  cloneList(h.Description),
		Price:        cloneList(h.Price),
		Rating:       cloneList(h.Rating),
		ReviewsCount: cloneList(h.ReviewsCount),
		Marketplace:  cloneList(h.Marketplace),
		DeliveryTime: cloneList(h.DeliveryTime),
		ImageURL:     cloneList(h.ImageURL),
		ProductURL:   cloneList(h.ProductURL),
	}
}

func cloneList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}

// Load reads configuration from path (or DefaultPath) and the environment.
// A missing file is not an error. Environment variables take precedence
// over file values.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat config file %s: %w", path, err)
	}

	var loadErrs []error

	useMock := DefaultUseMockData
	if k.Exists("use_mock_data") {
		useMock = k.Bool("use_mock_data")
	}
	if val := os.Getenv("USE_MOCK_DATA"); val != "" {
		b, err := parseBool(val)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("USE_MOCK_DATA: %w", err))
		} else {
			useMock = b
		}
	}

	markup, err := getEnvFloatOrDefault("PRICE_MARKUP_PERCENTAGE", k, "price_markup_percentage", DefaultPriceMarkupPercentage)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	topN, err := getEnvIntOrDefault("ZSEARCH_TOP_N", k.Int("ranker.top_n"), DefaultTopN)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := Config{
		DatabaseURL:           getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		LogFile:               getEnvOrDefault("LOG_FILE", k, "log_file", DefaultLogFile),
		LogLevel:              getEnvOrKoanf("LOG_LEVEL", k, "log_level"),
		UseMockData:           useMock,
		MockDataDir:           getEnvOrKoanf("MOCK_DATA_DIR", k, "mock_data_dir"),
		MockFiles:             k.Strings("mock_files"),
		PriceMarkupPercentage: markup,
		Ranker: RankerConfig{
			TopN:          topN,
			TokenizerPath: getEnvOrKoanf("ZSEARCH_TOKENIZER", k, "ranker.tokenizer_path"),
		},
		HistoryLimit: k.Int("history_limit"),
		Columns: ColumnHeaders{
			ID:           koanfList(k, "columns.id"),
			Name:         koanfList(k, "columns.name"),
			Description:  koanfList(k, "columns.description"),
			Price:        koanfList(k, "columns.price"),
			Rating:       koanfList(k, "columns.rating"),
			ReviewsCount: koanfList(k, "columns.reviews_count"),
			Marketplace:  koanfList(k, "columns.marketplace"),
			DeliveryTime: koanfList(k, "columns.delivery_time"),
			ImageURL:     koanfList(k, "columns.image_url"),
			ProductURL:   koanfList(k, "columns.product_url"),
		},
	}
	cfg.ApplyDefaults()

	errs := append(loadErrs, cfg.Validate()...)
	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() []error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ErrInvalidLogLevel)
	}
	if c.PriceMarkupPercentage < 0 {
		errs = append(errs, ErrNegativeMarkup)
	}
	if c.Ranker.TopN <= 0 {
		errs = append(errs, ErrInvalidTopN)
	}
	return errs
}

// Save persists configuration to disk.
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	cfg.ApplyDefaults()
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func koanfList(k *koanf.Koanf, key string) []string {
	if !k.Exists(key) {
		return nil
	}
	return cloneList(k.Strings(key))
}

func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

func getEnvOrDefault(envKey string, k *koanf.Koanf, koanfKey, defaultVal string) string {
	if val := getEnvOrKoanf(envKey, k, koanfKey); val != "" {
		return val
	}
	// An explicit empty value in the file disables the option.
	if k.Exists(koanfKey) {
		return ""
	}
	return defaultVal
}

func getEnvIntOrDefault(envKey string, koanfVal, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault lets a file value of 0 stand, unlike the int helper:
// a zero markup is a valid setting.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return defaultVal, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", val)
}
