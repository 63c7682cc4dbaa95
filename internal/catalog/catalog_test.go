package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"yashubustudio/zsearch/internal/config"
	"yashubustudio/zsearch/ranker"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultMarketplace(t *testing.T) {
	tests := map[string]string{
		"mocks/wildberries_mock.json": "Wildberries",
		"yandex_market_mock.json":     "Yandex",
		"/tmp/ALIEXPRESS_mock.csv":    "Aliexpress",
		"ozon.tsv":                    "Ozon",
		"_hidden.json":                "",
		"озон_mock.json":              "Озон",
	}
	for path, want := range tests {
		assert.Equal(t, want, DefaultMarketplace(path), path)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1299", 1299},
		{"1299.5", 1299.5},
		{"1 299,50", 1299.5},
		{"4,8", 4.8},
		{"1,299.00", 1299},
		{"1 999 ₽", 1999},
		{"", 0},
		{"n/a", 0},
		{"NaN", 0},
		{"Inf", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ParseNumber(tt.in), 1e-9, tt.in)
	}
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "wildberries_mock.json", `[
		{"id": 7, "name": "Kettle", "description": "steel", "price": "1 299,50", "rating": 4.5, "reviews_count": 12},
		{"name": "Mug", "price": "free", "rating": null, "marketplace": "Ozon", "product_url": "https://x/mug"},
		null
	]`)

	products, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "7", products[0].ID)
	assert.Equal(t, "Wildberries", products[0].Marketplace)
	assert.InDelta(t, 1299.5, products[0].Price, 1e-9)
	assert.InDelta(t, 4.5, products[0].Rating, 1e-9)
	assert.Equal(t, 12, products[0].ReviewsCount)

	assert.Equal(t, "Ozon", products[1].Marketplace)
	assert.Zero(t, products[1].Price)
	assert.Zero(t, products[1].Rating)
	assert.Equal(t, SyntheticID("Ozon", "Mug"), products[1].ID)
	assert.Equal(t, "https://x/mug", products[1].ProductURL)
}

func TestLoadFile_SyntheticIDIsStable(t *testing.T) {
	assert.Equal(t, SyntheticID("Ozon", "Mug"), SyntheticID("Ozon", "Mug"))
	assert.NotEqual(t, SyntheticID("Ozon", "Mug"), SyntheticID("Wildberries", "Mug"))
}

func TestLoadFile_CSVDetectsHeaders(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "ozon_mock.csv", "\ufeffНазвание,Описание,Цена,Рейтинг,Отзывы\n"+
		"Чайник,стальной,\"1 299,00\",\"4,7\",31\n"+
		",empty name row,1,1,1\n")

	products, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Чайник", products[0].Name)
	assert.Equal(t, "стальной", products[0].Description)
	assert.InDelta(t, 1299.0, products[0].Price, 1e-9)
	assert.InDelta(t, 4.7, products[0].Rating, 1e-9)
	assert.Equal(t, 31, products[0].ReviewsCount)
	assert.Equal(t, "Ozon", products[0].Marketplace)
}

func TestLoadFileWithOptions_ExplicitColumns(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "shop_list.tsv", "a\tb\tc\nLamp\tdesk lamp\t990\n")

	products, err := LoadFileWithOptions(path, ParseOptions{NameColumn: "#1", DescriptionColumn: "b", PriceColumn: "#3"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Lamp", products[0].Name)
	assert.Equal(t, "desk lamp", products[0].Description)
	assert.InDelta(t, 990.0, products[0].Price, 1e-9)

	_, err = LoadFileWithOptions(path, ParseOptions{NameColumn: "#9"})
	assert.ErrorContains(t, err, "out of range")
	_, err = LoadFileWithOptions(path, ParseOptions{NameColumn: "#0"})
	assert.ErrorContains(t, err, "1-based")
	_, err = LoadFileWithOptions(path, ParseOptions{NameColumn: "missing"})
	assert.ErrorContains(t, err, "not found")
}

func TestLoadFile_NoNameColumn(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "x_mock.csv", "foo,bar\n1,2\n")
	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrNoNameColumn)
}

func TestSetColumnCandidates(t *testing.T) {
	t.Cleanup(func() { SetColumnCandidates(DefaultColumnCandidates()) })
	SetColumnCandidates(ColumnCandidates{Name: []string{"item"}})

	got := getColumnCandidates()
	assert.Equal(t, []string{"item"}, got.Name)
	assert.Equal(t, DefaultColumnCandidates().Price, got.Price)

	dir := t.TempDir()
	path := write(t, dir, "x_mock.csv", "item,price\nFan,10\n")
	products, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Fan", products[0].Name)
}

func TestColumnCandidatesFromConfig(t *testing.T) {
	got := ColumnCandidatesFromConfig(config.ColumnHeaders{
		Name:  []string{"позиция"},
		Price: []string{},
	})
	assert.Equal(t, []string{"позиция"}, got.Name)
	assert.Equal(t, DefaultColumnCandidates().Price, got.Price)
	assert.Equal(t, DefaultColumnCandidates().Rating, got.Rating)

	t.Cleanup(func() { SetColumnCandidates(DefaultColumnCandidates()) })
	SetColumnCandidates(got)
	dir := t.TempDir()
	path := write(t, dir, "ozon_list.tsv", "позиция\tцена\nЧайник\t1 299,50\n")
	products, err := LoadFileWithOptions(path, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Чайник", products[0].Name)
	assert.InDelta(t, 1299.5, products[0].Price, 1e-9)
}

func TestFilter(t *testing.T) {
	products := []ranker.Candidate{
		{Name: "Red Kettle"},
		{Name: "Mug", Description: "fits a KETTLE lid"},
		{Name: "Lamp"},
	}
	assert.Len(t, Filter(products, "kettle"), 2)
	assert.Len(t, Filter(products, "  "), 3)
	assert.Empty(t, Filter(products, "sofa"))
	assert.NotNil(t, Filter(nil, "x"))
}

func TestSearcher_Search(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "wildberries_mock.json", `[{"name":"Kettle A","price":100},{"name":"Lamp"}]`)
	write(t, dir, "aliexpress_mock.json", `[{"name":"Kettle B","price":80}]`)
	write(t, dir, "broken_mock.json", `{not json`)

	core, logs := observer.New(zap.DebugLevel)
	cfg := config.Default()
	cfg.MockDataDir = dir
	cfg.MockFiles = []string{"wildberries_mock.json", "missing_mock.json", "broken_mock.json", "aliexpress_mock.json"}

	s := NewSearcher(cfg, zap.New(core).Sugar())
	found, err := s.Search(context.Background(), "kettle")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Kettle A", found[0].Name)
	assert.Equal(t, "Wildberries", found[0].Marketplace)
	assert.Equal(t, "Aliexpress", found[1].Marketplace)

	assert.Equal(t, 1, logs.FilterMessage("catalogue file not found").Len())
	assert.Equal(t, 1, logs.FilterMessage("catalogue file unreadable").Len())
}

func TestSearcher_Disabled(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := config.Default()
	cfg.UseMockData = false

	found, err := NewSearcher(cfg, zap.New(core).Sugar()).Search(context.Background(), "kettle")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestSearcher_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSearcher(config.Default(), nil).Search(ctx, "kettle")
	assert.ErrorIs(t, err, context.Canceled)
}
