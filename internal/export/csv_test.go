package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"yashubustudio/zsearch/ranker"
)

func readBack(t *testing.T, data []byte) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte(bom)), "missing BOM")
	rows, err := csv.NewReader(bytes.NewReader(data[len(bom):])).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV(t *testing.T) {
	products := []ranker.Candidate{
		{
			Name:         `Kettle "Pro"`,
			Marketplace:  "Wildberries",
			Price:        1299.5,
			Rating:       4.7,
			ReviewsCount: 31,
			DeliveryTime: "2 days",
			Description:  "steel\r\nbody\nwith lid",
			ProductURL:   "https://example.com/k",
			ImageURL:     "https://example.com/k.png",
		},
		{Name: "Mug", Marketplace: "Ozon"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, products, nil))

	rows := readBack(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{
		`Kettle "Pro"`, "Wildberries", "1299.5", "4.7", "31", "2 days",
		"steel body with lid", "https://example.com/k", "https://example.com/k.png",
	}, rows[1])
	assert.Equal(t, "", rows[2][2], "unknown price is blank")

	body := strings.TrimPrefix(buf.String(), bom)
	assert.True(t, strings.HasPrefix(body, `"name","marketplace","price"`))
	assert.Contains(t, body, `"1299.5"`)
	assert.NotContains(t, body, "\r\nbody")
}

func TestWriteCSV_EmptyWritesNothing(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, zap.New(core).Sugar()))
	assert.Zero(t, buf.Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestWriteScoredCSV(t *testing.T) {
	results := []ranker.ScoredCandidate{
		{
			Candidate: ranker.Candidate{Name: "Kettle", Price: 100, Rating: 5},
			Score:     0.75,
			Breakdown: &ranker.Breakdown{Relevance: 0.5, PriceScore: 0.25, RatingScore: 1},
		},
		{Candidate: ranker.Candidate{Name: "Lamp", Rating: 3}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteScoredCSV(&buf, results, nil))

	rows := readBack(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, append(append([]string(nil), Columns...), ScoreColumns...), rows[0])
	assert.Equal(t, []string{"0.75", "0.5", "0.25", "1"}, rows[1][len(Columns):])
	assert.Equal(t, []string{"0", "", "", ""}, rows[2][len(Columns):])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "export.csv")
	require.NoError(t, WriteFile(path, []ranker.Candidate{{Name: "Mug"}}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows := readBack(t, data)
	assert.Len(t, rows, 2)
}
