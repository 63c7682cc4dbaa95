package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordTokenizer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "ascii", in: "Electric Kettle, 1.7L!", want: []string{"electric", "kettle", "7l"}},
		{name: "cyrillic", in: "Чайник электрический", want: []string{"чайник", "электрический"}},
		{name: "fullwidth folded", in: "ＫＥＴＴＬＥ ５００", want: []string{"kettle", "500"}},
		{name: "single runes dropped", in: "a b c", want: []string{}},
		{name: "underscore kept", in: "usb_c cable", want: []string{"usb_c", "cable"}},
		{name: "empty", in: "", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WordTokenizer{}.Tokenize(tt.in)
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildVectorSpace_SmoothIDF(t *testing.T) {
	space, err := buildVectorSpace([]string{"red apple", "green apple"}, WordTokenizer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "green", "red"}, space.vocab)

	idfShared := 1.0
	idfUnique := math.Log(3.0/2.0) + 1
	norm := math.Sqrt(idfShared*idfShared + idfUnique*idfUnique)

	row := space.rows[0]
	assert.InDelta(t, idfShared/norm, row[0], 1e-12)
	assert.InDelta(t, 0.0, row[1], 1e-12)
	assert.InDelta(t, idfUnique/norm, row[2], 1e-12)
}

func TestBuildVectorSpace_TermCounts(t *testing.T) {
	space, err := buildVectorSpace([]string{"tea tea cup", "cup"}, WordTokenizer{})
	require.NoError(t, err)
	// cup appears in both docs (idf 1), tea in one.
	idfTea := math.Log(3.0/2.0) + 1
	norm := math.Sqrt(1 + 4*idfTea*idfTea)
	assert.InDelta(t, 1/norm, space.rows[0][0], 1e-12)
	assert.InDelta(t, 2*idfTea/norm, space.rows[0][1], 1e-12)
	assert.InDelta(t, 1.0, space.rows[1][0], 1e-12)
}

func TestBuildVectorSpace_EmptyVocabulary(t *testing.T) {
	space, err := buildVectorSpace([]string{"", " ", "x"}, WordTokenizer{})
	require.NoError(t, err)
	assert.Empty(t, space.vocab)
	for _, row := range space.rows {
		assert.Empty(t, row)
	}
}

func TestTFIDFRelevance(t *testing.T) {
	rel := TFIDFRelevance(nil)
	got, err := rel("steel kettle", []string{"steel kettle", "kettle", "garden hose", ""})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.InDelta(t, 1.0, got[0], 1e-9)
	assert.Greater(t, got[1], 0.0)
	assert.Less(t, got[1], got[0])
	assert.Zero(t, got[2])
	assert.Zero(t, got[3])
	for _, v := range got {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.Zero(t, cosineSimilarity(nil, []float64{1}))
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
}
