package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spikeSeries() []float64 {
	values := make([]float64, 90)
	for i := range values {
		values[i] = 10
	}
	values[45] = 100
	return values
}

func TestOutliersFlagsSingleSpike(t *testing.T) {
	values := Standardize(spikeSeries())
	forest, err := Fit(values, DefaultConfig())
	require.NoError(t, err)

	flags := forest.Outliers(values)
	for i, flagged := range flags {
		if i == 45 {
			assert.True(t, flagged, "spike must be flagged")
			continue
		}
		assert.False(t, flagged, "index %d", i)
	}
}

func TestFitIsDeterministic(t *testing.T) {
	values := []float64{1, 2, 3, 2, 1, 2, 3, 9, 2, 1, 2, 3, 2, 1, 2}
	a, err := Fit(values, DefaultConfig())
	require.NoError(t, err)
	b, err := Fit(values, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Scores(values), b.Scores(values))
}

func TestScoreOrdersOutlierAboveInliers(t *testing.T) {
	values := []float64{1, 1.1, 0.9, 1, 1.05, 0.95, 1, 8}
	forest, err := Fit(values, DefaultConfig())
	require.NoError(t, err)
	assert.Greater(t, forest.Score(8), forest.Score(1))
}

func TestFitEmpty(t *testing.T) {
	_, err := Fit(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPercentileInterpolates(t *testing.T) {
	assert.InDelta(t, 3.7, Percentile([]float64{4, 1, 2, 3, 5}, 0.675), 1e-9)
	assert.Equal(t, 5.0, Percentile([]float64{4, 1, 5}, 1))
	assert.Zero(t, Percentile(nil, 0.9))
}

func TestStandardize(t *testing.T) {
	z := Standardize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, -1.5, z[0], 1e-9)
	assert.InDelta(t, 2, z[7], 1e-9)
	assert.Equal(t, []float64{0, 0, 0}, Standardize([]float64{3, 3, 3}))
}
