package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"zero vector", []float32{0, 0}, []float32{0, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, sim, 1e-6)
			assert.LessOrEqual(t, sim, float32(1))
			assert.GreaterOrEqual(t, sim, float32(-1))
		})
	}
}

func TestCosineSimilarity_Errors(t *testing.T) {
	_, err := CosineSimilarity(nil, []float32{1})
	assert.ErrorIs(t, err, ErrEmptyVector)

	_, err = CosineSimilarity([]float32{1, 2}, []float32{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "2 vs 1")
}

func TestRankBySimilarity(t *testing.T) {
	candidates := map[string][]float32{
		"same":     {1, 0},
		"close":    {0.9, 0.1},
		"opposite": {-1, 0},
		"twin":     {2, 0},
		"bad":      {1, 0, 0},
		"empty":    {},
	}

	got := RankBySimilarity([]float32{1, 0}, candidates, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "same", got[0].ID)
	assert.Equal(t, "twin", got[1].ID)
	assert.Equal(t, "close", got[2].ID)

	all := RankBySimilarity([]float32{1, 0}, candidates, 10)
	require.Len(t, all, 4)
	assert.Equal(t, "opposite", all[3].ID)

	assert.Nil(t, RankBySimilarity([]float32{1, 0}, candidates, 0))
	assert.Nil(t, RankBySimilarity(nil, candidates, 3))
}
