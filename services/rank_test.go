package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRankTable_Bands(t *testing.T) {
	tests := []struct {
		points float64
		want   int
	}{
		{0, 0},
		{0.5, 0},
		{1, 1},
		{25, 1},
		{499.99, 1},
		{500, 2},
		{1999, 2},
		{2000, 3},
		{5000, 4},
		{10000, 5},
		{20000, 6},
		{35000, 7},
		{50000, 8},
		{74999.5, 8},
		{75000, 9},
		{1e12, 9},
		{math.Inf(1), 9},
		{-3, 0},
	}
	ranks := DefaultRankTable()
	for _, tt := range tests {
		assert.Equal(t, tt.want, ranks.CalculateRank(tt.points), "points=%v", tt.points)
	}
}

func TestDefaultRankTable_PartitionsWithoutGaps(t *testing.T) {
	bands := DefaultRankTable().Bands()
	require.NotEmpty(t, bands)

	assert.Equal(t, 0.0, bands[0].Min)
	for i := 1; i < len(bands); i++ {
		require.NotNil(t, bands[i-1].Max)
		assert.Equal(t, *bands[i-1].Max, bands[i].Min, "band %d must start where %d ends", bands[i].ID, bands[i-1].ID)
		assert.Greater(t, bands[i].ID, bands[i-1].ID)
	}
	assert.Nil(t, bands[len(bands)-1].Max)
}

func TestRankTable_MonotonicAndTotal(t *testing.T) {
	ranks := DefaultRankTable()
	prev := ranks.CalculateRank(0)
	for p := 0.0; p <= 100000; p += 7.25 {
		band := ranks.Band(p)
		assert.True(t, band.contains(p), "band %d must contain %v", band.ID, p)
		r := band.ID
		assert.GreaterOrEqual(t, r, prev, "rank must not decrease at %v", p)
		prev = r
	}
}

func TestRankTable_BandsReturnsCopy(t *testing.T) {
	ranks := DefaultRankTable()
	bands := ranks.Bands()
	bands[0].Name = "changed"
	assert.Equal(t, "Initiate", ranks.Bands()[0].Name)
}

func TestLoadRankTable_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "bands: []"},
		{"not starting at zero", "bands:\n  - {id: 0, name: a, min: 1}"},
		{"gap", "bands:\n  - {id: 0, name: a, min: 0, max: 10}\n  - {id: 1, name: b, min: 11}"},
		{"overlap", "bands:\n  - {id: 0, name: a, min: 0, max: 10}\n  - {id: 1, name: b, min: 5}"},
		{"bounded top", "bands:\n  - {id: 0, name: a, min: 0, max: 10}"},
		{"unbounded middle", "bands:\n  - {id: 0, name: a, min: 0}\n  - {id: 1, name: b, min: 10}"},
		{"ids not increasing", "bands:\n  - {id: 1, name: a, min: 0, max: 10}\n  - {id: 1, name: b, min: 10}"},
		{"malformed", "bands: {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRankTable([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestLoadRankTable_Custom(t *testing.T) {
	ranks, err := LoadRankTable([]byte("bands:\n  - {id: 0, name: low, min: 0, max: 10}\n  - {id: 1, name: high, min: 10}"))
	require.NoError(t, err)

	assert.Equal(t, 0, ranks.CalculateRank(9.99))
	assert.Equal(t, 1, ranks.CalculateRank(10))
	assert.Equal(t, "high", ranks.Band(1e9).Name)
}
