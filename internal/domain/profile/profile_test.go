package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBins(prices, volumes []float64) []Bin {
	bins := make([]Bin, len(prices))
	for i := range prices {
		bins[i] = Bin{Price: prices[i], Value: volumes[i]}
	}
	return bins
}

func makeBinsAutoPrice(volumes []float64) []Bin {
	bins := make([]Bin, len(volumes))
	for i, v := range volumes {
		bins[i] = Bin{Price: 100.0 + float64(i), Value: v}
	}
	return bins
}

func TestEmptyBinsReturnsZeroStats(t *testing.T) {
	stats, err := Compute(nil, 0.7, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestZeroTotalValueIsNoCandidates(t *testing.T) {
	bins := makeBinsAutoPrice([]float64{0, 0, 0})
	_, err := Compute(bins, 0.7, LowestPrice, HighestVolume)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestSingleBinAllEqualPOC(t *testing.T) {
	bins := makeBins([]float64{101.0}, []float64{42.0})
	stats, err := Compute(bins, 0.7, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 101.0, stats.POC)
	assert.Equal(t, 101.0, stats.ValueAreaLow)
	assert.Equal(t, 101.0, stats.ValueAreaHi)
}

func TestPocSingleClearWinner(t *testing.T) {
	bins := makeBins([]float64{100, 101, 102}, []float64{10, 50, 10})
	stats, err := Compute(bins, 0.7, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 101.0, stats.POC)
}

func TestPocRuleLowestPrice(t *testing.T) {
	bins := makeBins([]float64{100, 101, 102}, []float64{50, 10, 50})
	stats, err := Compute(bins, 0.7, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stats.POC)
}

func TestPocRuleHighestPrice(t *testing.T) {
	bins := makeBins([]float64{100, 101, 102}, []float64{50, 10, 50})
	stats, err := Compute(bins, 0.7, HighestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 102.0, stats.POC)
}

func TestPocRuleClosestToCenterOdd(t *testing.T) {
	bins := makeBins(
		[]float64{100, 101, 102, 103, 104},
		[]float64{10, 50, 50, 50, 10},
	)
	stats, err := Compute(bins, 0.7, ClosestToCenter, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 102.0, stats.POC)
}

func TestPocFloatingPointEpsilonEquivalence(t *testing.T) {
	v1 := 0.1 + 0.2
	v2 := 0.3
	v3 := 0.1 + 0.1 + 0.1

	bins := makeBins([]float64{100, 100.5, 101}, []float64{v1, v3, v2})

	stats, err := Compute(bins, 0.7, HighestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 101.0, stats.POC)

	stats, err = Compute(bins, 0.7, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stats.POC)

	stats, err = Compute(bins, 0.7, ClosestToCenter, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 100.5, stats.POC)
}

func TestValueAreaStandardHighestVolume(t *testing.T) {
	// S5 in spec.md: Bins volumes [5,10,50,20,15], f=0.7.
	bins := makeBinsAutoPrice([]float64{5, 10, 50, 20, 15})
	stats, err := Compute(bins, 0.7, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 102.0, stats.POC)
	assert.Equal(t, 102.0, stats.ValueAreaLow)
	assert.Equal(t, 103.0, stats.ValueAreaHi)
}

func TestValueAreaSymmetricExpansion(t *testing.T) {
	bins := makeBins(
		[]float64{100, 101, 102, 103, 104},
		[]float64{10, 10, 40, 10, 30},
	)
	stats, err := Compute(bins, 0.7, LowestPrice, Symmetric)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stats.ValueAreaLow)
	assert.Equal(t, 104.0, stats.ValueAreaHi)
}

func TestValueAreaFatPocImmediateSaturation(t *testing.T) {
	bins := makeBinsAutoPrice([]float64{5, 80, 15})
	stats, err := Compute(bins, 0.7, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 101.0, stats.POC)
	assert.Equal(t, 101.0, stats.ValueAreaLow)
	assert.Equal(t, 101.0, stats.ValueAreaHi)
}

func TestValueAreaBoundaryConstraints(t *testing.T) {
	bins := makeBinsAutoPrice([]float64{60, 20, 20})
	stats, err := Compute(bins, 0.7, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stats.POC)
	assert.Equal(t, 100.0, stats.ValueAreaLow)
	assert.Equal(t, 101.0, stats.ValueAreaHi)
}

func TestValueAreaTieBreakerPreferLower(t *testing.T) {
	bins := makeBins(
		[]float64{100, 101, 102, 103, 104},
		[]float64{10, 10, 50, 10, 10},
	)
	stats, err := Compute(bins, 0.7, LowestPrice, HighestVolumePreferLower)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stats.ValueAreaLow)
	assert.Equal(t, 102.0, stats.ValueAreaHi)
}

func TestValueAreaMonotonicityAcrossFraction(t *testing.T) {
	bins := makeBinsAutoPrice([]float64{5, 10, 50, 20, 15})
	low, err := Compute(bins, 0.4, LowestPrice, HighestVolume)
	require.NoError(t, err)
	high, err := Compute(bins, 0.9, LowestPrice, HighestVolume)
	require.NoError(t, err)

	assert.LessOrEqual(t, low.ValueAreaHi, high.ValueAreaHi)
	assert.GreaterOrEqual(t, low.ValueAreaLow, high.ValueAreaLow)
}

func TestValueAreaFullFractionSpansAll(t *testing.T) {
	bins := makeBinsAutoPrice([]float64{5, 10, 50, 20, 15})
	stats, err := Compute(bins, 1.0, LowestPrice, HighestVolume)
	require.NoError(t, err)
	assert.Equal(t, bins[0].Price, stats.ValueAreaLow)
	assert.Equal(t, bins[len(bins)-1].Price, stats.ValueAreaHi)
}
