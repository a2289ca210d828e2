package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsScenario(t *testing.T) {

	agg := NewAggregate()
	agg.EnsureBins(50, 2400)
	agg.Discharge.Add(120, 90, 50, 2400, testNow)
	agg.Discharge.Add(130, 92, 50, 2400, testNow)

	points := Points(agg.Discharge)
	require.Len(t, points, 1)
	assert.Equal(t, Point{Bin: "100-150", X: 125.0, Y: 91.0, N: 2}, points[0])
	assert.Equal(t, "91.00", FormatSummary(Summary(points)))

	assert.Empty(t, Points(agg.Charge))
	assert.Equal(t, "0.00", FormatSummary(Summary(Points(agg.Charge))))
}

func TestPointsSortedAndRounded(t *testing.T) {

	agg := NewAggregate()
	agg.EnsureBins(75, 2400)
	agg.Charge.Add(2000, 80.126, 75, 2400, testNow)
	agg.Charge.Add(10, 70.004, 75, 2400, testNow)
	agg.Charge.Add(800, 93.456, 75, 2400, testNow)

	points := Points(agg.Charge)
	require.Len(t, points, 3)
	for i := 1; i < len(points); i++ {
		assert.Less(t, points[i-1].X, points[i].X)
	}
	assert.Equal(t, "0-75", points[0].Bin)
	assert.InDelta(t, 37.5, points[0].X, 1e-9)
	assert.InDelta(t, 70.0, points[0].Y, 1e-9)
	assert.InDelta(t, 80.13, points[2].Y, 1e-9)
	assert.InDelta(t, 93.46, Summary(points), 1e-9)
}

func TestPointsSkipEmptyAndMalformed(t *testing.T) {

	mean := 90.0
	bins := Bins{
		"0-50":    {},
		"50-100":  {N: 0, Mean: &mean},
		"bogus":   {N: 4, Mean: &mean},
		"100-150": nil,
		"150-200": {N: 1, Mean: &mean},
	}
	points := Points(bins)
	require.Len(t, points, 1)
	assert.Equal(t, "150-200", points[0].Bin)
}

func TestSummaryUsesMaximum(t *testing.T) {

	points := []Point{{Y: 50}, {Y: 97.5}, {Y: 60}}
	assert.Equal(t, 97.5, Summary(points))
	assert.Equal(t, 0.0, Summary(nil))
}

func TestRoundTiesToEven(t *testing.T) {

	// exact binary halves round to the even neighbour
	assert.Equal(t, 91.12, round(91.125, 2))
	assert.Equal(t, 91.38, round(91.375, 2))
	assert.Equal(t, 12.2, round(12.25, 1))
	assert.Equal(t, 12.3, round(12.35, 1), "12.35 is stored slightly below the half")
	assert.Equal(t, 2.67, round(2.675, 2))
	assert.Equal(t, -91.12, round(-91.125, 2))

	mean := 91.125
	points := Points(Bins{"100-150": {N: 8, Mean: &mean}})
	require.Len(t, points, 1)
	assert.Equal(t, 91.12, points[0].Y)
}
