package optimization

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(offset int) time.Time {
	return testStart.AddDate(0, 0, offset)
}

func TestAlignSeries_DropsDatesMissingForAnyAsset(t *testing.T) {
	series := []AssetSeries{
		{Symbol: "SPY", Points: []PricePoint{
			{Date: day(0), AdjClose: 100},
			{Date: day(1), AdjClose: 101},
			{Date: day(2), AdjClose: 102},
			{Date: day(3), AdjClose: 103},
		}},
		{Symbol: "BND", Points: []PricePoint{
			{Date: day(0), AdjClose: 50},
			{Date: day(2), AdjClose: 51},
			{Date: day(3), AdjClose: 52},
			{Date: day(4), AdjClose: 53},
		}},
	}

	prices, report, err := AlignSeries(series)
	require.NoError(t, err)

	rows, assets := prices.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, assets)
	assert.Equal(t, []string{"SPY", "BND"}, prices.Symbols)
	assert.Equal(t, []time.Time{day(0), day(2), day(3)}, prices.Dates)
	assert.Equal(t, 102.0, prices.Prices.At(1, 0))
	assert.Equal(t, 51.0, prices.Prices.At(1, 1))

	assert.Equal(t, 5, report.TotalDates)
	assert.Equal(t, 3, report.KeptDates)
	require.Equal(t, 2, report.DroppedCount())
	assert.Equal(t, day(1), report.Dropped[0].Date)
	assert.Equal(t, []string{"BND"}, report.Dropped[0].Missing)
	assert.Equal(t, day(4), report.Dropped[1].Date)
	assert.Equal(t, []string{"SPY"}, report.Dropped[1].Missing)
}

func TestAlignSeries_TruncatesTimestampsToDay(t *testing.T) {
	series := []AssetSeries{
		{Symbol: "A", Points: []PricePoint{{Date: day(0).Add(16 * time.Hour), AdjClose: 1}, {Date: day(1).Add(16 * time.Hour), AdjClose: 2}}},
		{Symbol: "B", Points: []PricePoint{{Date: day(0), AdjClose: 3}, {Date: day(1), AdjClose: 4}}},
	}

	prices, report, err := AlignSeries(series)
	require.NoError(t, err)

	rows, _ := prices.Dims()
	assert.Equal(t, 2, rows)
	assert.Zero(t, report.DroppedCount())
}

func TestAlignSeries_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		series []AssetSeries
		symbol string
	}{
		{
			name: "duplicate symbol",
			series: []AssetSeries{
				{Symbol: "A", Points: []PricePoint{{Date: day(0), AdjClose: 1}}},
				{Symbol: "A", Points: []PricePoint{{Date: day(0), AdjClose: 1}}},
			},
			symbol: "A",
		},
		{
			name: "duplicate date",
			series: []AssetSeries{
				{Symbol: "A", Points: []PricePoint{{Date: day(0), AdjClose: 1}, {Date: day(0), AdjClose: 2}}},
			},
			symbol: "A",
		},
		{
			name: "unsorted dates",
			series: []AssetSeries{
				{Symbol: "B", Points: []PricePoint{{Date: day(2), AdjClose: 1}, {Date: day(1), AdjClose: 2}}},
			},
			symbol: "B",
		},
		{
			name: "zero price",
			series: []AssetSeries{
				{Symbol: "C", Points: []PricePoint{{Date: day(0), AdjClose: 0}}},
			},
			symbol: "C",
		},
		{
			name: "empty symbol",
			series: []AssetSeries{
				{Symbol: "", Points: []PricePoint{{Date: day(0), AdjClose: 1}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := AlignSeries(tt.series)
			require.Error(t, err)

			var invalid InvalidSeriesError
			require.True(t, errors.As(err, &invalid), "got %T", err)
			assert.Equal(t, tt.symbol, invalid.Symbol)
		})
	}
}

func TestAlignSeries_EmptyInput(t *testing.T) {
	prices, report, err := AlignSeries(nil)
	require.NoError(t, err)

	rows, assets := prices.Dims()
	assert.Zero(t, rows)
	assert.Zero(t, assets)
	assert.Zero(t, report.TotalDates)

	_, _, _, err = Estimate(prices)
	var insufficient InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))
}
