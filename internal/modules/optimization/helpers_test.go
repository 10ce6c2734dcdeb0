package optimization

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// twoAssetReturns repeats a 4-day pattern that gives A a mean of 0.001, B a
// mean of 0.0005, equal variances and exactly zero covariance.
func twoAssetReturns(cycles int) *LogReturnMatrix {
	s := []float64{1, -1, 1, -1}
	q := []float64{1, 1, -1, -1}
	rows := 4 * cycles
	data := make([]float64, 0, rows*2)
	dates := make([]time.Time, rows)
	for i := 0; i < rows; i++ {
		data = append(data, 0.001+0.01*s[i%4], 0.0005+0.01*q[i%4])
		dates[i] = testStart.AddDate(0, 0, i+1)
	}
	return &LogReturnMatrix{
		Dates:   dates,
		Symbols: []string{"A", "B"},
		Returns: mat.NewDense(rows, 2, data),
	}
}

// seriesFromReturns compounds log returns from a starting price of 100.
func seriesFromReturns(lr *LogReturnMatrix) []AssetSeries {
	rows, assets := lr.Dims()
	out := make([]AssetSeries, assets)
	for j := 0; j < assets; j++ {
		price := 100.0
		points := []PricePoint{{Date: testStart, AdjClose: price}}
		for i := 0; i < rows; i++ {
			price *= math.Exp(lr.Returns.At(i, j))
			points = append(points, PricePoint{Date: testStart.AddDate(0, 0, i+1), AdjClose: price})
		}
		out[j] = AssetSeries{Symbol: lr.Symbols[j], Points: points}
	}
	return out
}

// randomPrices builds a geometric random walk per asset with a fixed seed.
func randomPrices(seed int64, rows int, symbols []string) *PriceMatrix {
	rng := rand.New(rand.NewSource(seed))
	dates := make([]time.Time, rows)
	data := make([][]float64, rows)
	last := make([]float64, len(symbols))
	for j := range last {
		last[j] = 50 + 100*rng.Float64()
	}
	for i := 0; i < rows; i++ {
		dates[i] = testStart.AddDate(0, 0, i)
		row := make([]float64, len(symbols))
		for j := range symbols {
			drift := 0.0002 * float64(j+1)
			last[j] *= math.Exp(drift + 0.01*float64(j+1)*rng.NormFloat64())
			row[j] = last[j]
		}
		data[i] = row
	}
	return NewPriceMatrix(dates, symbols, data)
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
