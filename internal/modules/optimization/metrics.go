package optimization

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ExpectedAnnualReturn returns sum(mean_i * w_i) * 252 for mean daily log returns.
func ExpectedAnnualReturn(weights, meanDailyReturns []float64) float64 {
	return floats.Dot(meanDailyReturns, weights) * TradingDaysPerYear
}

// AnnualVolatility returns sqrt(w' C w) for an already annualized covariance.
func AnnualVolatility(weights []float64, cov mat.Symmetric) float64 {
	w := mat.NewVecDense(len(weights), weights)
	return math.Sqrt(mat.Inner(w, cov, w))
}

// SharpeRatio returns the excess annual return per unit of annual volatility.
func SharpeRatio(weights, meanDailyReturns []float64, cov mat.Symmetric, riskFreeRate float64) float64 {
	return (ExpectedAnnualReturn(weights, meanDailyReturns) - riskFreeRate) / AnnualVolatility(weights, cov)
}

// UniformWeights returns the 1/n allocation.
func UniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}
