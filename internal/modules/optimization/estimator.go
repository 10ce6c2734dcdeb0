package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Estimate converts aligned prices into log returns, the annualized sample
// covariance of those returns and the mean daily log return of each asset.
// Means are left daily; ExpectedAnnualReturn applies the annualization.
func Estimate(prices *PriceMatrix) (*LogReturnMatrix, *mat.SymDense, []float64, error) {
	rows, assets := prices.Dims()
	if rows < 2 || assets < 1 || prices.Prices == nil {
		return nil, nil, nil, InsufficientDataError{Rows: rows, Assets: assets}
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < assets; j++ {
			p := prices.Prices.At(i, j)
			if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
				return nil, nil, nil, InvalidSeriesError{
					Symbol:  symbolAt(prices.Symbols, j),
					Message: fmt.Sprintf("non-positive or non-finite price at row %d", i),
				}
			}
		}
	}

	returns := mat.NewDense(rows-1, assets, nil)
	returns.Apply(func(i, j int, _ float64) float64 {
		return math.Log(prices.Prices.At(i+1, j) / prices.Prices.At(i, j))
	}, returns)

	logReturns := &LogReturnMatrix{
		Symbols: append([]string(nil), prices.Symbols...),
		Returns: returns,
	}
	if len(prices.Dates) == rows {
		logReturns.Dates = append(logReturns.Dates, prices.Dates[1:]...)
	}

	return logReturns, AnnualizedCovariance(logReturns), MeanDailyReturns(logReturns), nil
}

// AnnualizedCovariance returns the sample covariance (n-1 denominator) of the
// return columns multiplied by TradingDaysPerYear. With fewer than two
// observations the covariance is undefined and every entry is NaN.
func AnnualizedCovariance(lr *LogReturnMatrix) *mat.SymDense {
	rows, assets := lr.Dims()
	if assets == 0 {
		return nil
	}
	cov := mat.NewSymDense(assets, nil)
	if rows < 2 || lr.Returns == nil {
		for i := 0; i < assets; i++ {
			for j := i; j < assets; j++ {
				cov.SetSym(i, j, math.NaN())
			}
		}
		return cov
	}
	stat.CovarianceMatrix(cov, lr.Returns, nil)
	cov.ScaleSym(TradingDaysPerYear, cov)
	return cov
}

// MeanDailyReturns returns the arithmetic mean of each return column.
func MeanDailyReturns(lr *LogReturnMatrix) []float64 {
	rows, assets := lr.Dims()
	means := make([]float64, assets)
	if rows == 0 || lr.Returns == nil {
		for j := range means {
			means[j] = math.NaN()
		}
		return means
	}
	col := make([]float64, rows)
	for j := 0; j < assets; j++ {
		mat.Col(col, j, lr.Returns)
		means[j] = stat.Mean(col, nil)
	}
	return means
}

func symbolAt(symbols []string, j int) string {
	if j < len(symbols) {
		return symbols[j]
	}
	return fmt.Sprintf("#%d", j)
}
