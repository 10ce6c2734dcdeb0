package optimization

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// TradingDaysPerYear scales daily statistics to annual ones.
const TradingDaysPerYear = 252

// PricePoint is one adjusted close observation.
type PricePoint struct {
	Date     time.Time `json:"date" msgpack:"date" yaml:"date"`
	AdjClose float64   `json:"adj_close" msgpack:"adj_close" yaml:"adj_close"`
}

// AssetSeries is the adjusted close history of one ticker.
// Points must be strictly increasing by date.
type AssetSeries struct {
	Symbol string       `json:"symbol" msgpack:"symbol" yaml:"symbol"`
	Points []PricePoint `json:"prices" msgpack:"prices" yaml:"prices"`
}

// PriceMatrix holds adjusted closes for the dates shared by every asset.
// Row t is Dates[t]; column j is Symbols[j].
type PriceMatrix struct {
	Dates   []time.Time
	Symbols []string
	Prices  *mat.Dense
}

// NewPriceMatrix builds a matrix from row-major prices (one row per date).
func NewPriceMatrix(dates []time.Time, symbols []string, rows [][]float64) *PriceMatrix {
	pm := &PriceMatrix{
		Dates:   append([]time.Time(nil), dates...),
		Symbols: append([]string(nil), symbols...),
	}
	if len(rows) == 0 || len(symbols) == 0 {
		return pm
	}
	data := make([]float64, 0, len(rows)*len(symbols))
	for _, row := range rows {
		data = append(data, row...)
	}
	pm.Prices = mat.NewDense(len(rows), len(symbols), data)
	return pm
}

// Dims returns the number of dates and assets.
func (pm *PriceMatrix) Dims() (rows, assets int) {
	if pm == nil {
		return 0, 0
	}
	if pm.Prices == nil {
		return len(pm.Dates), len(pm.Symbols)
	}
	return pm.Prices.Dims()
}

// LogReturnMatrix holds ln(p[t]/p[t-1]) per asset. Dates[t] is the later
// date of each pair, so it has one row fewer than the PriceMatrix it came from.
type LogReturnMatrix struct {
	Dates   []time.Time
	Symbols []string
	Returns *mat.Dense
}

// Dims returns the number of return observations and assets.
func (lr *LogReturnMatrix) Dims() (rows, assets int) {
	if lr == nil {
		return 0, 0
	}
	if lr.Returns == nil {
		return len(lr.Dates), len(lr.Symbols)
	}
	return lr.Returns.Dims()
}

// OptimizationResult is the max-Sharpe allocation and its metrics.
// Fields are unexported so a produced result cannot be modified.
type OptimizationResult struct {
	weights              []float64
	expectedAnnualReturn float64
	annualVolatility     float64
	sharpeRatio          float64
}

func newOptimizationResult(weights []float64, ret, vol, sharpe float64) *OptimizationResult {
	return &OptimizationResult{
		weights:              append([]float64(nil), weights...),
		expectedAnnualReturn: ret,
		annualVolatility:     vol,
		sharpeRatio:          sharpe,
	}
}

// Weights returns a copy of the weight vector, index-aligned with the asset list.
func (r *OptimizationResult) Weights() []float64 {
	return append([]float64(nil), r.weights...)
}

// ExpectedAnnualReturn returns 252 * sum(mean_i * w_i).
func (r *OptimizationResult) ExpectedAnnualReturn() float64 { return r.expectedAnnualReturn }

// AnnualVolatility returns sqrt(w' C w).
func (r *OptimizationResult) AnnualVolatility() float64 { return r.annualVolatility }

// SharpeRatio returns (return - risk free) / volatility.
func (r *OptimizationResult) SharpeRatio() float64 { return r.sharpeRatio }

// AllocationView is the serializable form of a result.
type AllocationView struct {
	Weights              []WeightView `json:"weights" msgpack:"weights" yaml:"weights"`
	ExpectedAnnualReturn float64      `json:"expected_annual_return" msgpack:"expected_annual_return" yaml:"expected_annual_return"`
	AnnualVolatility     float64      `json:"annual_volatility" msgpack:"annual_volatility" yaml:"annual_volatility"`
	SharpeRatio          float64      `json:"sharpe_ratio" msgpack:"sharpe_ratio" yaml:"sharpe_ratio"`
}

// WeightView pairs a ticker with its weight.
type WeightView struct {
	Symbol string  `json:"symbol" msgpack:"symbol" yaml:"symbol"`
	Weight float64 `json:"weight" msgpack:"weight" yaml:"weight"`
}

// View labels the weights with their symbols.
func (r *OptimizationResult) View(symbols []string) AllocationView {
	weights := make([]WeightView, len(r.weights))
	for i, w := range r.weights {
		symbol := ""
		if i < len(symbols) {
			symbol = symbols[i]
		}
		weights[i] = WeightView{Symbol: symbol, Weight: w}
	}
	return AllocationView{
		Weights:              weights,
		ExpectedAnnualReturn: r.expectedAnnualReturn,
		AnnualVolatility:     r.annualVolatility,
		SharpeRatio:          r.sharpeRatio,
	}
}
