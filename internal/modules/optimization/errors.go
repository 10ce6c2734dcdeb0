package optimization

import (
	"errors"
	"fmt"
	"strings"
)

// InsufficientDataError is returned when the aligned price history has fewer
// than two rows or no assets at all.
type InsufficientDataError struct {
	Rows   int
	Assets int
}

func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least 2 aligned price rows and 1 asset, got %d rows and %d assets", e.Rows, e.Assets)
}

// DimensionMismatchError is returned when the covariance matrix order does not
// match the number of assets in the return matrix.
type DimensionMismatchError struct {
	Assets         int
	CovarianceRows int
	CovarianceCols int
}

func (e DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %d assets but covariance matrix is %dx%d", e.Assets, e.CovarianceRows, e.CovarianceCols)
}

// InfeasibleConstraintsError is returned when maxWeight * assets < 1, which
// makes the fully-invested constraint impossible to meet.
type InfeasibleConstraintsError struct {
	MaxWeight float64
	Assets    int
}

func (e InfeasibleConstraintsError) Error() string {
	return fmt.Sprintf("infeasible constraints: max weight %.4f across %d assets cannot sum to 1", e.MaxWeight, e.Assets)
}

// OptimizationFailedError wraps solver non-convergence and degenerate
// volatility at a candidate point.
type OptimizationFailedError struct {
	Reason string
	Status string // solver status, empty when the solver never ran
}

func (e OptimizationFailedError) Error() string {
	if e.Status == "" {
		return "optimization failed: " + e.Reason
	}
	return fmt.Sprintf("optimization failed: %s (status=%s)", e.Reason, e.Status)
}

// InvalidParameterError reports a scalar input outside its domain.
type InvalidParameterError struct {
	Field   string
	Value   float64
	Message string
}

func (e InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

// InvalidSeriesError reports a malformed price series.
type InvalidSeriesError struct {
	Symbol  string
	Message string
}

func (e InvalidSeriesError) Error() string {
	if e.Symbol == "" {
		return "invalid series: " + e.Message
	}
	return fmt.Sprintf("invalid series %s: %s", e.Symbol, e.Message)
}

// MissingSymbolsError lists every requested ticker without price history.
type MissingSymbolsError struct {
	Symbols []string
}

func (e MissingSymbolsError) Error() string {
	return "no price history for: " + strings.Join(e.Symbols, ", ")
}

// ErrUnknownSymbol is wrapped by providers that have no history for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")
