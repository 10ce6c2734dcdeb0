package optimization

import (
	"context"
	"time"
)

// PriceHistoryProvider supplies already-retrieved adjusted close history.
// Implementations return an error wrapping ErrUnknownSymbol when nothing is
// stored for the symbol.
type PriceHistoryProvider interface {
	GetSeries(ctx context.Context, symbol string, start, end time.Time) (AssetSeries, error)
}

// RiskFreeRateProvider supplies the annual risk-free rate as a decimal.
type RiskFreeRateProvider interface {
	RiskFreeRate(ctx context.Context) (float64, error)
}

// StaticRiskFreeRate is a fixed risk-free rate, typically from configuration.
type StaticRiskFreeRate float64

// RiskFreeRate implements RiskFreeRateProvider.
func (r StaticRiskFreeRate) RiskFreeRate(context.Context) (float64, error) {
	return float64(r), nil
}
