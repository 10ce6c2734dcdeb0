// Package optimization estimates returns and risk from price history and
// computes maximum-Sharpe allocations.
package optimization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Request describes one optimization. Either Series (prices supplied by the
// caller) or Symbols (prices read from the history provider) must be set.
// Zero Start/End leave that side of the history window open.
type Request struct {
	Symbols      []string      `json:"symbols,omitempty" msgpack:"symbols,omitempty" yaml:"symbols,omitempty"`
	Series       []AssetSeries `json:"series,omitempty" msgpack:"series,omitempty" yaml:"series,omitempty"`
	Start        time.Time     `json:"start,omitempty" msgpack:"start,omitempty" yaml:"start,omitempty"`
	End          time.Time     `json:"end,omitempty" msgpack:"end,omitempty" yaml:"end,omitempty"`
	MaxWeight    *float64      `json:"max_weight,omitempty" msgpack:"max_weight,omitempty" yaml:"max_weight,omitempty"`
	RiskFreeRate *float64      `json:"risk_free_rate,omitempty" msgpack:"risk_free_rate,omitempty" yaml:"risk_free_rate,omitempty"`
}

// Metrics are the performance figures of one allocation.
type Metrics struct {
	ExpectedAnnualReturn float64 `json:"expected_annual_return" msgpack:"expected_annual_return" yaml:"expected_annual_return"`
	AnnualVolatility     float64 `json:"annual_volatility" msgpack:"annual_volatility" yaml:"annual_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio" msgpack:"sharpe_ratio" yaml:"sharpe_ratio"`
}

// Report is the outcome of one optimization run.
type Report struct {
	ID           string          `json:"id" msgpack:"id" yaml:"id"`
	Symbols      []string        `json:"symbols" msgpack:"symbols" yaml:"symbols"`
	Start        time.Time       `json:"start" msgpack:"start" yaml:"start"`
	End          time.Time       `json:"end" msgpack:"end" yaml:"end"`
	Observations int             `json:"observations" msgpack:"observations" yaml:"observations"`
	Alignment    AlignmentReport `json:"alignment" msgpack:"alignment" yaml:"alignment"`
	RiskFreeRate float64         `json:"risk_free_rate" msgpack:"risk_free_rate" yaml:"risk_free_rate"`
	MaxWeight    float64         `json:"max_weight" msgpack:"max_weight" yaml:"max_weight"`
	Uniform      Metrics         `json:"uniform" msgpack:"uniform" yaml:"uniform"`
	Allocation   AllocationView  `json:"allocation" msgpack:"allocation" yaml:"allocation"`

	Result *OptimizationResult `json:"-" msgpack:"-" yaml:"-"`
}

// BatchItem is the outcome of one request of a batch. Exactly one of Report
// and Err is set.
type BatchItem struct {
	Index  int     `json:"index" msgpack:"index"`
	Report *Report `json:"report,omitempty" msgpack:"report,omitempty"`
	Error  string  `json:"error,omitempty" msgpack:"error,omitempty"`
	Err    error   `json:"-" msgpack:"-"`
}

// Service runs optimizations against the configured data providers.
type Service struct {
	prices           PriceHistoryProvider
	rates            RiskFreeRateProvider
	optimizer        *SharpeOptimizer
	defaultMaxWeight float64
	workers          int
	log              zerolog.Logger
}

// NewService creates a new optimization service. prices may be nil when only
// caller-supplied series are used.
func NewService(
	prices PriceHistoryProvider,
	rates RiskFreeRateProvider,
	defaultMaxWeight float64,
	workers int,
	log zerolog.Logger,
) *Service {
	if rates == nil {
		rates = StaticRiskFreeRate(0)
	}
	if workers < 1 {
		workers = 1
	}
	return &Service{
		prices:           prices,
		rates:            rates,
		optimizer:        NewSharpeOptimizer(log),
		defaultMaxWeight: defaultMaxWeight,
		workers:          workers,
		log:              log.With().Str("service", "optimization").Logger(),
	}
}

// Optimize dispatches on the request kind.
func (s *Service) Optimize(ctx context.Context, req Request) (*Report, error) {
	switch {
	case len(req.Series) > 0 && len(req.Symbols) > 0:
		return nil, InvalidSeriesError{Message: "give either series or symbols, not both"}
	case len(req.Series) > 0:
		return s.OptimizeSeries(ctx, req)
	case len(req.Symbols) > 0:
		return s.OptimizeSymbols(ctx, req)
	default:
		return nil, InvalidSeriesError{Message: "no symbols or series given"}
	}
}

// OptimizeSeries optimizes over the price series carried by the request.
func (s *Service) OptimizeSeries(ctx context.Context, req Request) (*Report, error) {
	return s.run(ctx, req, req.Series)
}

// OptimizeSymbols loads the requested symbols from the history provider and
// optimizes over them. Every symbol without history is reported at once in a
// MissingSymbolsError.
func (s *Service) OptimizeSymbols(ctx context.Context, req Request) (*Report, error) {
	if s.prices == nil {
		return nil, errors.New("no price history provider configured")
	}

	symbols := normalizeSymbols(req.Symbols)
	series := make([]AssetSeries, 0, len(symbols))
	var missing []string

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.log.Debug().Str("symbol", symbol).Msg("Loading price history")

		sr, err := s.prices.GetSeries(ctx, symbol, req.Start, req.End)
		if errors.Is(err, ErrUnknownSymbol) || (err == nil && len(sr.Points) == 0) {
			missing = append(missing, symbol)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load history for %s: %w", symbol, err)
		}
		sr.Symbol = symbol
		series = append(series, sr)
	}

	if len(missing) > 0 {
		return nil, MissingSymbolsError{Symbols: missing}
	}

	return s.run(ctx, req, series)
}

// OptimizeBatch runs independent requests on a bounded worker pool. A failed
// item never cancels the others; the returned error is only set when ctx ends
// before every item ran.
func (s *Service) OptimizeBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i := range reqs {
		i := i
		g.Go(func() error {
			items[i].Index = i
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				items[i].Error = err.Error()
				return nil
			}

			report, err := s.Optimize(ctx, reqs[i])
			if err != nil {
				s.log.Debug().Err(err).Int("index", i).Msg("Batch item failed")
				items[i].Err = err
				items[i].Error = err.Error()
				return nil
			}
			items[i].Report = report
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().Int("requests", len(reqs)).Int("workers", s.workers).Msg("Batch finished")

	return items, ctx.Err()
}

func (s *Service) run(ctx context.Context, req Request, series []AssetSeries) (*Report, error) {
	maxWeight := s.defaultMaxWeight
	if req.MaxWeight != nil {
		maxWeight = *req.MaxWeight
	}

	riskFreeRate, err := s.riskFreeRate(ctx, req)
	if err != nil {
		return nil, err
	}

	prices, alignment, err := AlignSeries(series)
	if err != nil {
		return nil, err
	}
	if alignment.DroppedCount() > 0 {
		s.log.Warn().
			Int("dropped_dates", alignment.DroppedCount()).
			Int("kept_dates", alignment.KeptDates).
			Msg("Dropped dates not shared by every asset")
		for _, d := range alignment.Dropped {
			s.log.Debug().
				Str("date", d.Date.Format(time.DateOnly)).
				Strs("missing", d.Missing).
				Msg("Dropped date")
		}
	}

	logReturns, cov, means, err := Estimate(prices)
	if err != nil {
		return nil, err
	}

	result, err := s.optimizer.Optimize(logReturns, cov, riskFreeRate, maxWeight)
	if err != nil {
		return nil, err
	}

	uniform := UniformWeights(len(prices.Symbols))
	report := &Report{
		ID:           uuid.New().String(),
		Symbols:      append([]string(nil), prices.Symbols...),
		Start:        prices.Dates[0],
		End:          prices.Dates[len(prices.Dates)-1],
		Observations: len(logReturns.Dates),
		Alignment:    alignment,
		RiskFreeRate: riskFreeRate,
		MaxWeight:    maxWeight,
		Uniform: Metrics{
			ExpectedAnnualReturn: ExpectedAnnualReturn(uniform, means),
			AnnualVolatility:     AnnualVolatility(uniform, cov),
			SharpeRatio:          SharpeRatio(uniform, means, cov, riskFreeRate),
		},
		Allocation: result.View(prices.Symbols),
		Result:     result,
	}

	s.log.Info().
		Str("id", report.ID).
		Strs("symbols", report.Symbols).
		Float64("sharpe", result.SharpeRatio()).
		Float64("uniform_sharpe", report.Uniform.SharpeRatio).
		Msg("Optimization finished")

	return report, nil
}

func (s *Service) riskFreeRate(ctx context.Context, req Request) (float64, error) {
	if req.RiskFreeRate != nil {
		return *req.RiskFreeRate, nil
	}
	rate, err := s.rates.RiskFreeRate(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get risk-free rate: %w", err)
	}
	return rate, nil
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
