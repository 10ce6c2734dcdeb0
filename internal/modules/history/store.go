// Package history stores adjusted close prices and reference rate series in
// SQLite and serves them to the optimizer.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

var (
	// ErrNoPriceData is returned when a symbol has no stored prices in range.
	ErrNoPriceData = fmt.Errorf("no price data: %w", optimization.ErrUnknownSymbol)
	// ErrNoRate is returned when a rate series has no observations.
	ErrNoRate = errors.New("no rate observations")
)

// RatePoint is one observation of a rate series, in percent.
type RatePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// SymbolSummary describes the stored history of one symbol.
type SymbolSummary struct {
	Symbol string    `json:"symbol"`
	Count  int       `json:"count"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
}

// Store provides access to stored price and rate history
type Store struct {
	db         *sql.DB
	rateSeries string
	log        zerolog.Logger
}

// NewStore creates a new history store. rateSeries names the series used as
// the risk-free rate (e.g. GS10).
func NewStore(db *sql.DB, rateSeries string, log zerolog.Logger) *Store {
	return &Store{
		db:         db,
		rateSeries: strings.ToUpper(rateSeries),
		log:        log.With().Str("component", "history_store").Logger(),
	}
}

// GetSeries returns the adjusted closes of symbol between start and end,
// inclusive, oldest first. A zero start or end leaves that side open.
func (s *Store) GetSeries(ctx context.Context, symbol string, start, end time.Time) (optimization.AssetSeries, error) {
	symbol = strings.ToUpper(symbol)

	query := `SELECT date, adj_close FROM daily_prices WHERE symbol = ?`
	args := []interface{}{symbol}
	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, start.UTC().Format(dateLayout))
	}
	if !end.IsZero() {
		query += ` AND date <= ?`
		args = append(args, end.UTC().Format(dateLayout))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return optimization.AssetSeries{}, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	series := optimization.AssetSeries{Symbol: symbol}
	for rows.Next() {
		var date string
		var point optimization.PricePoint
		if err := rows.Scan(&date, &point.AdjClose); err != nil {
			return optimization.AssetSeries{}, fmt.Errorf("failed to scan daily price: %w", err)
		}
		point.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return optimization.AssetSeries{}, fmt.Errorf("invalid stored date %q for %s: %w", date, symbol, err)
		}
		series.Points = append(series.Points, point)
	}
	if err := rows.Err(); err != nil {
		return optimization.AssetSeries{}, fmt.Errorf("failed to iterate daily prices: %w", err)
	}

	if len(series.Points) == 0 {
		return optimization.AssetSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoPriceData)
	}

	return series, nil
}

// UpsertPrices inserts or replaces daily prices for symbol in one transaction.
func (s *Store) UpsertPrices(ctx context.Context, symbol string, points []optimization.PricePoint) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return errors.New("symbol is required")
	}

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices (symbol, date, adj_close)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if !(p.AdjClose > 0) {
				return fmt.Errorf("non-positive price %v on %s", p.AdjClose, p.Date.Format(dateLayout))
			}
			if _, err := stmt.ExecContext(ctx, symbol, p.Date.UTC().Format(dateLayout), p.AdjClose); err != nil {
				return fmt.Errorf("failed to insert daily price for %s: %w", p.Date.Format(dateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store prices for %s: %w", symbol, err)
	}

	s.log.Info().
		Str("symbol", symbol).
		Int("count", len(points)).
		Msg("Stored daily prices")

	return nil
}

// UpsertRates inserts or replaces observations of a rate series.
func (s *Store) UpsertRates(ctx context.Context, series string, points []RatePoint) error {
	series = strings.ToUpper(strings.TrimSpace(series))
	if series == "" {
		return errors.New("series is required")
	}

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO rates (series, date, value) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, series, p.Date.UTC().Format(dateLayout), p.Value); err != nil {
				return fmt.Errorf("failed to insert rate for %s: %w", p.Date.Format(dateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store rates for %s: %w", series, err)
	}

	s.log.Info().
		Str("series", series).
		Int("count", len(points)).
		Msg("Stored rate observations")

	return nil
}

// LatestRate returns the most recent observation of series.
func (s *Store) LatestRate(ctx context.Context, series string) (RatePoint, error) {
	series = strings.ToUpper(series)

	var date string
	var point RatePoint
	err := s.db.QueryRowContext(ctx, `
		SELECT date, value FROM rates
		WHERE series = ?
		ORDER BY date DESC
		LIMIT 1
	`, series).Scan(&date, &point.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return RatePoint{}, fmt.Errorf("%s: %w", series, ErrNoRate)
	}
	if err != nil {
		return RatePoint{}, fmt.Errorf("failed to get latest rate: %w", err)
	}

	point.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return RatePoint{}, fmt.Errorf("invalid stored date %q for %s: %w", date, series, err)
	}
	return point, nil
}

// RiskFreeRate returns the latest value of the configured series as a
// decimal. Series such as GS10 are published in percent.
func (s *Store) RiskFreeRate(ctx context.Context) (float64, error) {
	point, err := s.LatestRate(ctx, s.rateSeries)
	if err != nil {
		return 0, err
	}

	s.log.Debug().
		Str("series", s.rateSeries).
		Str("date", point.Date.Format(dateLayout)).
		Float64("percent", point.Value).
		Msg("Using stored risk-free rate")

	return point.Value / 100, nil
}

// Symbols lists every stored symbol with its history span.
func (s *Store) Symbols(ctx context.Context) ([]SymbolSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, COUNT(*), MIN(date), MAX(date)
		FROM daily_prices
		GROUP BY symbol
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var summaries []SymbolSummary
	for rows.Next() {
		var summary SymbolSummary
		var first, last string
		if err := rows.Scan(&summary.Symbol, &summary.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan symbol summary: %w", err)
		}
		if summary.First, err = time.Parse(dateLayout, first); err != nil {
			return nil, fmt.Errorf("invalid stored date %q for %s: %w", first, summary.Symbol, err)
		}
		if summary.Last, err = time.Parse(dateLayout, last); err != nil {
			return nil, fmt.Errorf("invalid stored date %q for %s: %w", last, summary.Symbol, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// WithFallbackRate returns a risk-free rate provider that uses the stored
// series and falls back to rate when the series has no observations.
func (s *Store) WithFallbackRate(rate float64) optimization.RiskFreeRateProvider {
	return fallbackRate{store: s, rate: rate}
}

type fallbackRate struct {
	store *Store
	rate  float64
}

func (f fallbackRate) RiskFreeRate(ctx context.Context) (float64, error) {
	rate, err := f.store.RiskFreeRate(ctx)
	if errors.Is(err, ErrNoRate) {
		f.store.log.Warn().
			Str("series", f.store.rateSeries).
			Float64("fallback", f.rate).
			Msg("No stored rate observations, using configured risk-free rate")
		return f.rate, nil
	}
	return rate, err
}
