package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// ImportSummary reports what an import stored.
type ImportSummary struct {
	Rows    int            `json:"rows"`
	Skipped int            `json:"skipped"`
	Symbols map[string]int `json:"symbols,omitempty"`
}

// ImportPricesCSV loads daily prices from CSV. The header must name a date
// column and an "Adj Close"/"adj_close" column ("Close" is used when no
// adjusted column exists). Rows carry their own symbol in a "symbol" column;
// otherwise every row belongs to symbol.
func (s *Store) ImportPricesCSV(ctx context.Context, r io.Reader, symbol string) (ImportSummary, error) {
	records, err := readCSV(r)
	if err != nil {
		return ImportSummary{}, err
	}

	header := indexHeader(records[0])
	dateCol, ok := header.find("date", "observationdate")
	if !ok {
		return ImportSummary{}, errors.New("price CSV has no date column")
	}
	priceCol, ok := header.find("adjclose", "adjustedclose", "close")
	if !ok {
		return ImportSummary{}, errors.New("price CSV has no adj close or close column")
	}
	symbolCol, hasSymbol := header.find("symbol", "ticker")
	if !hasSymbol && strings.TrimSpace(symbol) == "" {
		return ImportSummary{}, errors.New("price CSV has no symbol column and no symbol was given")
	}

	summary := ImportSummary{Symbols: make(map[string]int)}
	bySymbol := make(map[string][]optimization.PricePoint)

	for i, row := range records[1:] {
		date, err := parseDate(field(row, dateCol))
		if err != nil {
			return ImportSummary{}, fmt.Errorf("line %d: %w", i+2, err)
		}
		price, ok := parseValue(field(row, priceCol))
		if !ok || !(price > 0) {
			summary.Skipped++
			continue
		}

		sym := symbol
		if hasSymbol {
			sym = field(row, symbolCol)
		}
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			summary.Skipped++
			continue
		}

		bySymbol[sym] = append(bySymbol[sym], optimization.PricePoint{Date: date, AdjClose: price})
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		points := bySymbol[sym]
		if err := s.UpsertPrices(ctx, sym, points); err != nil {
			return summary, err
		}
		summary.Rows += len(points)
		summary.Symbols[sym] = len(points)
	}

	return summary, nil
}

// ImportRatesCSV loads a rate series from a two-column CSV such as the FRED
// download format (DATE,GS10). Missing observations written as "." are skipped.
func (s *Store) ImportRatesCSV(ctx context.Context, r io.Reader, series string) (ImportSummary, error) {
	records, err := readCSV(r)
	if err != nil {
		return ImportSummary{}, err
	}
	if len(records[0]) < 2 {
		return ImportSummary{}, errors.New("rate CSV needs a date and a value column")
	}

	header := indexHeader(records[0])
	dateCol, ok := header.find("date", "observationdate")
	if !ok {
		dateCol = 0
	}
	valueCol, ok := header.find("value", strings.ToLower(series))
	if !ok {
		valueCol = 1
		if dateCol == 1 {
			valueCol = 0
		}
	}
	if strings.TrimSpace(series) == "" {
		series = records[0][valueCol]
	}

	var summary ImportSummary
	points := make([]RatePoint, 0, len(records)-1)
	for i, row := range records[1:] {
		date, err := parseDate(field(row, dateCol))
		if err != nil {
			return ImportSummary{}, fmt.Errorf("line %d: %w", i+2, err)
		}
		value, ok := parseValue(field(row, valueCol))
		if !ok {
			summary.Skipped++
			continue
		}
		points = append(points, RatePoint{Date: date, Value: value})
	}

	if err := s.UpsertRates(ctx, series, points); err != nil {
		return summary, err
	}
	summary.Rows = len(points)
	return summary, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("empty CSV")
	}
	return records, nil
}

type headerIndex map[string]int

func indexHeader(row []string) headerIndex {
	h := make(headerIndex, len(row))
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
		if _, exists := h[key]; !exists {
			h[key] = i
		}
	}
	return h
}

// find returns the column of the first name present.
func (h headerIndex) find(names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := h[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func field(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{dateLayout, time.RFC3339, "2006/01/02", "01/02/2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			y, m, d := t.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func parseValue(value string) (float64, bool) {
	if value == "" || value == "." || strings.EqualFold(value, "null") {
		return 0, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
