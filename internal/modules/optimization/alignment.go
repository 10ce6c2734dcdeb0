package optimization

import (
	"math"
	"sort"
	"time"
)

// DroppedDate is a date removed during alignment and the symbols with no price on it.
type DroppedDate struct {
	Date    time.Time `json:"date" msgpack:"date" yaml:"date"`
	Missing []string  `json:"missing" msgpack:"missing" yaml:"missing"`
}

// AlignmentReport describes which dates alignment discarded.
type AlignmentReport struct {
	TotalDates int           `json:"total_dates" msgpack:"total_dates" yaml:"total_dates"`
	KeptDates  int           `json:"kept_dates" msgpack:"kept_dates" yaml:"kept_dates"`
	Dropped    []DroppedDate `json:"dropped,omitempty" msgpack:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// DroppedCount returns how many dates were discarded.
func (r AlignmentReport) DroppedCount() int {
	return len(r.Dropped)
}

// AlignSeries intersects the dates of all series and returns the prices on the
// shared dates in the order the series were given. Dates missing for any asset
// are dropped, never interpolated, and listed in the report.
func AlignSeries(series []AssetSeries) (*PriceMatrix, AlignmentReport, error) {
	symbols := make([]string, len(series))
	seen := make(map[string]bool, len(series))
	byDate := make([]map[time.Time]float64, len(series))
	union := make(map[time.Time]bool)

	for j, s := range series {
		if s.Symbol == "" {
			return nil, AlignmentReport{}, InvalidSeriesError{Message: "empty symbol"}
		}
		if seen[s.Symbol] {
			return nil, AlignmentReport{}, InvalidSeriesError{Symbol: s.Symbol, Message: "duplicate symbol"}
		}
		seen[s.Symbol] = true
		symbols[j] = s.Symbol

		prices := make(map[time.Time]float64, len(s.Points))
		var prev time.Time
		for i, p := range s.Points {
			day := truncateToDay(p.Date)
			if i > 0 && !day.After(prev) {
				return nil, AlignmentReport{}, InvalidSeriesError{
					Symbol:  s.Symbol,
					Message: "dates must be strictly increasing, got " + day.Format(time.DateOnly) + " after " + prev.Format(time.DateOnly),
				}
			}
			if math.IsNaN(p.AdjClose) || math.IsInf(p.AdjClose, 0) || p.AdjClose <= 0 {
				return nil, AlignmentReport{}, InvalidSeriesError{
					Symbol:  s.Symbol,
					Message: "non-positive or non-finite price on " + day.Format(time.DateOnly),
				}
			}
			prices[day] = p.AdjClose
			union[day] = true
			prev = day
		}
		byDate[j] = prices
	}

	dates := make([]time.Time, 0, len(union))
	for d := range union {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })

	report := AlignmentReport{TotalDates: len(dates)}
	kept := make([]time.Time, 0, len(dates))
	rows := make([][]float64, 0, len(dates))

	for _, d := range dates {
		row := make([]float64, len(series))
		var missing []string
		for j := range series {
			price, ok := byDate[j][d]
			if !ok {
				missing = append(missing, symbols[j])
				continue
			}
			row[j] = price
		}
		if len(missing) > 0 {
			report.Dropped = append(report.Dropped, DroppedDate{Date: d, Missing: missing})
			continue
		}
		kept = append(kept, d)
		rows = append(rows, row)
	}
	report.KeptDates = len(kept)

	return NewPriceMatrix(kept, symbols, rows), report, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
