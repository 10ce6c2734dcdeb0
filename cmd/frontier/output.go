package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/frontier/internal/modules/optimization"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func writeReport(w io.Writer, report *optimization.Report, format string) error {
	switch format {
	case formatTable, "":
		return writeTable(w, report)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeTable prints the weights followed by the optimal and uniform metrics.
func writeTable(w io.Writer, report *optimization.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Period:\t%s to %s (%d returns)\n",
		report.Start.Format(time.DateOnly), report.End.Format(time.DateOnly), report.Observations)
	if n := report.Alignment.DroppedCount(); n > 0 {
		fmt.Fprintf(tw, "Dropped dates:\t%d of %d\n", n, report.Alignment.TotalDates)
	}
	fmt.Fprintf(tw, "Risk-free rate:\t%s\n", percent(report.RiskFreeRate))
	fmt.Fprintf(tw, "Max weight:\t%s\n", percent(report.MaxWeight))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "TICKER\tWEIGHT")
	for _, wv := range report.Allocation.Weights {
		fmt.Fprintf(tw, "%s\t%s\n", wv.Symbol, percent(wv.Weight))
	}
	fmt.Fprintln(tw)

	opt := report.Allocation
	fmt.Fprintln(tw, "METRIC\tOPTIMAL\tUNIFORM")
	fmt.Fprintf(tw, "Expected annual return\t%s\t%s\n", percent(opt.ExpectedAnnualReturn), percent(report.Uniform.ExpectedAnnualReturn))
	fmt.Fprintf(tw, "Annual volatility\t%s\t%s\n", percent(opt.AnnualVolatility), percent(report.Uniform.AnnualVolatility))
	fmt.Fprintf(tw, "Sharpe ratio\t%.4f\t%.4f\n", opt.SharpeRatio, report.Uniform.SharpeRatio)

	return tw.Flush()
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", 100*v)
}
