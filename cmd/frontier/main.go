// Package main is the frontier command line tool. It fills the local price
// history database from CSV files and computes max-Sharpe allocations.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "frontier",
		Usage:   "max-Sharpe portfolio allocation from local price history",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "directory holding history.db",
				EnvVars: []string{"FRONTIER_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			optimizeCommand(),
			importPricesCommand(),
			importRatesCommand(),
			symbolsCommand(),
		},
	}
}

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "optimize",
		Usage:     "compute the max-Sharpe allocation for a request",
		ArgsUsage: "[request.yaml]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "symbols",
				Aliases: []string{"s"},
				Usage:   "tickers to allocate across (overrides the request file)",
			},
			&cli.Float64Flag{
				Name:  "max-weight",
				Usage: "maximum weight per asset",
			},
			&cli.Float64Flag{
				Name:  "risk-free-rate",
				Usage: "annualized risk-free rate, e.g. 0.02",
			},
			&cli.StringFlag{
				Name:  "start",
				Usage: "first date of the history window (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "last date of the history window (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"o"},
				Value:   formatTable,
				Usage:   "output format: table, json or yaml",
			},
		},
		Action: runOptimize,
	}
}

func importPricesCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-prices",
		Usage:     "load daily adjusted closes from CSV files",
		ArgsUsage: "file.csv [file.csv...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "symbol",
				Usage: "ticker for files without a symbol column",
			},
		},
		Action: runImportPrices,
	}
}

func importRatesCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-rates",
		Usage:     "load a rate series (percent values, FRED format) from a CSV file",
		ArgsUsage: "file.csv",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "series",
				Usage: "series name, defaults to the value column header",
			},
		},
		Action: runImportRates,
	}
}

func symbolsCommand() *cli.Command {
	return &cli.Command{
		Name:   "symbols",
		Usage:  "list the symbols with stored price history",
		Action: runSymbols,
	}
}
