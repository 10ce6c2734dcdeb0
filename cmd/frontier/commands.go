package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/history"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/pkg/logger"
)

// env is the configuration, logger and open history store of one command.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	db    *database.DB
	store *history.Store
}

func openEnv(c *cli.Context) (*env, error) {
	if c.IsSet("data-dir") {
		if err := os.Setenv("FRONTIER_DATA_DIR", c.String("data-dir")); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Quiet by default so command output is not buried in solver logs.
	level := "warn"
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	log := logger.New(logger.Config{Level: level, Pretty: true})

	db, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: cfg.HistoryDBProfileValue(),
		Name:    "history",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &env{
		cfg:   cfg,
		log:   log,
		db:    db,
		store: history.NewStore(db.Conn(), cfg.RiskFreeSeries, log),
	}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}

func runOptimize(c *cli.Context) error {
	req, err := loadRequest(c.Args().First())
	if err != nil {
		return err
	}
	if err := applyOverrides(c, &req); err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	service := optimization.NewService(
		e.store,
		e.store.WithFallbackRate(e.cfg.RiskFreeRate),
		e.cfg.DefaultMaxWeight,
		1,
		e.log,
	)

	report, err := service.Optimize(c.Context, req)
	if err != nil {
		return err
	}

	return writeReport(c.App.Writer, report, c.String("format"))
}

// loadRequest reads a YAML request file. An empty path yields an empty request.
func loadRequest(path string) (optimization.Request, error) {
	var req optimization.Request
	if path == "" {
		return req, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read request file: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	return req, nil
}

func applyOverrides(c *cli.Context, req *optimization.Request) error {
	if c.IsSet("symbols") {
		req.Symbols = splitSymbols(c.StringSlice("symbols"))
		req.Series = nil
	}
	if c.IsSet("max-weight") {
		v := c.Float64("max-weight")
		req.MaxWeight = &v
	}
	if c.IsSet("risk-free-rate") {
		v := c.Float64("risk-free-rate")
		req.RiskFreeRate = &v
	}
	for _, bound := range []struct {
		flag string
		dst  *time.Time
	}{{"start", &req.Start}, {"end", &req.End}} {
		if !c.IsSet(bound.flag) {
			continue
		}
		t, err := time.Parse(time.DateOnly, c.String(bound.flag))
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", bound.flag, err)
		}
		*bound.dst = t
	}
	return nil
}

// splitSymbols accepts both repeated flags and comma separated lists.
func splitSymbols(values []string) []string {
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func runImportPrices(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("import-prices needs at least one CSV file")
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	for _, path := range c.Args().Slice() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		summary, err := e.store.ImportPricesCSV(c.Context, f, c.String("symbol"))
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}

		symbols := make([]string, 0, len(summary.Symbols))
		for sym := range summary.Symbols {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)

		fmt.Fprintf(c.App.Writer, "%s: %d rows imported, %d skipped (%s)\n",
			path, summary.Rows, summary.Skipped, strings.Join(symbols, ", "))
	}
	return nil
}

func runImportRates(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("import-rates needs exactly one CSV file")
	}
	path := c.Args().First()

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	summary, err := e.store.ImportRatesCSV(c.Context, f, c.String("series"))
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	fmt.Fprintf(c.App.Writer, "%s: %d observations imported, %d skipped\n", path, summary.Rows, summary.Skipped)
	return nil
}

func runSymbols(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	symbols, err := e.store.Symbols(c.Context)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		fmt.Fprintln(c.App.Writer, "no price history stored")
		return nil
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tROWS\tFIRST\tLAST")
	for _, s := range symbols {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Symbol, s.Count, s.First.Format(time.DateOnly), s.Last.Format(time.DateOnly))
	}
	return tw.Flush()
}
