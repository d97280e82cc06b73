package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/exporter"
	"salesdash/internal/forecast"
	"salesdash/internal/infrastructure"
	"salesdash/internal/middleware"
	"salesdash/internal/services"
	"salesdash/internal/source"
	api "salesdash/pkg/contracts/api/v1"
)

// reportOptions holds the parsed command line
type reportOptions struct {
	ConfigFile string
	Query      api.DashboardQuery
	Forecast   bool
	Name       string
}

func parseFlags(args []string, stderr io.Writer) (reportOptions, error) {
	var opts reportOptions
	var states string

	fs := flag.NewFlagSet("salesreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.ConfigFile, "config", "", "config file (defaults to SALESDASH_CONFIG or config.yaml)")
	fs.StringVar(&opts.Query.Start, "start", "", "first purchase date to include, YYYY-MM-DD")
	fs.StringVar(&opts.Query.End, "end", "", "last purchase date to include, YYYY-MM-DD")
	fs.StringVar(&states, "states", "", "comma separated state codes; pass -states= for none (default: analytics.default_states, SP,RJ,MG)")
	fs.StringVar(&opts.Query.Metric, "metric", "revenue", "state ranking metric: revenue, average_ticket or order_count")
	fs.StringVar(&opts.Query.Format, "format", "csv", "output format: csv or xlsx")
	fs.BoolVar(&opts.Forecast, "forecast", false, "include the revenue forecast")
	fs.StringVar(&opts.Name, "name", "sales_dashboard", "output file name prefix")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "states" {
			opts.Query.StatesSet = true
		}
	})
	if states != "" {
		for _, s := range strings.Split(states, ",") {
			if s = strings.TrimSpace(s); s != "" {
				opts.Query.States = append(opts.Query.States, s)
			}
		}
	}

	if err := middleware.NewQueryValidator(nil).ValidateStruct(opts.Query); err != nil {
		return opts, flagError(err)
	}
	return opts, nil
}

// flagError flattens per-field validation failures into one line
func flagError(err error) error {
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	fields, ok := apiErr.Details.([]apperrors.ValidationError)
	if !ok || len(fields) == 0 {
		return err
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, "-"+f.Message)
	}
	return fmt.Errorf("invalid flags: %s", strings.Join(msgs, "; "))
}

// run loads the dataset once, computes the report and writes it to the
// export directory. It returns the written file path.
func run(ctx context.Context, cfg *config.Config, paths *config.Paths, opts reportOptions, now func() time.Time, logger *slog.Logger) (string, error) {
	if err := paths.EnsureDirectories(); err != nil {
		return "", fmt.Errorf("failed to ensure directories: %w", err)
	}

	format, err := exporter.ParseFormat(opts.Query.Format)
	if err != nil {
		return "", err
	}

	openCtx, cancel := context.WithTimeout(ctx, cfg.Source.Timeout)
	defer cancel()

	src, err := source.Open(openCtx, cfg, paths, logger)
	if err != nil {
		return "", fmt.Errorf("failed to open %s source: %w", cfg.Source.Kind, err)
	}
	defer src.Close()

	loader := dataset.NewLoader(src,
		dataset.WithClock(now),
		dataset.WithCategoryLanguage(cfg.Analytics.CategoryLanguage),
		dataset.WithLogger(logger))
	cache := dataset.NewCache(loader, dataset.WithCacheLogger(logger))

	svc := services.NewDashboardService(cfg, cache,
		forecast.NewSeasonalTrend(cfg.Forecast.IntervalWidth, cfg.Forecast.MinHistory),
		nil, logger, services.WithServiceClock(now))

	report, err := svc.Report(ctx, opts.Query, opts.Forecast)
	if err != nil {
		return "", err
	}

	return exporter.NewWriter(paths, logger).WriteReport(opts.Name, format, report)
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "salesreport: %v\n", err)
		os.Exit(2)
	}

	var cfg *config.Config
	if opts.ConfigFile != "" {
		cfg, err = config.LoadFrom(opts.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "salesreport: %v\n", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		fmt.Fprintf(os.Stderr, "salesreport: %v\n", err)
		os.Exit(1)
	}

	path, err := run(context.Background(), cfg, paths, opts, time.Now, logger)
	if err != nil {
		logger.Error("Report failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "salesreport: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(path)
}
