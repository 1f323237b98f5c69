package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hydrospark/internal/billing/interfaces/export"
	"hydrospark/internal/platform/database"
	"hydrospark/internal/rates/infrastructure/catalog"
	ratespg "hydrospark/internal/rates/infrastructure/postgres"
	"hydrospark/internal/store"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"serve":      cmdServe,
	"migrate":    cmdMigrate,
	"seed-rates": cmdSeedRates,
	"bill":       cmdBill,
	"estimate":   cmdEstimate,
	"summary":    cmdSummary,
	"backfill":   cmdBackfill,
	"forecast":   cmdForecast,
	"evaluate":   cmdEvaluate,
	"detect":     cmdDetect,
	"export":     cmdExport,
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDay(name, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s: %w", name, err)
	}
	return t, nil
}

func cmdServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	migrate := fs.Bool("migrate", false, "apply migrations before serving")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *migrate {
		if err := database.Migrate(a.db, a.logger); err != nil {
			return err
		}
	}
	return a.serve(ctx)
}

func cmdMigrate(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return database.Migrate(a.db, a.logger)
}

func cmdSeedRates(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("seed-rates", flag.ContinueOnError)
	file := fs.String("file", a.cfg.Rates.CatalogPath, "rate catalog YAML")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("seed-rates: -file or rates.catalog_path required")
	}
	c, err := catalog.LoadFile(*file)
	if err != nil {
		return err
	}
	var result catalog.Result
	err = database.InTx(ctx, a.db, func(tx database.Querier) error {
		var err error
		result, err = catalog.Seed(ctx, ratespg.NewRuleRepository(tx), c)
		return err
	})
	if err != nil {
		return err
	}
	a.logger.Info("rate catalog seeded",
		zap.String("file", *file),
		zap.Int("rules", result.Rules),
		zap.Int("region_rates", result.RegionRates),
	)
	return nil
}

func cmdBill(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("bill", flag.ContinueOnError)
	account := fs.String("account", "", "account id")
	from := fs.String("from", "", "period start (YYYY-MM-DD)")
	to := fs.String("to", "", "period end (YYYY-MM-DD)")
	generate := fs.Bool("generate", false, "persist a pending invoice")
	if err := fs.Parse(args); err != nil {
		return err
	}
	start, err := parseDay("from", *from)
	if err != nil {
		return err
	}
	end, err := parseDay("to", *to)
	if err != nil {
		return err
	}

	var out any
	err = store.Run(ctx, a.factory, func(uow store.UnitOfWork) error {
		if *generate {
			invoice, err := a.billing.Generate(ctx, uow, *account, start, end)
			out = invoice
			return err
		}
		calc, err := a.billing.Calculate(ctx, uow, *account, start, end)
		out = calc
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(out)
}

func cmdEstimate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("estimate", flag.ContinueOnError)
	account := fs.String("account", "", "account id")
	reading := fs.String("reading", "", "meter reading since the last invoice")
	if err := fs.Parse(args); err != nil {
		return err
	}
	value, err := decimal.NewFromString(*reading)
	if err != nil {
		return fmt.Errorf("-reading: %w", err)
	}
	var out any
	err = store.Run(ctx, a.factory, func(uow store.UnitOfWork) error {
		estimate, err := a.billing.EstimateFromReading(ctx, uow, *account, value)
		out = estimate
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(out)
}

func cmdSummary(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	account := fs.String("account", "", "account id")
	from := fs.String("from", "", "range start (YYYY-MM-DD)")
	to := fs.String("to", "", "range end (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	start, err := parseDay("from", *from)
	if err != nil {
		return err
	}
	end, err := parseDay("to", *to)
	if err != nil {
		return err
	}
	var out any
	err = store.Run(ctx, a.factory, func(uow store.UnitOfWork) error {
		summary, err := a.billing.Summarize(ctx, uow, *account, start, end)
		out = summary
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(out)
}

func cmdBackfill(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	accounts := fs.String("accounts", "", "comma separated account ids (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accounts == "" {
		report, err := a.backfiller.BackfillAll(ctx)
		_ = printJSON(report)
		return err
	}
	report, err := a.backfiller.BackfillHistory(ctx, strings.Split(*accounts, ","))
	_ = printJSON(report)
	return err
}

func cmdForecast(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	account := fs.String("account", "", "account id (default: all)")
	months := fs.Int("months", a.cfg.Forecast.HorizonMonths, "horizon in months")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *account == "" {
		summary, err := a.forecasts.RegenerateAll(ctx, *months)
		_ = printJSON(summary)
		return err
	}
	run, err := a.forecasts.Regenerate(ctx, *account, *months)
	if err != nil {
		return err
	}
	return printJSON(struct {
		AccountID  string
		Status     string
		Points     int
		Replaced   int64
		Baseline   float64
		UnitPrice  decimal.Decimal
		RateSource string
	}{run.AccountID, string(run.Status), len(run.Points), run.Replaced, run.Baseline, run.UnitPrice, string(run.RateSource)})
}

func cmdEvaluate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	account := fs.String("account", "", "account id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	accuracy, err := a.forecasts.Evaluate(ctx, *account)
	if err != nil {
		return err
	}
	return printJSON(accuracy)
}

func cmdDetect(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	account := fs.String("account", "", "account id (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *account == "" {
		summary, err := a.anomalies.DetectAll(ctx)
		_ = printJSON(summary)
		return err
	}
	detection, err := a.anomalies.Detect(ctx, *account)
	if err != nil {
		return err
	}
	return printJSON(detection)
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	account := fs.String("account", "", "account id")
	format := fs.String("format", string(export.FormatPDF), "pdf or xlsx")
	out := fs.String("out", "", "output file (default: <account>.<format>)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}
	data, err := a.exporter.Export(ctx, *account, f)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("%s.%s", *account, f)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	a.logger.Info("invoices exported", zap.String("account_id", *account), zap.String("file", path), zap.Int("bytes", len(data)))
	return nil
}
