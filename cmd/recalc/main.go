// Command recalc rebuilds an owner's daily snapshot history directly against
// the store, without going through the queue. Useful after bulk imports or to
// re-run failed days reported by the worker.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/shopspring/decimal"

	"patrimonio/internal/cli"
	"patrimonio/internal/core"
	"patrimonio/internal/engine"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	owner := flag.String("owner", "", "owner whose snapshots to rebuild (required)")
	fromStr := flag.String("from", "", "first date of the range, YYYY-MM-DD (required)")
	rateStr := flag.String("rate", "", "exchange rate override; defaults to the stored rate")
	flag.Parse()

	if *owner == "" || *fromStr == "" {
		flag.Usage()
		os.Exit(2)
	}

	from, err := core.ParseDate(*fromStr)
	if err != nil {
		logger.Error("Invalid -from date", "error", err)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx := context.Background()

	var rate decimal.Decimal
	if *rateStr != "" {
		if rate, err = decimal.NewFromString(*rateStr); err != nil {
			logger.Error("Invalid -rate", "error", err)
			os.Exit(2)
		}
	} else {
		if rate, err = repo.ExchangeRate(ctx); err != nil {
			logger.Error("No usable exchange rate stored; pass -rate", "error", err)
			os.Exit(1)
		}
	}

	engineConfig := engine.DefaultConfig()
	engineConfig.Concurrency = cfg.Concurrency
	eng := engine.New(repo, repo, repo, repo, engineConfig)

	if err := eng.Recalculate(ctx, *owner, from, rate); err != nil {
		var rangeErr *engine.RangeError
		if errors.As(err, &rangeErr) {
			for _, day := range rangeErr.Days {
				logger.Error("Day failed", "date", day.Date.String(), "error", day.Err)
			}
			logger.Error("Recalculation completed with failures",
				"owner", *owner, "failed_days", len(rangeErr.Days))
			os.Exit(1)
		}
		logger.Error("Recalculation failed", "owner", *owner, "error", err)
		os.Exit(1)
	}

	logger.Info("Recalculation complete", "owner", *owner, "from", from.String())
}
