package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datafluxo/financas_backend/config"
	"github.com/datafluxo/financas_backend/legacy"
	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/reports"
	"github.com/datafluxo/financas_backend/store"
	"github.com/datafluxo/financas_backend/store/gormstore"
	"github.com/datafluxo/financas_backend/workflow"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	exitUserError     = 1
	exitInternalError = 2
)

func main() {
	app := &cli.App{
		Name:  "financas",
		Usage: "small-business ledger engine",
		Commands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "run the engine until interrupted, refreshing posting states periodically",
				Action: runStart,
			},
			{
				Name:   "test",
				Usage:  "self-check the live data: refresh states, recompute balances, verify report identities",
				Action: runTest,
			},
			{
				Name:   "status",
				Usage:  "print entity counts and per-account balances",
				Action: runStatus,
			},
			{
				Name:  "migrate",
				Usage: "apply schema upgrade steps, optionally importing a legacy document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "legacy-file", Usage: "path to a legacy export document to import after the upgrades"},
				},
				Action: runMigrate,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(exitInternalError)
	}
}

type runtime struct {
	logger *logrus.Logger
	gorm   *gormstore.Gorm
	ledger *workflow.Ledger
}

func connect(ctx context.Context) (*runtime, error) {
	config.LoadEnv()
	logger := config.NewLogger()

	db, err := config.ConnectDatabaseWithRetry(logger)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("financas: %v", err), exitInternalError)
	}
	st := gormstore.New(db)

	rdb := config.ConnectRedis(ctx, logger)
	ledger := workflow.NewLedger(st, logger, workflow.NewRedisBalanceCache(rdb), config.NewLocker(rdb))
	return &runtime{logger: logger, gorm: st, ledger: ledger}, nil
}

func runStart(c *cli.Context) error {
	ctx := c.Context
	rt, err := connect(ctx)
	if err != nil {
		return err
	}

	pending, err := rt.gorm.PendingUpgrades(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("financas: %v", err), exitInternalError)
	}
	if len(pending) > 0 {
		return cli.Exit(fmt.Sprintf("financas: schema is behind, run `financas migrate` first (pending: %v)", pending), exitUserError)
	}

	if _, err := rt.ledger.RefreshStates(ctx, models.Today()); err != nil {
		return cli.Exit(fmt.Sprintf("financas: %v", err), exitInternalError)
	}

	interval := time.Duration(config.IntFromEnv("REFRESH_INTERVAL_MINUTES", 60)) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	rt.logger.WithField("refreshInterval", interval.String()).Info("engine started")

	for {
		select {
		case <-ticker.C:
			if _, err := rt.ledger.RefreshStates(ctx, models.Today()); err != nil {
				rt.logger.Errorf("periodic state refresh failed: %v", err)
			}
		case sig := <-stop:
			rt.logger.WithField("signal", sig.String()).Info("engine stopping")
			return nil
		}
	}
}

func runTest(c *cli.Context) error {
	ctx := c.Context
	rt, err := connect(ctx)
	if err != nil {
		return err
	}

	if _, err := rt.ledger.RefreshStates(ctx, models.Today()); err != nil {
		return cli.Exit(fmt.Sprintf("financas: refresh states: %v", err), exitInternalError)
	}
	if err := rt.ledger.RecomputeBalances(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("financas: recompute balances: %v", err), exitInternalError)
	}

	today := models.Today()
	yearStart := models.NewDate(today.Year, 1, 1)

	flow, err := reports.GetCashFlowReport(ctx, rt.gorm, reports.AllAccounts, yearStart, today)
	if err != nil {
		return cli.Exit(fmt.Sprintf("financas: cash flow: %v", err), exitInternalError)
	}
	expected := flow.OpeningBalance.Add(flow.TotalIn).Sub(flow.TotalOut)
	if !flow.ClosingBalance.Equal(expected) {
		return cli.Exit(fmt.Sprintf("financas: cash-flow identity broken: closing %s, expected %s",
			flow.ClosingBalance, expected), exitInternalError)
	}

	for _, side := range []reports.AgingSide{reports.AgingReceivables, reports.AgingPayables} {
		aging, err := reports.GetAgingReport(ctx, rt.gorm, side, today)
		if err != nil {
			return cli.Exit(fmt.Sprintf("financas: aging: %v", err), exitInternalError)
		}
		bucketSum := aging.Current.Total.
			Add(aging.Days31To60.Total).
			Add(aging.Days61To90.Total).
			Add(aging.Days90Plus.Total)
		if !bucketSum.Equal(aging.Total) {
			return cli.Exit(fmt.Sprintf("financas: aging buckets for %s sum to %s, expected %s",
				side, bucketSum, aging.Total), exitInternalError)
		}
	}

	fmt.Println("self-check passed")
	return nil
}

func runStatus(c *cli.Context) error {
	ctx := c.Context
	rt, err := connect(ctx)
	if err != nil {
		return err
	}

	accounts, err := rt.gorm.Accounts().FetchActive(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("financas: %v", err), exitInternalError)
	}
	categories, err := rt.gorm.Categories().FetchAll(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("financas: %v", err), exitInternalError)
	}
	parties, err := rt.gorm.Parties().Fetch(ctx, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("financas: %v", err), exitInternalError)
	}
	postings, err := rt.gorm.Postings().Fetch(ctx, store.PostingFilter{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("financas: %v", err), exitInternalError)
	}

	byState := map[models.PostingState]int{}
	for _, p := range postings {
		byState[p.State]++
	}

	fmt.Printf("accounts:   %d active\n", len(accounts))
	fmt.Printf("categories: %d\n", len(categories))
	fmt.Printf("parties:    %d\n", len(parties))
	fmt.Printf("postings:   %d (pending %d, overdue %d, settled %d, cancelled %d)\n",
		len(postings),
		byState[models.PostingStatePending],
		byState[models.PostingStateOverdue],
		byState[models.PostingStateSettled],
		byState[models.PostingStateCancelled])

	today := models.Today()
	for _, account := range accounts {
		balance, err := rt.ledger.Balance(ctx, account.Name, today)
		if err != nil {
			return cli.Exit(fmt.Sprintf("financas: balance of %q: %v", account.Name, err), exitInternalError)
		}
		fmt.Printf("  %-30s %s\n", account.Name, balance.FormatBRL())
	}
	return nil
}

func runMigrate(c *cli.Context) error {
	ctx := c.Context
	rt, err := connect(ctx)
	if err != nil {
		return err
	}

	if err := rt.gorm.RunUpgrades(ctx, rt.logger); err != nil {
		return cli.Exit(fmt.Sprintf("financas: %v", err), exitInternalError)
	}

	if path := c.String("legacy-file"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("financas: cannot read legacy file: %v", err), exitUserError)
		}
		importer := legacy.NewImporter(rt.gorm, rt.logger)
		summary, err := importer.Import(ctx, raw)
		if err != nil {
			return cli.Exit(fmt.Sprintf("financas: legacy import: %v", err), exitUserError)
		}
		if summary.Skipped {
			fmt.Println("legacy document already imported, nothing to do")
		} else {
			fmt.Printf("imported %d accounts, %d categories, %d parties, %d postings\n",
				summary.Accounts, summary.Categories, summary.Parties, summary.Postings)
		}
	}
	return nil
}
