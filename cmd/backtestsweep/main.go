// backtestsweep runs one withdrawal-strategy backtest sweep (one config,
// every rolling window) over a historical price series and writes results
// with a configurable sink.
// Grounded on run_simulator.py's config-dict-driven sweep loop, adapted to
// flag-driven configuration in the style of the cmd/jax-* services.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"glidepath/internal/backtest"
	"glidepath/internal/historicaldata"
	"glidepath/internal/income"
	"glidepath/internal/ledger"
	"glidepath/internal/obslog"
	"glidepath/internal/resultsink"
	"glidepath/internal/riskconfig"
	"glidepath/internal/withdrawal"
)

func main() {
	configPath := flag.String("config", "", "path to the sweep config JSON file (required)")
	seriesPath := flag.String("series", "", "path to the monthly price series CSV (required)")
	outDir := flag.String("out", "./results", "directory results are written to (CSV sink)")
	catalogDir := flag.String("catalog-dir", "./data-catalog", "directory for the content-hashed historical data catalog")
	sinkKind := flag.String("sink", "csv", "result sink: csv or postgres")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres DSN, required when -sink=postgres")
	concurrency := flag.Int("concurrency", 4, "max concurrent window runs")
	redisAddr := flag.String("redis-id-issuer", "", "optional Redis address for a shared run-ID counter")
	flag.Parse()

	if *configPath == "" || *seriesPath == "" {
		log.Fatal("backtestsweep: -config and -series are required")
	}

	cfg, err := riskconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("backtestsweep: %v", err)
	}
	allocation, err := cfg.ToAllocation()
	if err != nil {
		log.Fatalf("backtestsweep: %v", err)
	}

	catalog, err := historicaldata.Open(*catalogDir)
	if err != nil {
		log.Fatalf("backtestsweep: %v", err)
	}
	dataset, err := catalog.RegisterOrVerify(filepath.Base(*seriesPath), *seriesPath)
	if err != nil {
		log.Fatalf("backtestsweep: %v", err)
	}
	series, err := catalog.LoadSeries(dataset.ID)
	if err != nil {
		log.Fatalf("backtestsweep: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		log.Println("backtestsweep: shutting down")
		cancel()
	}()

	var issuer backtest.IDIssuer
	if *redisAddr != "" {
		redisIssuer, err := obslog.NewRedisIssuer(obslog.RedisIssuerConfig{Addr: *redisAddr})
		if err != nil {
			log.Fatalf("backtestsweep: %v", err)
		}
		defer redisIssuer.Close()
		issuer = redisIssuer
	} else {
		issuer = obslog.NewLocalIssuer()
	}

	sweepCfg := backtest.Config{
		Income:      incomeConfig(cfg),
		Withdrawal:  withdrawalConfig(cfg, allocation),
		Series:      series,
		Concurrency: *concurrency,
		Issuer:      issuer,
	}

	output, err := backtest.Run(ctx, sweepCfg)
	if err != nil {
		log.Fatalf("backtestsweep: %v", err)
	}

	ctx = obslog.WithRunInfo(ctx, obslog.RunInfo{SimulatorID: output.SimulatorID})

	// Output artefacts are written under a directory named by simulator_id,
	// per spec.md §6.
	runDir := filepath.Join(*outDir, output.SimulatorID)

	sink, err := openSink(ctx, *sinkKind, runDir, *postgresDSN)
	if err != nil {
		log.Fatalf("backtestsweep: %v", err)
	}
	defer sink.Close()

	for _, run := range output.Runs {
		if err := sink.WriteRun(ctx, output.SimulatorID, run.Summary, run.Rows); err != nil {
			log.Fatalf("backtestsweep: %v", err)
		}
		obslog.LogRunComplete(ctx, run.Summary.RunID, run.Summary.SurvivalDuration, run.Summary.FinalValue)
	}

	if csvSink, ok := sink.(*resultsink.CSVSink); ok {
		if err := csvSink.WriteHistoricalData(output.SimulatorID, series); err != nil {
			log.Fatalf("backtestsweep: %v", err)
		}
		if err := csvSink.WriteSimulationInputs(output.SimulatorID, simulationInputs(cfg)); err != nil {
			log.Fatalf("backtestsweep: %v", err)
		}
	}

	log.Printf("backtestsweep: simulator_id=%s wrote %d runs to %s", output.SimulatorID, len(output.Runs), runDir)
}

func simulationInputs(cfg riskconfig.Config) resultsink.SimulationInputs {
	return resultsink.SimulationInputs{
		StartingPortfolioValue: cfg.StartingPortfolioValue,
		DesiredAnnualIncome:    cfg.DesiredAnnualIncome,
		Inflation:              cfg.Inflation,
		MinIncomeMultiplier:    cfg.MinIncomeMultiplier,
		MaxWithdrawalRate:      cfg.MaxWithdrawalRate,
		SimulationLengthYears:  cfg.HorizonYears,
		CashBufferYears:        cfg.CashBufferYears,
		StocksAllocation:       cfg.Allocation["stocks"],
		BondsAllocation:        cfg.Allocation["bonds"],
		GoldAllocation:         cfg.Allocation["gold"],
		CashAllocation:         cfg.Allocation["cash"],
	}
}

func incomeConfig(cfg riskconfig.Config) income.Config {
	return income.Config{
		DesiredAnnualIncome: cfg.DesiredAnnualIncome,
		Inflation:           cfg.Inflation,
		MinIncomeMultiplier: cfg.MinIncomeMultiplier,
		HorizonYears:        cfg.HorizonYears,
	}
}

func withdrawalConfig(cfg riskconfig.Config, allocation ledger.Allocation) withdrawal.Config {
	return withdrawal.Config{
		StartingPortfolioValue: cfg.StartingPortfolioValue,
		MaxWithdrawalRate:      cfg.MaxWithdrawalRate,
		CashBufferYears:        cfg.CashBufferYears,
		Allocation:             allocation,
	}
}

func openSink(ctx context.Context, kind, outDir, postgresDSN string) (resultsink.Writer, error) {
	switch kind {
	case "csv":
		return resultsink.NewCSVSink(outDir)
	case "postgres":
		return resultsink.NewPostgresSink(ctx, resultsink.PostgresConfig{DSN: postgresDSN})
	default:
		log.Fatalf("backtestsweep: unknown sink %q (want csv or postgres)", kind)
		return nil, nil
	}
}
