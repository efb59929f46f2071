package resultsink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"glidepath/internal/ledger"
)

// CSVSink writes the four CSV artefacts spec.md §6 names into one directory
// per sweep: run_results.csv and timestep_data.csv grow one row (set of
// rows) per WriteRun call; historical_data.csv and simulation_inputs.csv
// are written once via their own methods, matching
// portfoliosim.Simulator.write_results's split between per-run and
// sweep-level output files.
type CSVSink struct {
	dir          string
	runResults   *csv.Writer
	timestepData *csv.Writer
	runFile      *os.File
	timestepFile *os.File
}

// NewCSVSink creates dir if needed and creates (or truncates)
// run_results.csv and timestep_data.csv under it, writing their headers
// immediately.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("resultsink.NewCSVSink: mkdir %q: %w", dir, err)
	}

	runFile, err := os.Create(filepath.Join(dir, "run_results.csv"))
	if err != nil {
		return nil, fmt.Errorf("resultsink.NewCSVSink: %w", err)
	}
	runWriter := csv.NewWriter(runFile)
	if err := runWriter.Write([]string{
		"simulator_id", "run_id", "start_ref_year", "start_ref_month", "end_ref_year", "end_ref_month",
		"final_value", "survival_duration",
	}); err != nil {
		runFile.Close()
		return nil, fmt.Errorf("resultsink.NewCSVSink: write run_results header: %w", err)
	}

	timestepFile, err := os.Create(filepath.Join(dir, "timestep_data.csv"))
	if err != nil {
		runFile.Close()
		return nil, fmt.Errorf("resultsink.NewCSVSink: %w", err)
	}
	timestepWriter := csv.NewWriter(timestepFile)
	if err := timestepWriter.Write([]string{
		"simulator_id", "run_id", "timestep", "year", "month", "cash_buffer",
		"bonds_qty", "stocks_qty", "gold_qty",
		"bonds_value", "stocks_value", "gold_value", "cash_notional",
		"allowance", "desired_allowance", "failed",
	}); err != nil {
		runFile.Close()
		timestepFile.Close()
		return nil, fmt.Errorf("resultsink.NewCSVSink: write timestep_data header: %w", err)
	}

	return &CSVSink{
		dir:          dir,
		runResults:   runWriter,
		timestepData: timestepWriter,
		runFile:      runFile,
		timestepFile: timestepFile,
	}, nil
}

func (s *CSVSink) WriteRun(_ context.Context, simulatorID string, summary ledger.RunSummary, rows []ledger.TimestepRow) error {
	if err := s.runResults.Write([]string{
		simulatorID,
		strconv.FormatUint(summary.RunID, 10),
		strconv.Itoa(summary.StartRefYear),
		strconv.Itoa(summary.StartRefMonth),
		strconv.Itoa(summary.EndRefYear),
		strconv.Itoa(summary.EndRefMonth),
		strconv.FormatFloat(summary.FinalValue, 'f', -1, 64),
		strconv.Itoa(summary.SurvivalDuration),
	}); err != nil {
		return fmt.Errorf("resultsink: write run_results row: %w", err)
	}

	for _, row := range rows {
		if err := s.timestepData.Write([]string{
			simulatorID,
			strconv.FormatUint(summary.RunID, 10),
			strconv.Itoa(row.Timestep),
			strconv.Itoa(row.Year),
			strconv.Itoa(row.Month),
			strconv.FormatFloat(row.CashBuffer, 'f', -1, 64),
			strconv.FormatFloat(row.BondsQty, 'f', -1, 64),
			strconv.FormatFloat(row.StocksQty, 'f', -1, 64),
			strconv.FormatFloat(row.GoldQty, 'f', -1, 64),
			strconv.FormatFloat(row.BondsValue, 'f', -1, 64),
			strconv.FormatFloat(row.StocksValue, 'f', -1, 64),
			strconv.FormatFloat(row.GoldValue, 'f', -1, 64),
			strconv.FormatFloat(row.CashNotional, 'f', -1, 64),
			strconv.FormatFloat(row.Allowance, 'f', -1, 64),
			strconv.FormatFloat(row.DesiredAllowance, 'f', -1, 64),
			strconv.FormatBool(row.Failed),
		}); err != nil {
			return fmt.Errorf("resultsink: write timestep_data row: %w", err)
		}
	}
	return nil
}

// WriteHistoricalData writes historical_data.csv: the input monthly price
// series tagged with simulatorID, once per sweep.
func (s *CSVSink) WriteHistoricalData(simulatorID string, series []ledger.PriceRecord) error {
	f, err := os.Create(filepath.Join(s.dir, "historical_data.csv"))
	if err != nil {
		return fmt.Errorf("resultsink: create historical_data.csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"simulator_id", "year", "month", "stocks", "bonds", "gold"}); err != nil {
		return fmt.Errorf("resultsink: write historical_data header: %w", err)
	}
	for _, rec := range series {
		if err := w.Write([]string{
			simulatorID,
			strconv.Itoa(rec.Year),
			strconv.Itoa(rec.Month),
			strconv.FormatFloat(rec.Price[ledger.Stocks], 'f', -1, 64),
			strconv.FormatFloat(rec.Price[ledger.Bonds], 'f', -1, 64),
			strconv.FormatFloat(rec.Price[ledger.Gold], 'f', -1, 64),
		}); err != nil {
			return fmt.Errorf("resultsink: write historical_data row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// SimulationInputs is the single-row flattening of one sweep's
// configuration that simulation_inputs.csv emits, per spec.md §6.
type SimulationInputs struct {
	StartingPortfolioValue float64
	DesiredAnnualIncome    float64
	Inflation              float64
	MinIncomeMultiplier    float64
	MaxWithdrawalRate      float64
	SimulationLengthYears  int
	CashBufferYears        int
	StocksAllocation       float64
	BondsAllocation        float64
	GoldAllocation         float64
	CashAllocation         float64
}

// WriteSimulationInputs writes simulation_inputs.csv: a single data row
// flattening the sweep's configuration, tagged with simulatorID.
func (s *CSVSink) WriteSimulationInputs(simulatorID string, in SimulationInputs) error {
	f, err := os.Create(filepath.Join(s.dir, "simulation_inputs.csv"))
	if err != nil {
		return fmt.Errorf("resultsink: create simulation_inputs.csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"simulator_id", "starting_portfolio_value", "desired_annual_income", "inflation",
		"min_income_multiplier", "max_withdrawal_rate", "simulation_length_years", "cash_buffer_years",
		"stocks_allocation", "bonds_allocation", "gold_allocation", "cash_allocation",
	}); err != nil {
		return fmt.Errorf("resultsink: write simulation_inputs header: %w", err)
	}
	if err := w.Write([]string{
		simulatorID,
		strconv.FormatFloat(in.StartingPortfolioValue, 'f', -1, 64),
		strconv.FormatFloat(in.DesiredAnnualIncome, 'f', -1, 64),
		strconv.FormatFloat(in.Inflation, 'f', -1, 64),
		strconv.FormatFloat(in.MinIncomeMultiplier, 'f', -1, 64),
		strconv.FormatFloat(in.MaxWithdrawalRate, 'f', -1, 64),
		strconv.Itoa(in.SimulationLengthYears),
		strconv.Itoa(in.CashBufferYears),
		strconv.FormatFloat(in.StocksAllocation, 'f', -1, 64),
		strconv.FormatFloat(in.BondsAllocation, 'f', -1, 64),
		strconv.FormatFloat(in.GoldAllocation, 'f', -1, 64),
		strconv.FormatFloat(in.CashAllocation, 'f', -1, 64),
	}); err != nil {
		return fmt.Errorf("resultsink: write simulation_inputs row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Close flushes both per-run writers and closes their files.
func (s *CSVSink) Close() error {
	s.runResults.Flush()
	s.timestepData.Flush()
	if err := s.runResults.Error(); err != nil {
		return err
	}
	if err := s.timestepData.Error(); err != nil {
		return err
	}
	if err := s.runFile.Close(); err != nil {
		return err
	}
	return s.timestepFile.Close()
}
