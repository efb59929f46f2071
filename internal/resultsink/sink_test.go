package resultsink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"glidepath/internal/ledger"
)

func sampleRun() (ledger.RunSummary, []ledger.TimestepRow) {
	summary := ledger.RunSummary{
		RunID:            1,
		StartRefYear:     2000,
		StartRefMonth:    1,
		EndRefYear:       2001,
		EndRefMonth:      1,
		FinalValue:       950_000,
		SurvivalDuration: 2,
	}
	rows := []ledger.TimestepRow{
		{Timestep: 1, Year: 2000, Month: 1, Allowance: 40000, DesiredAllowance: 40000},
		{Timestep: 2, Year: 2001, Month: 1, Allowance: 40000, DesiredAllowance: 40000},
	}
	return summary, rows
}

func TestMemorySink_CollectsRuns(t *testing.T) {
	sink := NewMemorySink()
	summary, rows := sampleRun()
	if err := sink.WriteRun(context.Background(), "sim-1", summary, rows); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}
	if len(sink.Summaries) != 1 || len(sink.Rows) != 1 {
		t.Fatalf("expected one collected run, got %d summaries, %d row sets", len(sink.Summaries), len(sink.Rows))
	}
	if len(sink.Rows[0]) != 2 {
		t.Errorf("expected 2 rows, got %d", len(sink.Rows[0]))
	}
	if len(sink.SimulatorIDs) != 1 || sink.SimulatorIDs[0] != "sim-1" {
		t.Errorf("expected simulator id to be recorded, got %v", sink.SimulatorIDs)
	}
}

func TestCSVSink_WritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	summary, rows := sampleRun()
	if err := sink.WriteRun(context.Background(), "sim-1", summary, rows); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	runRows := readCSV(t, filepath.Join(dir, "run_results.csv"))
	if len(runRows) != 2 { // header + 1 data row
		t.Fatalf("expected 2 rows in run_results.csv, got %d", len(runRows))
	}
	if runRows[1][0] != "sim-1" {
		t.Errorf("expected simulator_id column, got %q", runRows[1][0])
	}

	timestepRows := readCSV(t, filepath.Join(dir, "timestep_data.csv"))
	if len(timestepRows) != 3 { // header + 2 data rows
		t.Fatalf("expected 3 rows in timestep_data.csv, got %d", len(timestepRows))
	}
}

func TestCSVSink_WritesHistoricalDataAndSimulationInputs(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	defer sink.Close()

	series := []ledger.PriceRecord{
		ledger.NewPriceRecord(2000, 1, 100, 100, 100),
		ledger.NewPriceRecord(2000, 2, 101, 99, 102),
	}
	if err := sink.WriteHistoricalData("sim-1", series); err != nil {
		t.Fatalf("WriteHistoricalData: %v", err)
	}
	histRows := readCSV(t, filepath.Join(dir, "historical_data.csv"))
	if len(histRows) != 3 { // header + 2 rows
		t.Fatalf("expected 3 rows in historical_data.csv, got %d", len(histRows))
	}

	inputs := SimulationInputs{
		StartingPortfolioValue: 1_000_000,
		DesiredAnnualIncome:    40000,
		Inflation:              1.03,
		MinIncomeMultiplier:    0.5,
		MaxWithdrawalRate:      0.04,
		SimulationLengthYears:  30,
		CashBufferYears:        2,
		StocksAllocation:       0.6,
		BondsAllocation:        0.3,
		GoldAllocation:         0.1,
	}
	if err := sink.WriteSimulationInputs("sim-1", inputs); err != nil {
		t.Fatalf("WriteSimulationInputs: %v", err)
	}
	inputRows := readCSV(t, filepath.Join(dir, "simulation_inputs.csv"))
	if len(inputRows) != 2 { // header + 1 row
		t.Fatalf("expected 2 rows in simulation_inputs.csv, got %d", len(inputRows))
	}
	if inputRows[1][0] != "sim-1" {
		t.Errorf("expected simulator_id column, got %q", inputRows[1][0])
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %q: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %q: %v", path, err)
	}
	return rows
}
