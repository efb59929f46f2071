package backtest

import (
	"context"
	"testing"

	"glidepath/internal/income"
	"glidepath/internal/ledger"
	"glidepath/internal/withdrawal"
)

func flatSeries(years int, stocks, bonds, gold float64) []ledger.PriceRecord {
	out := make([]ledger.PriceRecord, years*12)
	for i := range out {
		out[i] = ledger.NewPriceRecord(2000+i/12, i%12+1, stocks, bonds, gold)
	}
	return out
}

func mustAllocation(t *testing.T, weights map[string]float64) ledger.Allocation {
	t.Helper()
	a, err := ledger.NewAllocation(weights)
	if err != nil {
		t.Fatalf("NewAllocation: %v", err)
	}
	return a
}

func TestRun_OrdersResultsByWindowStart(t *testing.T) {
	cfg := Config{
		Income: income.Config{
			DesiredAnnualIncome: 40000,
			Inflation:           1.0,
			MinIncomeMultiplier: 0.5,
			HorizonYears:        10,
		},
		Withdrawal: withdrawal.Config{
			StartingPortfolioValue: 1_000_000,
			MaxWithdrawalRate:      0.1,
			CashBufferYears:        2,
			Allocation:             mustAllocation(t, map[string]float64{"stocks": 0.6, "bonds": 0.3, "gold": 0.1}),
		},
		Series:      flatSeries(15, 100, 100, 100),
		Concurrency: 4,
	}

	out, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// H=180, L=10 -> 180-120+1 = 61 windows.
	if len(out.Runs) != 61 {
		t.Fatalf("expected 61 runs, got %d", len(out.Runs))
	}
	for i, run := range out.Runs {
		if run.Summary.RunID == 0 {
			t.Errorf("run %d: expected a non-zero run ID", i)
		}
		if len(run.Rows) != 10 {
			t.Errorf("run %d: expected 10 ledger rows, got %d", i, len(run.Rows))
		}
	}
	// Window starts must be strictly increasing across the ordered output:
	// run i's window starts 1 month after run i-1's.
	for i := 1; i < len(out.Runs); i++ {
		prevStart := out.Runs[i-1].Rows[0].Year*12 + out.Runs[i-1].Rows[0].Month
		start := out.Runs[i].Rows[0].Year*12 + out.Runs[i].Rows[0].Month
		if start <= prevStart {
			t.Fatalf("expected increasing window starts, got %d then %d at index %d", prevStart, start, i)
		}
	}
}

func TestRun_EmptyResultsWhenSeriesTooShort(t *testing.T) {
	cfg := Config{
		Income: income.Config{
			DesiredAnnualIncome: 40000,
			Inflation:           1.0,
			MinIncomeMultiplier: 0.5,
			HorizonYears:        30,
		},
		Withdrawal: withdrawal.Config{
			StartingPortfolioValue: 1_000_000,
			MaxWithdrawalRate:      0.1,
			Allocation:             mustAllocation(t, map[string]float64{"stocks": 1.0}),
		},
		Series: flatSeries(5, 100, 100, 100),
	}

	out, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: expected a degenerate short series to yield empty results, not an error: %v", err)
	}
	if len(out.Runs) != 0 {
		t.Fatalf("expected 0 runs for a series shorter than the horizon, got %d", len(out.Runs))
	}
}

type sequentialIssuer struct {
	next uint64
}

func (s *sequentialIssuer) NextID(ctx context.Context) (uint64, error) {
	s.next++
	return s.next, nil
}

func TestRun_UsesConfiguredIssuer(t *testing.T) {
	cfg := Config{
		Income: income.Config{
			DesiredAnnualIncome: 40000,
			Inflation:           1.0,
			MinIncomeMultiplier: 0.5,
			HorizonYears:        5,
		},
		Withdrawal: withdrawal.Config{
			StartingPortfolioValue: 1_000_000,
			MaxWithdrawalRate:      0.1,
			Allocation:             mustAllocation(t, map[string]float64{"stocks": 1.0}),
		},
		Series:      flatSeries(6, 100, 100, 100),
		Concurrency: 2,
		Issuer:      &sequentialIssuer{},
	}

	out, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	seen := make(map[uint64]bool)
	for _, run := range out.Runs {
		if seen[run.Summary.RunID] {
			t.Fatalf("duplicate run ID %d", run.Summary.RunID)
		}
		seen[run.Summary.RunID] = true
	}
}
