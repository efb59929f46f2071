// Package income builds the year-indexed desired/minimum income schedule
// consumed by the withdrawal engine. It is a pure function of its config:
// no I/O, no shared state, grounded on
// internal/modules/backtest.Config's precondition-checks-before-run
// pattern.
package income

import (
	"fmt"
	"math"

	"glidepath/internal/ledger"
)

// Config holds the inputs to BuildSchedule, all validated before use.
type Config struct {
	// DesiredAnnualIncome is the year-1 income target. Must be > 0.
	DesiredAnnualIncome float64
	// Inflation is the per-year multiplier applied to DesiredAnnualIncome.
	// 1.0 = no inflation, <1 = deflation. Must be > 0.
	Inflation float64
	// MinIncomeMultiplier is the fraction of desired income treated as the
	// acceptable floor. Must be in [0,1].
	MinIncomeMultiplier float64
	// HorizonYears is the number of rows to produce. Must be > 0.
	HorizonYears int
}

// BuildSchedule produces HorizonYears rows: year=i+1,
// desired_income=DesiredAnnualIncome·Inflation^i,
// min_income=MinIncomeMultiplier·desired_income.
func BuildSchedule(cfg Config) ([]ledger.IncomeRow, error) {
	if cfg.DesiredAnnualIncome <= 0 {
		return nil, fmt.Errorf("%w: desired_annual_income must be > 0, got %v", ledger.ErrConfiguration, cfg.DesiredAnnualIncome)
	}
	if cfg.Inflation <= 0 {
		return nil, fmt.Errorf("%w: inflation must be > 0, got %v", ledger.ErrConfiguration, cfg.Inflation)
	}
	if cfg.MinIncomeMultiplier < 0 || cfg.MinIncomeMultiplier > 1 {
		return nil, fmt.Errorf("%w: min_income_multiplier must be in [0,1], got %v", ledger.ErrConfiguration, cfg.MinIncomeMultiplier)
	}
	if cfg.HorizonYears <= 0 {
		return nil, fmt.Errorf("%w: simulation_length_years must be > 0, got %v", ledger.ErrConfiguration, cfg.HorizonYears)
	}

	rows := make([]ledger.IncomeRow, cfg.HorizonYears)
	for i := range rows {
		desired := cfg.DesiredAnnualIncome * math.Pow(cfg.Inflation, float64(i))
		rows[i] = ledger.IncomeRow{
			Year:    i + 1,
			Desired: desired,
			Min:     cfg.MinIncomeMultiplier * desired,
		}
	}
	return rows, nil
}

// MustBuildSchedule is a test/fixture convenience that panics on error.
func MustBuildSchedule(cfg Config) []ledger.IncomeRow {
	rows, err := BuildSchedule(cfg)
	if err != nil {
		panic(err)
	}
	return rows
}
