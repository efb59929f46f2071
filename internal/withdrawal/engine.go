// Package withdrawal implements the single-run withdrawal state machine.
// One Engine owns one window's portfolio, cash buffer, allowance and
// ledger, and is discarded after Run returns. Grounded on
// internal/modules/backtest.Engine (seed/ledger/result shape) and, for the
// branch semantics themselves, on portfoliosim.Simulation.execute_strategy.
package withdrawal

import (
	"fmt"

	"glidepath/internal/ledger"
)

// Config holds the per-run parameters that are constant across the window's
// timesteps.
type Config struct {
	// StartingPortfolioValue is the combined portfolio + cash buffer value
	// at t=0. Must be > 0.
	StartingPortfolioValue float64
	// MaxWithdrawalRate is the rail: the max fraction of current portfolio
	// value that may leave the portfolio in one timestep. Must be in (0,1].
	MaxWithdrawalRate float64
	// CashBufferYears is how many future years of desired income the
	// buffer aims to hold. Must be >= 0.
	CashBufferYears int
	// Allocation is the target weight per asset class, normalised on use.
	Allocation ledger.Allocation
}

// Engine runs one simulation over one price window.
type Engine struct {
	cfg       Config
	schedule  []ledger.IncomeRow
	window    []ledger.PriceRecord
	weights   ledger.Allocation
	runID     uint64
	portfolio ledger.Portfolio
	buffer    float64
	prices    ledger.PriceRecord
	allowance float64
	failed    bool
	rows      *ledger.Builder
}

// New validates cfg against schedule/window and initialises the portfolio
// and cash buffer. runID is assigned by the caller (typically the
// orchestrator, as a deterministic per-window counter) and is stamped onto
// the RunSummary returned by Run.
func New(cfg Config, schedule []ledger.IncomeRow, window []ledger.PriceRecord, runID uint64) (*Engine, error) {
	if cfg.StartingPortfolioValue <= 0 {
		return nil, fmt.Errorf("%w: starting_portfolio_value must be > 0, got %v", ledger.ErrConfiguration, cfg.StartingPortfolioValue)
	}
	if cfg.MaxWithdrawalRate <= 0 || cfg.MaxWithdrawalRate > 1 {
		return nil, fmt.Errorf("%w: max_withdrawal_rate must be in (0,1], got %v", ledger.ErrConfiguration, cfg.MaxWithdrawalRate)
	}
	if cfg.CashBufferYears < 0 {
		return nil, fmt.Errorf("%w: cash_buffer_years must be >= 0, got %v", ledger.ErrConfiguration, cfg.CashBufferYears)
	}
	if cfg.Allocation.Sum() <= 0 {
		return nil, fmt.Errorf("%w: portfolio_allocation must sum to > 0", ledger.ErrConfiguration)
	}
	if len(schedule) == 0 || len(window) != len(schedule) {
		return nil, fmt.Errorf("%w: window length %d does not match schedule length %d", ledger.ErrData, len(window), len(schedule))
	}

	e := &Engine{
		cfg:      cfg,
		schedule: schedule,
		window:   window,
		weights:  cfg.Allocation.Normalized(),
		runID:    runID,
		rows:     ledger.NewBuilder(len(schedule)),
	}
	e.initialise()
	return e, nil
}

func (e *Engine) initialise() {
	horizon := len(e.schedule)
	firstPrices := e.window[0]

	desiredBuffer0 := sumDesired(e.schedule, 0, min(e.cfg.CashBufferYears, horizon))
	if desiredBuffer0 > e.cfg.StartingPortfolioValue {
		e.buffer = e.cfg.StartingPortfolioValue
	} else {
		e.buffer = desiredBuffer0
	}

	allocatable := e.cfg.StartingPortfolioValue - e.buffer
	if allocatable < 0 {
		allocatable = 0
	}
	e.portfolio = ledger.Portfolio{}
	e.portfolio.Qty[ledger.Cash] = allocatable
	e.portfolio.Allocate(e.weights, firstPrices)
	e.prices = firstPrices
}

// Run executes all len(schedule) timesteps and returns the run summary and
// the full per-timestep ledger.
func (e *Engine) Run() (ledger.RunSummary, []ledger.TimestepRow, error) {
	for t := range e.schedule {
		e.allowance = 0
		e.prices = e.window[t]

		if err := e.executeStrategy(t); err != nil {
			return ledger.RunSummary{}, nil, err
		}

		e.portfolio.Allocate(e.weights, e.prices)

		if e.portfolio.Value(e.prices) <= 0 {
			e.failed = true
		}

		e.logRow(t)
	}

	rows := e.rows.Rows()
	survival := e.rows.FirstFailedIndex()
	if survival < 0 {
		survival = len(rows)
	}

	summary := ledger.RunSummary{
		RunID:            e.runID,
		StartRefYear:     e.window[0].Year,
		StartRefMonth:    e.window[0].Month,
		EndRefYear:       e.window[len(e.window)-1].Year,
		EndRefMonth:      e.window[len(e.window)-1].Month,
		FinalValue:       e.portfolio.Value(e.prices) + e.buffer,
		SurvivalDuration: survival,
	}
	return summary, rows, nil
}

// executeStrategy implements the six-branch withdrawal strategy. Branches
// are evaluated in order; the first match wins.
func (e *Engine) executeStrategy(t int) error {
	desired := e.schedule[t].Desired
	minIncome := e.schedule[t].Min
	value := e.portfolio.Value(e.prices)
	withdrawalLimit := e.cfg.MaxWithdrawalRate * value
	currentBuffer := e.buffer
	horizon := len(e.schedule)

	switch {
	case desired <= withdrawalLimit:
		e.allowance += e.portfolio.DrawFromCash(desired, e.prices)

		desiredBuffer := sumDesired(e.schedule, t, min(t+e.cfg.CashBufferYears, horizon))
		if desiredBuffer-currentBuffer <= withdrawalLimit-desired {
			// Branch 1: full refill to target buffer.
			e.buffer += e.portfolio.AdjustCash(desiredBuffer-currentBuffer, e.prices)
		} else {
			// Branch 2: partial refill, capped by the rail.
			e.buffer += e.portfolio.AdjustCash(withdrawalLimit-desired, e.prices)
		}

	case currentBuffer >= desired:
		// Branch 3: buffer alone covers the desired income.
		e.allowance += e.drawFromBuffer(desired)

	default:
		e.allowance += e.drawFromBuffer(currentBuffer)

		switch {
		case withdrawalLimit >= desired-e.allowance:
			// Branch 4: buffer plus a portfolio top-up reaches desired.
			e.allowance += e.portfolio.DrawFromCash(desired-e.allowance, e.prices)
		case withdrawalLimit >= minIncome-e.allowance:
			// Branch 5: rail caps delivery below desired but above min.
			e.allowance += e.portfolio.DrawFromCash(withdrawalLimit, e.prices)
		default:
			// Branch 6: rail is below the min-income floor; the floor is
			// drawn from the portfolio regardless of the rail.
			e.allowance += e.portfolio.DrawFromCash(minIncome-e.allowance, e.prices)
		}
	}

	if e.portfolio.Value(e.prices) <= 0 {
		e.failed = true
	}
	return nil
}

// drawFromBuffer clamps amount to the current cash buffer and transfers it
// to the allowance, returning the amount actually drawn.
func (e *Engine) drawFromBuffer(amount float64) float64 {
	if amount > e.buffer {
		amount = e.buffer
	}
	if amount < 0 {
		amount = 0
	}
	e.buffer -= amount
	return amount
}

func (e *Engine) logRow(t int) {
	p := e.prices
	e.rows.Append(ledger.TimestepRow{
		Timestep:         t + 1,
		Year:             p.Year,
		Month:            p.Month,
		CashBuffer:       e.buffer,
		BondsQty:         e.portfolio.Qty[ledger.Bonds],
		StocksQty:        e.portfolio.Qty[ledger.Stocks],
		GoldQty:          e.portfolio.Qty[ledger.Gold],
		BondsValue:       e.portfolio.Qty[ledger.Bonds] * p.Price[ledger.Bonds],
		StocksValue:      e.portfolio.Qty[ledger.Stocks] * p.Price[ledger.Stocks],
		GoldValue:        e.portfolio.Qty[ledger.Gold] * p.Price[ledger.Gold],
		CashNotional:     e.portfolio.Qty[ledger.Cash],
		Allowance:        e.allowance,
		DesiredAllowance: e.schedule[t].Desired,
		Failed:           e.failed,
	})
}

// sumDesired sums schedule[start:end].Desired, clipping to schedule bounds.
func sumDesired(schedule []ledger.IncomeRow, start, end int) float64 {
	if start < 0 {
		start = 0
	}
	if end > len(schedule) {
		end = len(schedule)
	}
	if start >= end {
		return 0
	}
	var sum float64
	for _, row := range schedule[start:end] {
		sum += row.Desired
	}
	return sum
}
