// Package backtest orchestrates a full parameter sweep: one withdrawal
// engine run per rolling window, dispatched concurrently and collected in
// window order. Grounded on libs/walkforward.Engine.Run (IS/OOS window
// dispatch, per-window failure logging) and internal/modules/backtest.Engine
// (deterministic run identity), generalised from IS/OOS calendar windows to
// the withdrawal engine's yearly-decimated price windows.
package backtest

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"glidepath/internal/income"
	"glidepath/internal/ledger"
	"glidepath/internal/obslog"
	"glidepath/internal/pricetape"
	"glidepath/internal/withdrawal"
)

// IDIssuer assigns deterministic, reproducible run identifiers. See
// internal/obslog for the local-counter and Redis-backed implementations.
type IDIssuer interface {
	NextID(ctx context.Context) (uint64, error)
}

// Config holds one parameter sweep's inputs: the income schedule config,
// the withdrawal engine config (shared by every window, including its
// StartingPortfolioValue), the price series to window, and how many
// windows may run concurrently.
type Config struct {
	Income      income.Config
	Withdrawal  withdrawal.Config
	Series      []ledger.PriceRecord
	Concurrency int
	Issuer      IDIssuer
	// SimulatorID identifies this sweep in output artefacts. If empty, Run
	// assigns a fresh one via obslog.NewSimulatorID.
	SimulatorID string
}

// RunOutput is one window's complete outcome.
type RunOutput struct {
	Summary ledger.RunSummary
	Rows    []ledger.TimestepRow
}

// Output is the sweep's full result set, ordered by window start index.
type Output struct {
	SimulatorID string
	Runs        []RunOutput
}

// Run validates cfg, builds the income schedule and price windows, and
// dispatches one withdrawal.Engine per window with at most cfg.Concurrency
// running at a time. A window whose engine fails to construct or run is
// logged and excluded from Output. Run returns an error when the income
// config is invalid, the issuer fails, or every window failed; a series too
// short for any window yields an Output with no Runs and a nil error.
func Run(ctx context.Context, cfg Config) (*Output, error) {
	simulatorID := cfg.SimulatorID
	if simulatorID == "" {
		simulatorID = obslog.NewSimulatorID()
	}
	ctx = obslog.WithRunInfo(ctx, obslog.RunInfo{SimulatorID: simulatorID})

	schedule, err := income.BuildSchedule(cfg.Income)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	windows := pricetape.GenerateWindows(cfg.Series, cfg.Income.HorizonYears)
	if len(windows) == 0 {
		log.Printf("[backtest] simulator_id=%s no feasible windows for a %d-year horizon over %d months of data; emitting empty results",
			simulatorID, cfg.Income.HorizonYears, len(cfg.Series))
		return &Output{SimulatorID: simulatorID, Runs: []RunOutput{}}, nil
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	log.Printf("[backtest] simulator_id=%s starting sweep windows=%d horizon=%dy concurrency=%d", simulatorID, len(windows), cfg.Income.HorizonYears, concurrency)

	results := make([]RunOutput, len(windows))
	ok := make([]bool, len(windows))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for i, window := range windows {
		i, window := i, window
		group.Go(func() error {
			runID, err := issueID(groupCtx, cfg.Issuer, i)
			if err != nil {
				return fmt.Errorf("backtest: window %d: %w", i, err)
			}

			engine, err := withdrawal.New(cfg.Withdrawal, schedule, window.Records, runID)
			if err != nil {
				obslog.LogRunFailed(groupCtx, fmt.Errorf("window %d failed to initialise: %w", i, err))
				return nil
			}

			summary, rows, err := engine.Run()
			if err != nil {
				obslog.LogRunFailed(groupCtx, fmt.Errorf("window %d run failed: %w", i, err))
				return nil
			}

			results[i] = RunOutput{Summary: summary, Rows: rows}
			ok[i] = true
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	out := &Output{SimulatorID: simulatorID, Runs: make([]RunOutput, 0, len(windows))}
	for i, succeeded := range ok {
		if succeeded {
			out.Runs = append(out.Runs, results[i])
		}
	}
	if len(out.Runs) == 0 {
		return nil, fmt.Errorf("%w: backtest: every window failed", ledger.ErrInvariant)
	}

	log.Printf("[backtest] sweep complete runs=%d/%d", len(out.Runs), len(windows))
	return out, nil
}

// issueID falls back to a per-window sequential ID when no issuer is
// configured, so callers that don't need reproducible cross-process IDs
// can leave Config.Issuer nil.
func issueID(ctx context.Context, issuer IDIssuer, fallback int) (uint64, error) {
	if issuer == nil {
		return uint64(fallback) + 1, nil
	}
	return issuer.NextID(ctx)
}
