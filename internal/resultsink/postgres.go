package resultsink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"glidepath/internal/ledger"
)

// PostgresConfig mirrors libs/database.Config, narrowed to the pool knobs
// this sink actually uses.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

func (c *PostgresConfig) applyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
}

// PostgresSink writes runs to a Postgres database over the pgx stdlib
// driver, matching libs/database's sql.Open("pgx", dsn) pattern rather
// than pgx's native pool API. Schema is created idempotently on connect;
// this repo has no migration tool since its two tables never evolve
// independently of the binary that writes them.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink connects with retry/backoff, matching
// libs/database.Connect, and idempotently creates its two tables.
func NewPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: resultsink: DSN must not be empty", ledger.ErrConfiguration)
	}
	cfg.applyDefaults()

	var db *sql.DB
	var err error
	delay := cfg.RetryDelay
	for attempt := 0; attempt <= cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		db, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			continue
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

		if err = db.PingContext(ctx); err == nil {
			break
		}
		db.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("resultsink: connect after %d attempts: %w", cfg.RetryAttempts+1, err)
	}

	if _, err := db.ExecContext(ctx, createRunResultsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("resultsink: create run_results table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTimestepDataTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("resultsink: create timestep_data table: %w", err)
	}

	return &PostgresSink{db: db}, nil
}

const createRunResultsTable = `
CREATE TABLE IF NOT EXISTS run_results (
	simulator_id      TEXT NOT NULL,
	run_id            BIGINT NOT NULL,
	start_ref_year    INTEGER NOT NULL,
	start_ref_month   INTEGER NOT NULL,
	end_ref_year      INTEGER NOT NULL,
	end_ref_month     INTEGER NOT NULL,
	final_value       DOUBLE PRECISION NOT NULL,
	survival_duration INTEGER NOT NULL,
	PRIMARY KEY (simulator_id, run_id)
)`

const createTimestepDataTable = `
CREATE TABLE IF NOT EXISTS timestep_data (
	simulator_id      TEXT NOT NULL,
	run_id            BIGINT NOT NULL,
	timestep          INTEGER NOT NULL,
	year              INTEGER NOT NULL,
	month             INTEGER NOT NULL,
	cash_buffer       DOUBLE PRECISION NOT NULL,
	bonds_qty         DOUBLE PRECISION NOT NULL,
	stocks_qty        DOUBLE PRECISION NOT NULL,
	gold_qty          DOUBLE PRECISION NOT NULL,
	bonds_value       DOUBLE PRECISION NOT NULL,
	stocks_value      DOUBLE PRECISION NOT NULL,
	gold_value        DOUBLE PRECISION NOT NULL,
	cash_notional     DOUBLE PRECISION NOT NULL,
	allowance         DOUBLE PRECISION NOT NULL,
	desired_allowance DOUBLE PRECISION NOT NULL,
	failed            BOOLEAN NOT NULL,
	PRIMARY KEY (simulator_id, run_id, timestep)
)`

const insertRunResult = `
INSERT INTO run_results (simulator_id, run_id, start_ref_year, start_ref_month, end_ref_year, end_ref_month, final_value, survival_duration)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (simulator_id, run_id) DO UPDATE SET
	final_value = EXCLUDED.final_value,
	survival_duration = EXCLUDED.survival_duration`

const insertTimestepRow = `
INSERT INTO timestep_data (simulator_id, run_id, timestep, year, month, cash_buffer, bonds_qty, stocks_qty, gold_qty, bonds_value, stocks_value, gold_value, cash_notional, allowance, desired_allowance, failed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (simulator_id, run_id, timestep) DO NOTHING`

func (s *PostgresSink) WriteRun(ctx context.Context, simulatorID string, summary ledger.RunSummary, rows []ledger.TimestepRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("resultsink: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertRunResult,
		simulatorID, summary.RunID, summary.StartRefYear, summary.StartRefMonth,
		summary.EndRefYear, summary.EndRefMonth, summary.FinalValue, summary.SurvivalDuration,
	); err != nil {
		return fmt.Errorf("resultsink: insert run_results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertTimestepRow)
	if err != nil {
		return fmt.Errorf("resultsink: prepare timestep_data insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			simulatorID, summary.RunID, row.Timestep, row.Year, row.Month, row.CashBuffer,
			row.BondsQty, row.StocksQty, row.GoldQty,
			row.BondsValue, row.StocksValue, row.GoldValue, row.CashNotional,
			row.Allowance, row.DesiredAllowance, row.Failed,
		); err != nil {
			return fmt.Errorf("resultsink: insert timestep_data row %d: %w", row.Timestep, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("resultsink: commit: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
