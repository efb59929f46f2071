// Package resultsink persists sweep output to one of several backends.
// Grounded on libs/database (pgx-over-database/sql connection handling) and
// libs/ingest (prepared-statement batch inserts), narrowed from market data
// upserts to run ledger writes: a run_results row is upserted on
// (simulator_id, run_id), while timestep rows are inserted once and never
// overwritten.
package resultsink

import (
	"context"

	"glidepath/internal/ledger"
)

// Writer persists one sweep's runs, tagged with the sweep's simulator_id.
// Implementations may buffer internally; callers must call Close to
// guarantee everything is flushed.
type Writer interface {
	WriteRun(ctx context.Context, simulatorID string, summary ledger.RunSummary, rows []ledger.TimestepRow) error
	Close() error
}

// MemorySink collects runs in memory, for tests and small interactive runs.
type MemorySink struct {
	SimulatorIDs []string
	Summaries    []ledger.RunSummary
	Rows         [][]ledger.TimestepRow
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) WriteRun(_ context.Context, simulatorID string, summary ledger.RunSummary, rows []ledger.TimestepRow) error {
	s.SimulatorIDs = append(s.SimulatorIDs, simulatorID)
	s.Summaries = append(s.Summaries, summary)
	s.Rows = append(s.Rows, rows)
	return nil
}

func (s *MemorySink) Close() error { return nil }
