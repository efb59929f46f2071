package ledger

import "errors"

// Sentinel errors identifying the three error kinds a run can fail with.
// Wrap these with fmt.Errorf("%w: ...") to attach the offending field,
// value and received type (libs/dataset, libs/risk, libs/database all wrap
// a sentinel or a %w-chained fmt.Errorf rather than defining bespoke error
// structs).
var (
	// ErrConfiguration marks a configuration field that failed a range or
	// type check. Fatal: surfaced before any simulation runs.
	ErrConfiguration = errors.New("configuration error")

	// ErrData marks a malformed historical record (missing column,
	// non-numeric price) or a series file with no data rows. Fatal. A
	// series too short for the horizon is NOT wrapped in this error — it
	// is a valid, non-fatal degenerate case that simply yields zero windows.
	ErrData = errors.New("data error")

	// ErrInvariant marks an internal invariant violation (negative
	// balance after clamping, value-accounting mismatch beyond floating
	// tolerance). Should never occur under a correct implementation.
	ErrInvariant = errors.New("invariant violation")
)
