// Package pricetape slices a monthly historical price series into the
// rolling, yearly-decimated windows the withdrawal engine runs against.
// Grounded on libs/walkforward.buildWindows, generalised from
// calendar-duration IS/OOS windows to a fixed monthly stride/yearly-
// decimation scheme.
package pricetape

import "glidepath/internal/ledger"

// Window is one rolling-start simulation input: a freshly allocated copy
// of every 12th record of the source series starting at StartIndex, one
// row per simulated year. The source series is not modified.
type Window struct {
	// StartIndex is the index into the source series this window begins at.
	StartIndex int
	// Records holds HorizonYears price records, one per simulated year.
	Records []ledger.PriceRecord
}

// GenerateWindows yields one Window per feasible rolling start date. A
// series of length H and a horizon of L years yields H-12L+1 windows, or
// zero if H < 12L, which is a valid, non-fatal degenerate outcome.
func GenerateWindows(series []ledger.PriceRecord, horizonYears int) []Window {
	months := 12 * horizonYears
	if months <= 0 || len(series) < months {
		return nil
	}

	count := len(series) - months + 1
	windows := make([]Window, 0, count)
	for start := 0; start < count; start++ {
		records := make([]ledger.PriceRecord, 0, horizonYears)
		for offset := 0; offset < months; offset += 12 {
			records = append(records, series[start+offset])
		}
		windows = append(windows, Window{StartIndex: start, Records: records})
	}
	return windows
}
