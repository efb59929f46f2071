package ledger

// TimestepRow is one row of a run's per-timestep ledger.
type TimestepRow struct {
	Timestep         int
	Year             int
	Month            int
	CashBuffer       float64
	BondsQty         float64
	StocksQty        float64
	GoldQty          float64
	BondsValue       float64
	StocksValue      float64
	GoldValue        float64
	CashNotional     float64
	Allowance        float64
	DesiredAllowance float64
	Failed           bool
}

// RunSummary is a run's terminal outcome.
type RunSummary struct {
	RunID            uint64
	StartRefYear     int
	StartRefMonth    int
	EndRefYear       int
	EndRefMonth      int
	FinalValue       float64
	SurvivalDuration int
}

// Builder accumulates a ledger column-by-column instead of row-by-row,
// avoiding a per-row struct allocation on the hot path. Rows assembles the
// output at the end of a run, which is the only place the row-oriented
// TimestepRow shape is actually needed.
type Builder struct {
	timestep         []int
	year             []int
	month            []int
	cashBuffer       []float64
	bondsQty         []float64
	stocksQty        []float64
	goldQty          []float64
	bondsValue       []float64
	stocksValue      []float64
	goldValue        []float64
	cashNotional     []float64
	allowance        []float64
	desiredAllowance []float64
	failed           []bool
}

// NewBuilder preallocates each column to hold capacity rows.
func NewBuilder(capacity int) *Builder {
	return &Builder{
		timestep:         make([]int, 0, capacity),
		year:             make([]int, 0, capacity),
		month:            make([]int, 0, capacity),
		cashBuffer:       make([]float64, 0, capacity),
		bondsQty:         make([]float64, 0, capacity),
		stocksQty:        make([]float64, 0, capacity),
		goldQty:          make([]float64, 0, capacity),
		bondsValue:       make([]float64, 0, capacity),
		stocksValue:      make([]float64, 0, capacity),
		goldValue:        make([]float64, 0, capacity),
		cashNotional:     make([]float64, 0, capacity),
		allowance:        make([]float64, 0, capacity),
		desiredAllowance: make([]float64, 0, capacity),
		failed:           make([]bool, 0, capacity),
	}
}

// Append adds one timestep's worth of data to every column.
func (b *Builder) Append(row TimestepRow) {
	b.timestep = append(b.timestep, row.Timestep)
	b.year = append(b.year, row.Year)
	b.month = append(b.month, row.Month)
	b.cashBuffer = append(b.cashBuffer, row.CashBuffer)
	b.bondsQty = append(b.bondsQty, row.BondsQty)
	b.stocksQty = append(b.stocksQty, row.StocksQty)
	b.goldQty = append(b.goldQty, row.GoldQty)
	b.bondsValue = append(b.bondsValue, row.BondsValue)
	b.stocksValue = append(b.stocksValue, row.StocksValue)
	b.goldValue = append(b.goldValue, row.GoldValue)
	b.cashNotional = append(b.cashNotional, row.CashNotional)
	b.allowance = append(b.allowance, row.Allowance)
	b.desiredAllowance = append(b.desiredAllowance, row.DesiredAllowance)
	b.failed = append(b.failed, row.Failed)
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int {
	return len(b.timestep)
}

// FirstFailedIndex returns the index of the first row with Failed set, or
// -1 if none failed.
func (b *Builder) FirstFailedIndex() int {
	for i, f := range b.failed {
		if f {
			return i
		}
	}
	return -1
}

// Rows assembles the accumulated columns into the row-oriented shape
// callers and writers expect.
func (b *Builder) Rows() []TimestepRow {
	out := make([]TimestepRow, b.Len())
	for i := range out {
		out[i] = TimestepRow{
			Timestep:         b.timestep[i],
			Year:             b.year[i],
			Month:            b.month[i],
			CashBuffer:       b.cashBuffer[i],
			BondsQty:         b.bondsQty[i],
			StocksQty:        b.stocksQty[i],
			GoldQty:          b.goldQty[i],
			BondsValue:       b.bondsValue[i],
			StocksValue:      b.stocksValue[i],
			GoldValue:        b.goldValue[i],
			CashNotional:     b.cashNotional[i],
			Allowance:        b.allowance[i],
			DesiredAllowance: b.desiredAllowance[i],
			Failed:           b.failed[i],
		}
	}
	return out
}
