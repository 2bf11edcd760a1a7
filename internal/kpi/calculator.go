// Package kpi derives canonical performance metrics from a parsed export.
package kpi

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/tradelab-io/statsync/internal/tabular"
	"github.com/tradelab-io/statsync/internal/types"
)

// Compute derives every computable metric from the table.
//
// Order-sensitive metrics (balance, equity, floating P&L, ROI, drawdown) read
// the chronologically ordered view of the table; order-insensitive metrics
// (P&L sums and counts) read all data rows in file order, so a row with an
// unparseable date still contributes to its trade totals.
//
// Every output is optional: a metric missing its inputs is absent, never
// zero. Summary-style exports that carry a metric as a plain column (win
// rate, drawdown, ROI, trade count) are honored as a fallback when the metric
// cannot be computed from trade rows.
func Compute(t *tabular.Table) types.Kpis {
	k := types.Kpis{
		Balance:        lastValid(t.OrderedSeries(types.FieldBalance)),
		Equity:         lastValid(t.OrderedSeries(types.FieldEquity)),
		ClosedPL:       optional.None[float64](),
		FloatingPL:     lastValid(t.OrderedSeries(types.FieldFloatingPL)),
		TotalTrades:    optional.None[int](),
		Wins:           optional.None[int](),
		Losses:         optional.None[int](),
		WinRatePct:     optional.None[float64](),
		ProfitFactor:   optional.None[float64](),
		MaxDrawdownPct: optional.None[float64](),
		RoiPct:         optional.None[float64](),
	}

	closed := t.Series(types.FieldClosedPL)

	if t.Resolve(types.FieldClosedPL).IsSome() {
		var sum, grossProfit, grossLoss float64

		wins, losses := 0, 0

		for _, pl := range closed {
			sum += pl

			switch {
			case pl > 0:
				wins++

				grossProfit += pl
			case pl < 0:
				losses++

				grossLoss += pl
			}
		}

		k.ClosedPL = optional.Some(sum)
		k.Wins = optional.Some(wins)
		k.Losses = optional.Some(losses)

		if wins+losses > 0 {
			k.WinRatePct = finite(float64(wins) / float64(wins+losses) * 100)
		}

		if grossLoss != 0 {
			k.ProfitFactor = finite(grossProfit / math.Abs(grossLoss))
		}
	}

	k.TotalTrades = totalTrades(t, len(closed))

	// Primary series for ROI and drawdown: equity when available, else balance.
	primary := t.OrderedSeries(types.FieldEquity)
	if len(primary) == 0 {
		primary = t.OrderedSeries(types.FieldBalance)
	}

	k.RoiPct = roi(primary)
	k.MaxDrawdownPct = maxDrawdown(primary)

	// Summary exports carry some metrics as plain columns; use them only
	// where trade rows could not produce the metric.
	if k.WinRatePct.IsNone() {
		k.WinRatePct = lastValid(t.Series(types.FieldWinRatePct))
	}

	if k.MaxDrawdownPct.IsNone() {
		k.MaxDrawdownPct = lastValid(t.Series(types.FieldDrawdownPct))
	}

	if k.RoiPct.IsNone() {
		k.RoiPct = lastValid(t.Series(types.FieldRoiPct))
	}

	return k
}

// totalTrades picks the trade count by precedence: closed-P&L rows, then
// rows with a trade identifier, then a summary trade-count column, then the
// flat row count.
func totalTrades(t *tabular.Table, closedCount int) optional.Option[int] {
	if closedCount > 0 {
		return optional.Some(closedCount)
	}

	if t.Resolve(types.FieldTradeIdentifier).IsSome() {
		count := 0

		for i := 0; i < t.RowCount(); i++ {
			if !t.Cell(i, types.FieldTradeIdentifier).IsAbsent() {
				count++
			}
		}

		return optional.Some(count)
	}

	if direct := lastValid(t.Series(types.FieldTradeCount)); direct.IsSome() {
		return optional.Some(int(direct.Unwrap()))
	}

	return optional.Some(t.RowCount())
}

// roi computes (last - first) / |first| * 100 over the series endpoints.
// A single-element series has both endpoints and reads as zero; absence is
// reserved for an empty series or a zero starting value.
func roi(series []float64) optional.Option[float64] {
	if len(series) == 0 {
		return optional.None[float64]()
	}

	first, last := series[0], series[len(series)-1]
	if first == 0 {
		return optional.None[float64]()
	}

	return finite((last - first) / math.Abs(first) * 100)
}

// maxDrawdown scans the series with a running peak and reports the deepest
// peak-to-trough decline as a percentage of the peak. Absent when no later
// value ever dips below a peak.
func maxDrawdown(series []float64) optional.Option[float64] {
	if len(series) == 0 {
		return optional.None[float64]()
	}

	peak := series[0]
	worst := 0.0

	for _, v := range series[1:] {
		if v > peak {
			peak = v

			continue
		}

		if v < peak && peak != 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}

	if worst == 0 {
		return optional.None[float64]()
	}

	return finite(worst * 100)
}

// lastValid returns the last entry of a series, absent for an empty series.
func lastValid(series []float64) optional.Option[float64] {
	if len(series) == 0 {
		return optional.None[float64]()
	}

	return optional.Some(series[len(series)-1])
}

// finite guards division results: NaN and infinities become absent.
func finite(f float64) optional.Option[float64] {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return optional.None[float64]()
	}

	return optional.Some(f)
}
