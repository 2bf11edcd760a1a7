package types

import (
	"github.com/moznion/go-optional"
)

// Kpis is one computed snapshot of a participant's trading performance.
//
// Every field is optional: a metric is present only when the source export
// carried enough data to derive it. Absence is meaningful and must survive
// serialization and merging, so "no data" is never collapsed into zero.
type Kpis struct {
	// Balance is the last known account balance.
	Balance optional.Option[float64] `json:"balance"`
	// Equity is the last known account equity.
	Equity optional.Option[float64] `json:"equity"`
	// ClosedPL is the sum of realized profit and loss across all trades.
	ClosedPL optional.Option[float64] `json:"closedPL"`
	// FloatingPL is the last known unrealized profit and loss.
	FloatingPL optional.Option[float64] `json:"floatingPL"`
	// TotalTrades is the number of trades in the export.
	TotalTrades optional.Option[int] `json:"totalTrades"`
	// Wins is the number of trades with positive realized P&L.
	Wins optional.Option[int] `json:"wins"`
	// Losses is the number of trades with negative realized P&L.
	Losses optional.Option[int] `json:"losses"`
	// WinRatePct is wins over decided trades, in percent.
	WinRatePct optional.Option[float64] `json:"winRatePct"`
	// ProfitFactor is gross profit over gross loss magnitude.
	ProfitFactor optional.Option[float64] `json:"profitFactor"`
	// MaxDrawdownPct is the largest peak-to-trough decline of the
	// equity (or balance) series, in percent of the peak.
	MaxDrawdownPct optional.Option[float64] `json:"maxDrawdownPct"`
	// RoiPct is the relative change between the first and last value of
	// the equity (or balance) series, in percent.
	RoiPct optional.Option[float64] `json:"roiPct"`
}

// IsZero reports whether no metric at all could be computed.
func (k Kpis) IsZero() bool {
	return k.Balance.IsNone() &&
		k.Equity.IsNone() &&
		k.ClosedPL.IsNone() &&
		k.FloatingPL.IsNone() &&
		k.TotalTrades.IsNone() &&
		k.Wins.IsNone() &&
		k.Losses.IsNone() &&
		k.WinRatePct.IsNone() &&
		k.ProfitFactor.IsNone() &&
		k.MaxDrawdownPct.IsNone() &&
		k.RoiPct.IsNone()
}
