package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Participant is one trader enrolled on the site, as far as this subsystem
// is concerned. The full participant record (billing, referral, contact data)
// is owned by the external participant store; only the fields read or written
// here are modeled.
type Participant struct {
	// Token is the stable public identifier of the participant.
	Token string `json:"token"`
	// Name is a display name, informational only.
	Name string `json:"name"`
	// CsvURL is the per-participant trading-statistics export URL.
	CsvURL string `json:"csvUrl"`
	// Stats is the latest reconciled KPI snapshot, if any sync succeeded yet.
	Stats *ParticipantStats `json:"stats,omitempty"`
}

// ParticipantStats is the persisted per-participant KPI snapshot.
// It is mutated only by the reconciler and survives across syncs.
type ParticipantStats struct {
	Kpis

	// UpdatedAt is when any field of this snapshot last changed.
	UpdatedAt time.Time `json:"updatedAt"`
	// LastSyncAt is when the last successful sync ran.
	LastSyncAt time.Time `json:"lastSyncAt"`
}

// mergeOpt returns next when present, otherwise prev.
func mergeOpt[T any](prev, next optional.Option[T]) optional.Option[T] {
	if next.IsSome() {
		return next
	}

	return prev
}

// Merged returns a copy of s with every present field of kpis written over
// it. Fields absent from kpis keep their previous value, so a sparse export
// never erases metrics computed from an earlier, richer one.
// Both timestamps are always set to ts.
func (s ParticipantStats) Merged(kpis Kpis, ts time.Time) ParticipantStats {
	out := s

	out.Balance = mergeOpt(s.Balance, kpis.Balance)
	out.Equity = mergeOpt(s.Equity, kpis.Equity)
	out.ClosedPL = mergeOpt(s.ClosedPL, kpis.ClosedPL)
	out.FloatingPL = mergeOpt(s.FloatingPL, kpis.FloatingPL)
	out.TotalTrades = mergeOpt(s.TotalTrades, kpis.TotalTrades)
	out.Wins = mergeOpt(s.Wins, kpis.Wins)
	out.Losses = mergeOpt(s.Losses, kpis.Losses)
	out.WinRatePct = mergeOpt(s.WinRatePct, kpis.WinRatePct)
	out.ProfitFactor = mergeOpt(s.ProfitFactor, kpis.ProfitFactor)
	out.MaxDrawdownPct = mergeOpt(s.MaxDrawdownPct, kpis.MaxDrawdownPct)
	out.RoiPct = mergeOpt(s.RoiPct, kpis.RoiPct)

	out.UpdatedAt = ts
	out.LastSyncAt = ts

	return out
}
