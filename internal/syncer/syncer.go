// Package syncer drives the fetch-parse-compute-reconcile pipeline for one
// participant or a batch.
package syncer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradelab-io/statsync/internal/kpi"
	"github.com/tradelab-io/statsync/internal/ledger"
	"github.com/tradelab-io/statsync/internal/logger"
	"github.com/tradelab-io/statsync/internal/source"
	"github.com/tradelab-io/statsync/internal/store"
	"github.com/tradelab-io/statsync/internal/tabular"
	"github.com/tradelab-io/statsync/internal/types"
	"github.com/tradelab-io/statsync/pkg/errors"
)

// Target is one participant due for a sync: a token plus whatever name and
// export URL could be resolved for it.
type Target struct {
	Token  string
	Name   string
	CsvURL string
}

// Result is the outcome of one successful participant sync.
type Result struct {
	Token    string     `json:"token"`
	Kpis     types.Kpis `json:"kpis"`
	SyncedAt time.Time  `json:"syncedAt"`
}

// TargetError pairs a failed participant with its error.
type TargetError struct {
	Token string
	Err   error
}

// MarshalJSON flattens the error into its message for API responses.
func (e TargetError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}{Token: e.Token, Error: e.Err.Error()})
}

// BatchResult accumulates one batch run: every success and every failure.
// A single participant's failure never aborts the batch.
type BatchResult struct {
	RunID   string        `json:"runId"`
	Updated []Result      `json:"updated"`
	Errors  []TargetError `json:"errors"`
}

// Options tunes a Syncer beyond its collaborators.
type Options struct {
	// LedgerEnabled toggles the flat-file ledger as a fallback target
	// source and KPI mirror during batch syncs.
	LedgerEnabled bool
	// LedgerPath is the ledger CSV file.
	LedgerPath string
	// Seeds are hard-coded fallback targets, lowest precedence.
	Seeds []Target
	// Progress, when set, is called after each batch target completes.
	Progress func(completed, total int)
}

// Syncer orchestrates participant syncs. Batches run sequentially: the
// ledger file is a single-owner resource per batch, and concurrent batches
// against the same ledger must be serialized by the caller.
type Syncer struct {
	store   store.ParticipantStore
	fetcher source.Fetcher
	logger  *logger.Logger
	opts    Options

	// now is swappable in tests.
	now func() time.Time
}

// New creates a Syncer.
func New(st store.ParticipantStore, fetcher source.Fetcher, log *logger.Logger, opts Options) *Syncer {
	return &Syncer{
		store:   st,
		fetcher: fetcher,
		logger:  log,
		opts:    opts,
		now:     time.Now,
	}
}

// SyncOne syncs a single participant by token: fetch, parse, compute,
// merge, persist. Nothing is persisted when any step fails.
func (s *Syncer) SyncOne(ctx context.Context, token string) (Result, error) {
	p, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return Result{}, err
	}

	return s.syncParticipant(ctx, *p)
}

// SyncAll syncs every resolvable target sequentially, accumulating successes
// and failures. The ledger, when enabled, is loaded once up front, mutated
// purely in memory, and flushed at most once at the end.
func (s *Syncer) SyncAll(ctx context.Context) BatchResult {
	result := BatchResult{
		RunID:   uuid.NewString(),
		Updated: nil,
		Errors:  nil,
	}

	var led *ledger.State

	if s.opts.LedgerEnabled {
		loaded, err := ledger.Load(s.opts.LedgerPath)
		if err != nil {
			// A broken ledger file must not block store-sourced targets.
			result.Errors = append(result.Errors, TargetError{Token: "ledger", Err: err})
		} else {
			led = loaded
		}
	}

	targets := s.buildTargets(ctx, led, &result)

	s.logger.Info("Batch sync started",
		zap.String("run_id", result.RunID),
		zap.Int("targets", len(targets)),
	)

	for i, target := range targets {
		p := types.Participant{
			Token:  target.Token,
			Name:   target.Name,
			CsvURL: target.CsvURL,
			Stats:  nil,
		}

		if existing, err := s.store.FindByToken(ctx, target.Token); err == nil {
			p.Stats = existing.Stats

			if p.Name == "" {
				p.Name = existing.Name
			}
		}

		res, err := s.syncParticipant(ctx, p)
		if err != nil {
			result.Errors = append(result.Errors, TargetError{Token: target.Token, Err: err})
		} else {
			result.Updated = append(result.Updated, res)

			if led != nil {
				mirror(led, target, res.Kpis)
			}
		}

		if s.opts.Progress != nil {
			s.opts.Progress(i+1, len(targets))
		}
	}

	if led != nil && led.Dirty() {
		if err := led.Flush(); err != nil {
			// KPIs already persisted to the store survive a ledger
			// write failure; report it alongside the rest.
			result.Errors = append(result.Errors, TargetError{Token: "ledger", Err: err})
		}
	}

	s.logger.Info("Batch sync finished",
		zap.String("run_id", result.RunID),
		zap.Int("updated", len(result.Updated)),
		zap.Int("errors", len(result.Errors)),
	)

	return result
}

// syncParticipant runs the pipeline for one participant and persists the
// merged stats.
func (s *Syncer) syncParticipant(ctx context.Context, p types.Participant) (Result, error) {
	if p.CsvURL == "" {
		return Result{}, errors.Newf(errors.ErrCodeMissingSource, "no export url for participant %s", p.Token)
	}

	text, err := s.fetcher.Fetch(ctx, p.CsvURL)
	if err != nil {
		return Result{}, err
	}

	table := tabular.Parse(text)
	if table.RowCount() == 0 {
		return Result{}, errors.Newf(errors.ErrCodeEmptyTable, "export for participant %s has no data rows", p.Token)
	}

	kpis := kpi.Compute(table)
	if kpis.IsZero() {
		s.logger.Warn("Export parsed but no metric could be derived",
			zap.String("token", p.Token),
			zap.Int("rows", table.RowCount()),
		)
	}

	syncedAt := s.now()

	var prev types.ParticipantStats
	if p.Stats != nil {
		prev = *p.Stats
	}

	merged := prev.Merged(kpis, syncedAt)
	p.Stats = &merged

	if err := s.store.Upsert(ctx, p); err != nil {
		return Result{}, err
	}

	s.logger.Info("Participant synced",
		zap.String("token", p.Token),
		zap.Time("synced_at", syncedAt),
	)

	return Result{Token: p.Token, Kpis: kpis, SyncedAt: syncedAt}, nil
}

// buildTargets assembles the deduplicated batch target list. Precedence per
// token: the participant store, then the ledger, then the hard-coded seeds;
// lower-precedence sources only fill fields the higher ones left empty.
func (s *Syncer) buildTargets(ctx context.Context, led *ledger.State, result *BatchResult) []Target {
	var (
		order []string
		byTok = make(map[string]*Target)
	)

	add := func(t Target) {
		if t.Token == "" {
			return
		}

		existing, ok := byTok[t.Token]
		if !ok {
			copied := t
			byTok[t.Token] = &copied
			order = append(order, t.Token)

			return
		}

		if existing.Name == "" {
			existing.Name = t.Name
		}

		if existing.CsvURL == "" {
			existing.CsvURL = t.CsvURL
		}
	}

	participants, err := s.store.List(ctx)
	if err != nil {
		result.Errors = append(result.Errors, TargetError{Token: "store", Err: err})
	}

	for _, p := range participants {
		add(Target{Token: p.Token, Name: p.Name, CsvURL: p.CsvURL})
	}

	if led != nil {
		for _, m := range led.Mappings() {
			add(Target{Token: m.Participant, Name: "", CsvURL: m.CsvURL})
		}
	}

	for _, seed := range s.opts.Seeds {
		add(seed)
	}

	out := make([]Target, 0, len(order))
	for _, tok := range order {
		out = append(out, *byTok[tok])
	}

	return out
}

// mirroredFields are the KPI fields written through to the ledger.
var mirroredFields = []types.SemanticField{
	types.FieldBalance,
	types.FieldEquity,
	types.FieldClosedPL,
	types.FieldFloatingPL,
	types.FieldWinRatePct,
	types.FieldDrawdownPct,
	types.FieldRoiPct,
	types.FieldTradeCount,
}

// mirror writes the present KPI values of one synced participant into its
// ledger row. Absent metrics leave their cells untouched.
func mirror(led *ledger.State, target Target, kpis types.Kpis) {
	row := led.EnsureRow(target.Token)

	if target.CsvURL != "" {
		led.SetString(row, ledger.ColumnCsvURL, target.CsvURL)
	}

	for _, field := range mirroredFields {
		if v, ok := mirrorValue(kpis, field); ok {
			led.SetNumber(row, ledger.FieldColumn(field), v)
		}
	}
}

func mirrorValue(kpis types.Kpis, field types.SemanticField) (float64, bool) {
	switch field {
	case types.FieldBalance:
		return kpis.Balance.Unwrap(), kpis.Balance.IsSome()
	case types.FieldEquity:
		return kpis.Equity.Unwrap(), kpis.Equity.IsSome()
	case types.FieldClosedPL:
		return kpis.ClosedPL.Unwrap(), kpis.ClosedPL.IsSome()
	case types.FieldFloatingPL:
		return kpis.FloatingPL.Unwrap(), kpis.FloatingPL.IsSome()
	case types.FieldWinRatePct:
		return kpis.WinRatePct.Unwrap(), kpis.WinRatePct.IsSome()
	case types.FieldDrawdownPct:
		return kpis.MaxDrawdownPct.Unwrap(), kpis.MaxDrawdownPct.IsSome()
	case types.FieldRoiPct:
		return kpis.RoiPct.Unwrap(), kpis.RoiPct.IsSome()
	case types.FieldTradeCount:
		return float64(kpis.TotalTrades.Unwrap()), kpis.TotalTrades.IsSome()
	default:
		return 0, false
	}
}
