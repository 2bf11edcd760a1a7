// Package ledger maintains the legacy flat-file participant ledger.
//
// The ledger is a CSV file in the same wire format as the broker exports. It
// predates the participant store and survives as a fallback source of
// participant-to-URL mappings and as a mirror of the last synced KPI values.
// A batch loads it once, mutates it purely in memory, and flushes it back at
// most once; concurrent batches against the same file must be serialized by
// the caller.
package ledger

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradelab-io/statsync/internal/tabular"
	"github.com/tradelab-io/statsync/internal/types"
	"github.com/tradelab-io/statsync/pkg/errors"
)

// Column identifies one ledger column: the title used when the column has to
// be created, plus the ordered keyword candidates used to find it in an
// existing header.
type Column struct {
	Title      string
	Candidates []string
}

// ColumnParticipant keys a row to a participant.
var ColumnParticipant = Column{
	Title:      "Participant",
	Candidates: []string{"participant", "token", "trader", "account", "name"},
}

// ColumnCsvURL holds the participant's statistics export URL.
var ColumnCsvURL = Column{
	Title:      "CSV URL",
	Candidates: []string{"csvurl", "statsurl", "sourceurl", "url"},
}

// FieldColumn maps a semantic field onto its ledger column.
func FieldColumn(f types.SemanticField) Column {
	return Column{Title: f.Title(), Candidates: f.Candidates()}
}

// State is the in-memory projection of the ledger file. The invariant
// len(rows[i]) == len(header) holds at all times: any column addition appends
// the title to the header and a blank cell to every existing row in one
// operation.
type State struct {
	path   string
	header []string
	rows   [][]string

	colIndex map[string]int
	rowIndex map[string]int

	dirty bool
}

// Load reads the ledger file into memory. A missing file yields an empty
// state that self-initializes on first write.
func Load(path string) (*State, error) {
	s := &State{
		path:     path,
		header:   nil,
		rows:     nil,
		colIndex: make(map[string]int),
		rowIndex: make(map[string]int),
		dirty:    false,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}

		return nil, errors.Wrapf(errors.ErrCodeLedgerReadFailed, err, "failed to read ledger file %s", path)
	}

	table := tabular.Parse(string(data))

	s.header = table.Header()
	for i := 0; i < table.RowCount(); i++ {
		s.rows = append(s.rows, table.Row(i))
	}

	return s, nil
}

// Dirty reports whether the in-memory state diverged from the file.
func (s *State) Dirty() bool {
	return s.dirty
}

// Header returns the current column titles.
func (s *State) Header() []string {
	return s.header
}

// RowCount returns the number of data rows.
func (s *State) RowCount() int {
	return len(s.rows)
}

// EnsureColumn returns the index of the column, creating it when the header
// has no match. Creation appends the title to the header and a blank cell to
// every existing row, and dirties the state. Repeated calls are idempotent:
// the resolved index is cached and the state is dirtied at most once per
// actual header change.
func (s *State) EnsureColumn(col Column) int {
	if idx, ok := s.colIndex[col.Title]; ok {
		return idx
	}

	if idx, ok := findColumn(s.header, col.Candidates); ok {
		s.colIndex[col.Title] = idx

		return idx
	}

	idx := len(s.header)
	s.header = append(s.header, col.Title)

	for i := range s.rows {
		s.rows[i] = append(s.rows[i], "")
	}

	s.colIndex[col.Title] = idx
	s.dirty = true

	return idx
}

// EnsureRow returns the row index for the participant key, appending a blank
// row sized to the current header when the participant has no row yet. The
// mapping is recorded for subsequent writes in the same batch.
func (s *State) EnsureRow(participantKey string) int {
	if idx, ok := s.rowIndex[participantKey]; ok {
		return idx
	}

	keyCol := s.EnsureColumn(ColumnParticipant)

	for i, row := range s.rows {
		if strings.TrimSpace(row[keyCol]) == participantKey {
			s.rowIndex[participantKey] = i

			return i
		}
	}

	row := make([]string, len(s.header))
	row[keyCol] = participantKey

	s.rows = append(s.rows, row)
	s.dirty = true

	idx := len(s.rows) - 1
	s.rowIndex[participantKey] = idx

	return idx
}

// SetString writes a string cell through EnsureColumn. A write that does not
// change the stored value does not dirty the state.
func (s *State) SetString(row int, col Column, value string) {
	s.setCell(row, col, value)
}

// SetNumber writes a numeric cell through EnsureColumn, formatting integers
// unadorned and everything else to two decimal places.
func (s *State) SetNumber(row int, col Column, value float64) {
	s.setCell(row, col, FormatNumber(value))
}

func (s *State) setCell(row int, col Column, serialized string) {
	idx := s.EnsureColumn(col)

	if s.rows[row][idx] == serialized {
		return
	}

	s.rows[row][idx] = serialized
	s.dirty = true
}

// Cell returns the stored cell under the column, or "" when the column does
// not exist. Unlike EnsureColumn this never mutates the state.
func (s *State) Cell(row int, col Column) string {
	if idx, ok := s.colIndex[col.Title]; ok {
		return s.rows[row][idx]
	}

	if idx, ok := findColumn(s.header, col.Candidates); ok {
		return s.rows[row][idx]
	}

	return ""
}

// Mapping is one participant-to-URL pair read from the ledger.
type Mapping struct {
	Participant string
	CsvURL      string
}

// Mappings returns every participant-to-URL pair stored in the ledger, in
// row order. Rows without a participant key are skipped. Reading never
// mutates the state.
func (s *State) Mappings() []Mapping {
	var out []Mapping

	for i := range s.rows {
		key := strings.TrimSpace(s.Cell(i, ColumnParticipant))
		if key == "" {
			continue
		}

		out = append(out, Mapping{
			Participant: key,
			CsvURL:      strings.TrimSpace(s.Cell(i, ColumnCsvURL)),
		})
	}

	return out
}

// Flush serializes the state back to disk if and only if it is dirty.
func (s *State) Flush() error {
	if !s.dirty {
		return nil
	}

	grid := make([][]string, 0, len(s.rows)+1)

	if len(s.header) > 0 {
		grid = append(grid, s.header)
	}

	grid = append(grid, s.rows...)

	if err := os.WriteFile(s.path, []byte(tabular.SerializeGrid(grid)), 0644); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to write ledger file %s", s.path)
	}

	s.dirty = false

	return nil
}

// findColumn resolves a column against the header the same way the table
// resolver does: exact match on the normalized title first, then containment,
// each in candidate order.
func findColumn(header []string, candidates []string) (int, bool) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeTitle(h)
	}

	for _, cand := range candidates {
		for i, key := range norm {
			if key == cand {
				return i, true
			}
		}
	}

	for _, cand := range candidates {
		for i, key := range norm {
			if strings.Contains(key, cand) {
				return i, true
			}
		}
	}

	return 0, false
}

func normalizeTitle(s string) string {
	var b strings.Builder

	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}

	return b.String()
}

// FormatNumber renders a numeric cell: integers unformatted, anything else
// with two decimal places.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	return decimal.NewFromFloat(v).StringFixed(2)
}
