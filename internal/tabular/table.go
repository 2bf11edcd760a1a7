package tabular

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"

	"github.com/tradelab-io/statsync/internal/types"
)

// Table is one parsed export: a header row plus the data rows, padded to the
// header's width. Field resolution and chronological ordering are computed at
// most once per table and cached for its lifetime.
type Table struct {
	header []string
	// normKeys holds the normalized header keys; duplicates are suffixed
	// (_2, _3, ...) so every column stays addressable.
	normKeys []string
	rows     [][]string

	resolved map[types.SemanticField]optional.Option[int]

	orderBuilt bool
	order      []int
}

// Parse builds a Table from raw delimited text. The first non-blank row is
// the header; every data row is padded or truncated to the header width.
func Parse(text string) *Table {
	rows := parseRows(text)

	t := &Table{
		header:     nil,
		normKeys:   nil,
		rows:       nil,
		resolved:   make(map[types.SemanticField]optional.Option[int]),
		orderBuilt: false,
		order:      nil,
	}

	if len(rows) == 0 {
		return t
	}

	t.header = rows[0]
	t.normKeys = normalizeHeaders(t.header)

	width := len(t.header)
	for _, row := range rows[1:] {
		switch {
		case len(row) < width:
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		case len(row) > width:
			row = row[:width]
		}

		t.rows = append(t.rows, row)
	}

	return t
}

// Header returns the raw header cells.
func (t *Table) Header() []string {
	return t.header
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// Row returns the raw cells of data row i.
func (t *Table) Row(i int) []string {
	return t.rows[i]
}

// Serialize writes the table back into the wire format.
func (t *Table) Serialize() string {
	all := make([][]string, 0, len(t.rows)+1)

	if len(t.header) > 0 {
		all = append(all, t.header)
	}

	all = append(all, t.rows...)

	return SerializeGrid(all)
}

// NormalizedRow builds the typed view of data row i, keyed by normalized
// header key.
func (t *Table) NormalizedRow(i int) map[string]Value {
	out := make(map[string]Value, len(t.normKeys))

	for col, key := range t.normKeys {
		out[key] = Coerce(t.rows[i][col])
	}

	return out
}

// Resolve maps a semantic field onto a header index, trying each keyword
// candidate first for an exact match and then for containment. The result is
// memoized for the table's lifetime.
func (t *Table) Resolve(field types.SemanticField) optional.Option[int] {
	if idx, ok := t.resolved[field]; ok {
		return idx
	}

	idx := t.resolve(field)
	t.resolved[field] = idx

	return idx
}

func (t *Table) resolve(field types.SemanticField) optional.Option[int] {
	candidates := field.Candidates()

	for _, cand := range candidates {
		for col, key := range t.normKeys {
			if key == cand {
				return optional.Some(col)
			}
		}
	}

	for _, cand := range candidates {
		for col, key := range t.normKeys {
			if strings.Contains(key, cand) {
				return optional.Some(col)
			}
		}
	}

	return optional.None[int]()
}

// Cell coerces the cell of data row i under the given semantic field.
// Returns absent when the field does not resolve.
func (t *Table) Cell(i int, field types.SemanticField) Value {
	col := t.Resolve(field)
	if col.IsNone() {
		return Absent()
	}

	return Coerce(t.rows[i][col.Unwrap()])
}

// Series extracts the numeric values of a field across all data rows in file
// order, skipping cells that are absent or non-numeric.
func (t *Table) Series(field types.SemanticField) []float64 {
	return t.seriesOver(rowRange(len(t.rows)), field)
}

// OrderedSeries extracts the numeric values of a field across the
// chronologically ordered rows. When a date-like column resolves, rows are
// sorted by parsed timestamp ascending (stable, so ties keep file order) and
// rows whose date fails to parse are excluded from this view. Without a
// date-like column, file order is used unmodified.
func (t *Table) OrderedSeries(field types.SemanticField) []float64 {
	return t.seriesOver(t.orderedIndices(), field)
}

func (t *Table) seriesOver(indices []int, field types.SemanticField) []float64 {
	col := t.Resolve(field)
	if col.IsNone() {
		return nil
	}

	var series []float64

	for _, i := range indices {
		if v := Coerce(t.rows[i][col.Unwrap()]); v.IsNumber() {
			series = append(series, v.Num)
		}
	}

	return series
}

func (t *Table) orderedIndices() []int {
	if t.orderBuilt {
		return t.order
	}

	t.orderBuilt = true

	col := t.Resolve(types.FieldDateTime)
	if col.IsNone() {
		t.order = rowRange(len(t.rows))

		return t.order
	}

	type datedRow struct {
		index int
		at    time.Time
	}

	dated := make([]datedRow, 0, len(t.rows))

	for i, row := range t.rows {
		if at, ok := parseTimestamp(row[col.Unwrap()]); ok {
			dated = append(dated, datedRow{index: i, at: at})
		}
	}

	sort.SliceStable(dated, func(a, b int) bool {
		return dated[a].at.Before(dated[b].at)
	})

	t.order = make([]int, len(dated))
	for i, d := range dated {
		t.order[i] = d.index
	}

	return t.order
}

func rowRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}

	return out
}

// normalizeHeaders lowercases each header, strips everything outside
// [a-z0-9], and suffixes repeated keys (_2, _3, ...) so later duplicates
// stay addressable. Suffixes contain an underscore, which normalization can
// never produce, so they cannot collide with a real header.
func normalizeHeaders(header []string) []string {
	keys := make([]string, len(header))
	seen := make(map[string]int, len(header))

	for i, h := range header {
		key := normalizeHeader(h)

		seen[key]++
		if n := seen[key]; n > 1 {
			key += "_" + strconv.Itoa(n)
		}

		keys[i] = key
	}

	return keys
}

func normalizeHeader(s string) string {
	var b strings.Builder

	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}

	return b.String()
}

// timestampLayouts covers the date formats seen across broker exports,
// most specific first. MT4/MT5 use the dotted forms.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006.01.02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// parseTimestamp parses a raw date cell against the known layouts, falling
// back to epoch seconds for exports that emit unix timestamps.
func parseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if at, err := time.Parse(layout, s); err == nil {
			return at, true
		}
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}

	return time.Time{}, false
}
