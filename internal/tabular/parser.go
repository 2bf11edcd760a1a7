// Package tabular turns loosely-structured delimited exports into typed,
// semantically addressable tables.
//
// The parser is deliberately permissive: broker exports routinely carry
// unbalanced quotes, blank separator lines and ragged rows, and refusing to
// parse them would make the whole sync useless. Malformed input never
// produces an error; the parser extracts whatever structure is there.
package tabular

import (
	"strings"
)

type parseState int

const (
	stateUnquoted parseState = iota
	stateQuoted
)

// parseRows runs the two-state scanner over text and returns the raw cell
// grid. Quoting rules: a quote toggles quoted mode, a doubled quote inside
// quoted mode emits a literal quote, and everything else inside quoted mode
// (commas, newlines, CR) is taken verbatim. An unbalanced quote simply
// consumes to end of input.
func parseRows(text string) [][]string {
	text = strings.TrimPrefix(text, "\uFEFF")

	var (
		rows  [][]string
		row   []string
		cell  strings.Builder
		state = stateUnquoted
	)

	endCell := func() {
		row = append(row, cell.String())
		cell.Reset()
	}

	endRow := func() {
		endCell()

		rows = append(rows, row)
		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		switch state {
		case stateUnquoted:
			switch c {
			case '"':
				state = stateQuoted
			case ',':
				endCell()
			case '\r':
				// swallowed; \r\n is handled by the \n branch
			case '\n':
				endRow()
			default:
				cell.WriteRune(c)
			}
		case stateQuoted:
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					cell.WriteRune('"')

					i++
				} else {
					state = stateUnquoted
				}
			} else {
				cell.WriteRune(c)
			}
		}
	}

	// Flush the trailing cell/row when the input does not end in a newline.
	if cell.Len() > 0 || len(row) > 0 {
		endRow()
	}

	return dropBlankRows(rows)
}

// dropBlankRows removes rows whose every cell is empty.
func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]

	for _, row := range rows {
		blank := true

		for _, cell := range row {
			if cell != "" {
				blank = false

				break
			}
		}

		if !blank {
			out = append(out, row)
		}
	}

	return out
}

// needsQuoting reports whether a cell must be quoted when serialized.
func needsQuoting(cell string) bool {
	return strings.ContainsAny(cell, ",\"\n\r")
}

// SerializeGrid writes a cell grid back into the wire format, quoting only
// where necessary so that parsing a serialized table yields the same table.
func SerializeGrid(rows [][]string) string {
	var b strings.Builder

	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}

			if needsQuoting(cell) {
				b.WriteByte('"')
				b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
				b.WriteByte('"')
			} else {
				b.WriteString(cell)
			}
		}

		b.WriteByte('\n')
	}

	return b.String()
}
