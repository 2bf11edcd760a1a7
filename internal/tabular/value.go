package tabular

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind discriminates the three shapes a coerced cell can take.
type ValueKind int

const (
	// ValueAbsent means the cell was empty or missing.
	ValueAbsent ValueKind = iota
	// ValueNumber means the cell coerced to a finite float.
	ValueNumber
	// ValueString means the cell held free text that is not a number.
	ValueString
)

// Value is a typed cell value: a number, a string, or absent.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// Absent returns the absent value.
func Absent() Value {
	return Value{Kind: ValueAbsent, Num: 0, Str: ""}
}

// Number wraps a float as a cell value.
func Number(f float64) Value {
	return Value{Kind: ValueNumber, Num: f, Str: ""}
}

// String wraps free text as a cell value.
func String(s string) Value {
	return Value{Kind: ValueString, Num: 0, Str: s}
}

// IsNumber reports whether the value is numeric.
func (v Value) IsNumber() bool {
	return v.Kind == ValueNumber
}

// IsAbsent reports whether the cell was empty.
func (v Value) IsAbsent() bool {
	return v.Kind == ValueAbsent
}

// Coerce converts a raw cell into a typed value.
//
// Numeric cells arrive in every format brokers can invent: currency symbols,
// thousands separators, percent signs, and accounting-style parenthesized
// negatives. All of those are stripped before parsing. A cell that still does
// not parse as a finite number is kept as its trimmed text, so notes columns
// survive coercion instead of being discarded.
func Coerce(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Absent()
	}

	s := trimmed

	// Accounting convention: (123.4) means -123.4.
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		s = "-" + s[1:len(s)-1]
	}

	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, ",", "")

	var b strings.Builder

	for _, c := range s {
		if (c >= '0' && c <= '9') || c == '+' || c == '-' || c == '.' {
			b.WriteRune(c)
		}
	}

	if f, err := strconv.ParseFloat(b.String(), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}

	return String(trimmed)
}
