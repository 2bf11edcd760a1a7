package types

// SemanticField is a canonical metric name that many differently-labeled
// export columns may resolve to. Broker exports agree on almost nothing in
// their header rows, so each field carries an ordered list of normalized
// keyword candidates; the resolver tries them in declaration order.
type SemanticField string

const (
	FieldBalance         SemanticField = "balance"
	FieldEquity          SemanticField = "equity"
	FieldClosedPL        SemanticField = "closedPL"
	FieldFloatingPL      SemanticField = "floatingPL"
	FieldTradeIdentifier SemanticField = "tradeIdentifier"
	FieldDateTime        SemanticField = "dateTime"
	FieldWinRatePct      SemanticField = "winRatePct"
	FieldDrawdownPct     SemanticField = "drawdownPct"
	FieldRoiPct          SemanticField = "roiPct"
	FieldTradeCount      SemanticField = "tradeCount"
)

// AllFields lists every semantic field in a stable order.
var AllFields = []SemanticField{
	FieldBalance,
	FieldEquity,
	FieldClosedPL,
	FieldFloatingPL,
	FieldTradeIdentifier,
	FieldDateTime,
	FieldWinRatePct,
	FieldDrawdownPct,
	FieldRoiPct,
	FieldTradeCount,
}

// fieldCandidates maps each semantic field to its ordered keyword candidates.
// Candidates are in normalized form (lowercase, [a-z0-9] only) and ordered
// from most to least specific; the first exact match wins, then the first
// containment match.
var fieldCandidates = map[SemanticField][]string{
	FieldBalance:         {"balance", "accountbalance", "closingbalance"},
	FieldEquity:          {"equity", "accountequity"},
	FieldClosedPL:        {"closedpl", "closedpnl", "realizedpl", "netprofit", "profitloss", "profit", "pnl", "pl"},
	FieldFloatingPL:      {"floatingpl", "floatingpnl", "unrealizedpl", "openpl"},
	FieldTradeIdentifier: {"ticket", "tradeid", "orderid", "dealid", "positionid", "order", "deal"},
	FieldDateTime:        {"closetime", "closedate", "opentime", "datetime", "date", "time"},
	FieldWinRatePct:      {"winrate", "winratio", "winpercent"},
	FieldDrawdownPct:     {"maxdrawdown", "drawdown", "maxdd"},
	FieldRoiPct:          {"roi", "gain", "growth", "return"},
	FieldTradeCount:      {"totaltrades", "numberoftrades", "trades"},
}

// fieldTitles maps each semantic field to the column title used when the
// flat-file ledger grows a column for it.
var fieldTitles = map[SemanticField]string{
	FieldBalance:         "Balance",
	FieldEquity:          "Equity",
	FieldClosedPL:        "Closed P/L",
	FieldFloatingPL:      "Floating P/L",
	FieldTradeIdentifier: "Ticket",
	FieldDateTime:        "Date",
	FieldWinRatePct:      "Win Rate %",
	FieldDrawdownPct:     "Max Drawdown %",
	FieldRoiPct:          "ROI %",
	FieldTradeCount:      "Total Trades",
}

// Candidates returns the ordered keyword candidates for the field.
func (f SemanticField) Candidates() []string {
	return fieldCandidates[f]
}

// Title returns the canonical column title for the field.
func (f SemanticField) Title() string {
	return fieldTitles[f]
}
