package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/tradelab-io/statsync/internal/types"
)

type LedgerTestSuite struct {
	suite.Suite

	path string
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.path = filepath.Join(suite.T().TempDir(), "ledger.csv")
}

func (suite *LedgerTestSuite) writeFile(content string) {
	suite.Require().NoError(os.WriteFile(suite.path, []byte(content), 0644))
}

func (suite *LedgerTestSuite) TestLoadMissingFileYieldsEmptyState() {
	state, err := Load(suite.path)

	suite.Require().NoError(err)
	suite.Empty(state.Header())
	suite.Equal(0, state.RowCount())
	suite.False(state.Dirty())
}

func (suite *LedgerTestSuite) TestEnsureColumnIdempotent() {
	suite.writeFile("Participant,CSV URL\nalice,http://example.com/a.csv\n")

	state, err := Load(suite.path)
	suite.Require().NoError(err)

	col := FieldColumn(types.FieldBalance)

	first := state.EnsureColumn(col)
	suite.True(state.Dirty())

	// Fake a flushed state to prove the second call does not dirty again.
	suite.Require().NoError(state.Flush())
	suite.False(state.Dirty())

	second := state.EnsureColumn(col)
	suite.Equal(first, second)
	suite.False(state.Dirty())
}

func (suite *LedgerTestSuite) TestEnsureColumnExtendsEveryRow() {
	suite.writeFile("Participant\nalice\nbob\n")

	state, err := Load(suite.path)
	suite.Require().NoError(err)

	state.EnsureColumn(FieldColumn(types.FieldEquity))

	suite.Equal([]string{"Participant", "Equity"}, state.Header())

	for i := 0; i < state.RowCount(); i++ {
		suite.Equal("", state.Cell(i, FieldColumn(types.FieldEquity)))
	}
}

func (suite *LedgerTestSuite) TestEnsureColumnFindsExistingVariant() {
	suite.writeFile("Trader,Acct Balance\nalice,100\n")

	state, err := Load(suite.path)
	suite.Require().NoError(err)

	suite.Equal(0, state.EnsureColumn(ColumnParticipant))
	suite.Equal(1, state.EnsureColumn(FieldColumn(types.FieldBalance)))
	suite.False(state.Dirty())
}

func (suite *LedgerTestSuite) TestEnsureRowAppendsBlankRow() {
	suite.writeFile("Participant,Balance\nalice,100\n")

	state, err := Load(suite.path)
	suite.Require().NoError(err)

	suite.Equal(0, state.EnsureRow("alice"))
	suite.False(state.Dirty())

	idx := state.EnsureRow("bob")
	suite.Equal(1, idx)
	suite.True(state.Dirty())
	suite.Equal("bob", state.Cell(idx, ColumnParticipant))
	suite.Equal("", state.Cell(idx, FieldColumn(types.FieldBalance)))

	// The mapping is cached for the rest of the batch.
	suite.Equal(idx, state.EnsureRow("bob"))
}

func (suite *LedgerTestSuite) TestSetNumberFormatting() {
	suite.writeFile("Participant\nalice\n")

	state, err := Load(suite.path)
	suite.Require().NoError(err)

	row := state.EnsureRow("alice")

	state.SetNumber(row, FieldColumn(types.FieldTradeCount), 38)
	state.SetNumber(row, FieldColumn(types.FieldBalance), 1234.567)

	suite.Equal("38", state.Cell(row, FieldColumn(types.FieldTradeCount)))
	suite.Equal("1234.57", state.Cell(row, FieldColumn(types.FieldBalance)))
}

func (suite *LedgerTestSuite) TestNoopWriteDoesNotDirty() {
	suite.writeFile("Participant,Balance\nalice,100\n")

	state, err := Load(suite.path)
	suite.Require().NoError(err)

	row := state.EnsureRow("alice")

	state.SetNumber(row, FieldColumn(types.FieldBalance), 100)
	suite.False(state.Dirty(), "writing the stored value must not dirty the ledger")

	state.SetNumber(row, FieldColumn(types.FieldBalance), 101)
	suite.True(state.Dirty())
}

func (suite *LedgerTestSuite) TestFlushOnlyWhenDirty() {
	state, err := Load(suite.path)
	suite.Require().NoError(err)

	suite.Require().NoError(state.Flush())
	_, statErr := os.Stat(suite.path)
	suite.True(os.IsNotExist(statErr), "clean state must not touch the file")

	row := state.EnsureRow("alice")
	state.SetNumber(row, FieldColumn(types.FieldBalance), 250.5)

	suite.Require().NoError(state.Flush())
	suite.False(state.Dirty())

	reloaded, err := Load(suite.path)
	suite.Require().NoError(err)
	suite.Equal("250.50", reloaded.Cell(0, FieldColumn(types.FieldBalance)))
	suite.Equal("alice", reloaded.Cell(0, ColumnParticipant))
}

func (suite *LedgerTestSuite) TestMappings() {
	suite.writeFile("Participant,CSV URL,Balance\n" +
		"alice,http://example.com/a.csv,100\n" +
		",http://example.com/orphan.csv,50\n" +
		"bob,,200\n")

	state, err := Load(suite.path)
	suite.Require().NoError(err)

	mappings := state.Mappings()
	suite.Require().Len(mappings, 2)
	suite.Equal(Mapping{Participant: "alice", CsvURL: "http://example.com/a.csv"}, mappings[0])
	suite.Equal(Mapping{Participant: "bob", CsvURL: ""}, mappings[1])
}
