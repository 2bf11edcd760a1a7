package store

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/tradelab-io/statsync/internal/logger"
	"github.com/tradelab-io/statsync/internal/types"
	"github.com/tradelab-io/statsync/pkg/errors"
)

type DuckDBStoreTestSuite struct {
	suite.Suite

	store *DuckDBStore
}

func TestDuckDBStoreSuite(t *testing.T) {
	suite.Run(t, new(DuckDBStoreTestSuite))
}

func (suite *DuckDBStoreTestSuite) SetupTest() {
	st, err := NewDuckDBStore(":memory:", logger.NewNopLogger())
	suite.Require().NoError(err)

	suite.store = st
}

func (suite *DuckDBStoreTestSuite) TearDownTest() {
	suite.Require().NoError(suite.store.Close())
}

func (suite *DuckDBStoreTestSuite) TestFindByTokenNotFound() {
	_, err := suite.store.FindByToken(context.Background(), "ghost")

	suite.True(errors.HasCode(err, errors.ErrCodeParticipantNotFound))
}

func (suite *DuckDBStoreTestSuite) TestUpsertAndFind() {
	p := types.Participant{
		Token:  "alice",
		Name:   "Alice",
		CsvURL: "http://example.com/a.csv",
	}

	suite.Require().NoError(suite.store.Upsert(context.Background(), p))

	found, err := suite.store.FindByToken(context.Background(), "alice")
	suite.Require().NoError(err)

	suite.Equal("alice", found.Token)
	suite.Equal("Alice", found.Name)
	suite.Equal("http://example.com/a.csv", found.CsvURL)
	suite.Nil(found.Stats)
}

func (suite *DuckDBStoreTestSuite) TestUpsertOverwrites() {
	ctx := context.Background()

	p := types.Participant{Token: "alice", CsvURL: "http://example.com/old.csv"}
	suite.Require().NoError(suite.store.Upsert(ctx, p))

	p.CsvURL = "http://example.com/new.csv"
	p.Stats = &types.ParticipantStats{
		Kpis: types.Kpis{
			Balance: optional.Some(1060.0),
			Wins:    optional.Some(2),
		},
		UpdatedAt:  time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		LastSyncAt: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	suite.Require().NoError(suite.store.Upsert(ctx, p))

	found, err := suite.store.FindByToken(ctx, "alice")
	suite.Require().NoError(err)

	suite.Equal("http://example.com/new.csv", found.CsvURL)
	suite.Require().NotNil(found.Stats)
	suite.InDelta(1060.0, found.Stats.Balance.Unwrap(), 1e-9)
	suite.Equal(2, found.Stats.Wins.Unwrap())
	suite.True(found.Stats.Equity.IsNone(), "absent metrics stay absent through persistence")
}

func (suite *DuckDBStoreTestSuite) TestListOrderedByToken() {
	ctx := context.Background()

	for _, token := range []string{"carol", "alice", "bob"} {
		suite.Require().NoError(suite.store.Upsert(ctx, types.Participant{Token: token}))
	}

	participants, err := suite.store.List(ctx)
	suite.Require().NoError(err)

	tokens := make([]string, 0, len(participants))
	for _, p := range participants {
		tokens = append(tokens, p.Token)
	}

	suite.Equal([]string{"alice", "bob", "carol"}, tokens)
}
