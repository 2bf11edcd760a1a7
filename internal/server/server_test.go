package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/tradelab-io/statsync/internal/logger"
	"github.com/tradelab-io/statsync/internal/source"
	"github.com/tradelab-io/statsync/internal/syncer"
	"github.com/tradelab-io/statsync/internal/types"
	"github.com/tradelab-io/statsync/pkg/errors"
)

// memStore is a minimal in-memory ParticipantStore for handler tests.
type memStore struct {
	participants map[string]types.Participant
}

func (s *memStore) FindByToken(_ context.Context, token string) (*types.Participant, error) {
	p, ok := s.participants[token]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeParticipantNotFound, "participant %s not found", token)
	}

	return &p, nil
}

func (s *memStore) Upsert(_ context.Context, p types.Participant) error {
	s.participants[p.Token] = p

	return nil
}

func (s *memStore) List(_ context.Context) ([]types.Participant, error) {
	out := make([]types.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}

	return out, nil
}

func (s *memStore) Close() error { return nil }

type ServerTestSuite struct {
	suite.Suite

	csvBackend *httptest.Server
	api        *httptest.Server
	store      *memStore
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (suite *ServerTestSuite) SetupTest() {
	suite.csvBackend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte("Profit,Balance\n50,1050\n-20,1030\n"))
	}))

	suite.store = &memStore{participants: map[string]types.Participant{
		"alice": {Token: "alice", CsvURL: suite.csvBackend.URL + "/alice.csv"},
		"bob":   {Token: "bob", CsvURL: suite.csvBackend.URL + "/bad"},
		"carol": {Token: "carol"},
		"dana": {Token: "dana", Stats: &types.ParticipantStats{
			Kpis: types.Kpis{Equity: optional.Some(1234.5)},
		}},
	}}

	sync := syncer.New(suite.store, source.NewHTTPFetcher(0), logger.NewNopLogger(), syncer.Options{})

	suite.api = httptest.NewServer(New(sync, suite.store, logger.NewNopLogger()).Router())
}

func (suite *ServerTestSuite) TearDownTest() {
	suite.api.Close()
	suite.csvBackend.Close()
}

func (suite *ServerTestSuite) post(path string) (*http.Response, map[string]any) {
	resp, err := http.Post(suite.api.URL+path, "application/json", nil)
	suite.Require().NoError(err)

	var body map[string]any
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	suite.Require().NoError(resp.Body.Close())

	return resp, body
}

func (suite *ServerTestSuite) TestSyncOneEndpoint() {
	resp, body := suite.post("/api/sync/alice")

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal("alice", body["token"])

	kpis, ok := body["kpis"].(map[string]any)
	suite.Require().True(ok)
	suite.InDelta(30.0, kpis["closedPL"].(float64), 1e-9)
}

func (suite *ServerTestSuite) TestSyncOneUnknownParticipant() {
	resp, _ := suite.post("/api/sync/ghost")

	suite.Equal(http.StatusNotFound, resp.StatusCode)
}

func (suite *ServerTestSuite) TestSyncOneMissingSource() {
	resp, _ := suite.post("/api/sync/carol")

	suite.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func (suite *ServerTestSuite) TestSyncOneUpstreamFailure() {
	resp, _ := suite.post("/api/sync/bob")

	suite.Equal(http.StatusBadGateway, resp.StatusCode)
}

func (suite *ServerTestSuite) TestSyncAllEndpoint() {
	resp, body := suite.post("/api/sync")

	suite.Equal(http.StatusOK, resp.StatusCode)

	updated, ok := body["updated"].([]any)
	suite.Require().True(ok)
	suite.Len(updated, 1)

	errs, ok := body["errors"].([]any)
	suite.Require().True(ok)
	// bob's upstream fails, carol has no source, dana has no source either.
	suite.Len(errs, 3)
}

func (suite *ServerTestSuite) TestStatsEndpoint() {
	resp, err := http.Get(suite.api.URL + "/api/participants/dana/stats")
	suite.Require().NoError(err)

	defer resp.Body.Close()

	suite.Equal(http.StatusOK, resp.StatusCode)

	var stats types.ParticipantStats
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&stats))
	suite.InDelta(1234.5, stats.Equity.Unwrap(), 1e-9)
}

func (suite *ServerTestSuite) TestStatsEndpointNoStatsYet() {
	resp, err := http.Get(suite.api.URL + "/api/participants/carol/stats")
	suite.Require().NoError(err)

	suite.Require().NoError(resp.Body.Close())
	suite.Equal(http.StatusNotFound, resp.StatusCode)
}
