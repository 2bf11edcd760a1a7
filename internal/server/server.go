// Package server exposes the sync engine over HTTP.
//
// Handlers are deliberately thin: route, delegate, serialize. Rendering,
// authentication and the rest of the site live elsewhere.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tradelab-io/statsync/internal/logger"
	"github.com/tradelab-io/statsync/internal/store"
	"github.com/tradelab-io/statsync/internal/syncer"
	"github.com/tradelab-io/statsync/pkg/errors"
)

// Server wires the HTTP routes onto the syncer and store.
type Server struct {
	syncer *syncer.Syncer
	store  store.ParticipantStore
	logger *logger.Logger
}

// New creates a Server.
func New(sync *syncer.Syncer, st store.ParticipantStore, log *logger.Logger) *Server {
	return &Server{
		syncer: sync,
		store:  st,
		logger: log,
	}
}

// Router builds the mux router for the API surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sync", s.handleSyncAll).Methods(http.MethodPost)
	api.HandleFunc("/sync/{token}", s.handleSyncOne).Methods(http.MethodPost)
	api.HandleFunc("/participants/{token}/stats", s.handleStats).Methods(http.MethodGet)

	return r
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	result := s.syncer.SyncAll(r.Context())

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSyncOne(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	result, err := s.syncer.SyncOne(r.Context(), token)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	p, err := s.store.FindByToken(r.Context(), token)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if p.Stats == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "participant has no synced stats yet",
		})

		return
	}

	s.writeJSON(w, http.StatusOK, p.Stats)
}

// writeError maps error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch errors.GetCode(err) {
	case errors.ErrCodeParticipantNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeMissingSource, errors.ErrCodeEmptyTable:
		status = http.StatusUnprocessableEntity
	case errors.ErrCodeFetchFailed:
		status = http.StatusBadGateway
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
