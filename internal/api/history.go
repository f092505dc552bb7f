package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/events"
	"git.home.luguber.info/inful/bookversions/internal/eventstore"
)

// PublicationRun is the response of GET /api/publications/history/{id}.
type PublicationRun struct {
	Summary eventstore.PublicationSummary `json:"summary"`
	Events  []events.Event                `json:"events"`
}

// PublicationHistory is the response of GET /api/publications/history.
type PublicationHistory struct {
	Active  []eventstore.PublicationSummary `json:"active"`
	History []eventstore.PublicationSummary `json:"history"`
}

func (s *Server) handlePublicationHistory(w http.ResponseWriter, _ *http.Request) {
	h := s.journal.History()
	s.Success(w, http.StatusOK, PublicationHistory{Active: h.Active(), History: h.History()})
}

func (s *Server) handlePublicationRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, ok := s.journal.History().Run(id)
	if !ok {
		s.fail(w, r, errors.NotFound(id))
		return
	}
	evts, err := s.journal.Store().ByJob(r.Context(), id)
	if err != nil {
		s.fail(w, r, errors.StoreUnavailable("journal", err))
		return
	}
	s.Success(w, http.StatusOK, PublicationRun{Summary: summary, Events: evts})
}
