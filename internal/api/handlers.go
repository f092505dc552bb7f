package api

import (
	"net/http"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/jobs"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// PublishRequest starts a publication.
type PublishRequest struct {
	Configuration string `json:"configuration" validate:"required"`
	User          string `json:"user,omitempty"`
}

// RemoveContentRequest starts the removal of a version's content.
type RemoveContentRequest struct {
	Version string `json:"version" validate:"required"`
	User    string `json:"user,omitempty"`
}

// StatusRequest starts a batch page status change.
type StatusRequest struct {
	Pages  []string `json:"pages" validate:"required,min=1,dive,required"`
	Scope  string   `json:"scope,omitempty" validate:"omitempty,oneof=selected children"`
	Status string   `json:"status" validate:"required,oneof=draft review complete"`
	User   string   `json:"user,omitempty"`
}

// DeletedMarkRequest toggles a document's deletion marker.
type DeletedMarkRequest struct {
	Reference string `json:"reference" validate:"required"`
	User      string `json:"user,omitempty"`
}

// JobAccepted is returned for queued jobs.
type JobAccepted struct {
	JobID string `json:"jobId"`
}

func parseRef(field, value string) (model.DocumentRef, error) {
	ref, err := model.ParseDocumentRef(value, model.DocumentRef{})
	if err != nil {
		return model.DocumentRef{}, errors.ValidationFailed(field, err.Error())
	}
	return ref, nil
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ref, err := parseRef("configuration", req.Configuration)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.jobs.Publish(r.Context(), ref, requestUser(r, req.User))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Success(w, http.StatusAccepted, JobAccepted{JobID: id})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("configuration")
	if raw == "" {
		s.fail(w, r, errors.ValidationFailed("configuration", "required"))
		return
	}
	ref, err := parseRef("configuration", raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lines, err := s.jobs.Preview(r.Context(), ref, requestUser(r, ""))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Success(w, http.StatusOK, lines)
}

func (s *Server) handleRemoveVersionContent(w http.ResponseWriter, r *http.Request) {
	var req RemoveContentRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ref, err := parseRef("version", req.Version)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.jobs.RemoveVersionContent(r.Context(), ref, requestUser(r, req.User))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Success(w, http.StatusAccepted, JobAccepted{JobID: id})
}

func (s *Server) handleSetPagesStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	pages := make([]model.DocumentRef, 0, len(req.Pages))
	for _, p := range req.Pages {
		ref, err := parseRef("pages", p)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		pages = append(pages, ref)
	}
	id, err := s.jobs.SetPagesStatus(r.Context(), jobs.StatusRequest{
		Pages:  pages,
		Scope:  jobs.Scope(req.Scope),
		Status: model.PageStatus(req.Status),
		User:   requestUser(r, req.User),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Success(w, http.StatusAccepted, JobAccepted{JobID: id})
}

func (s *Server) handleSwitchDeletedMark(w http.ResponseWriter, r *http.Request) {
	if s.hooks == nil {
		s.Error(w, http.StatusNotImplemented, "lifecycle hooks are not configured")
		return
	}
	var req DeletedMarkRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ref, err := parseRef("reference", req.Reference)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	marked, err := s.hooks.SwitchDeletedMark(r.Context(), ref, requestUser(r, req.User))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Success(w, http.StatusOK, map[string]any{"reference": ref.String(), "deleted": marked})
}
