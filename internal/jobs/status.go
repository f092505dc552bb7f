package jobs

import (
	"context"
	stderrors "errors"
	"log/slog"

	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/events"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// Scope selects which pages a status change applies to.
type Scope string

const (
	// ScopeSelected changes the given pages only.
	ScopeSelected Scope = "selected"
	// ScopeChildren also changes the versioned content nested below the given pages.
	ScopeChildren Scope = "children"
)

const statusComment = "Batch change status"

// StatusRequest changes the status of a batch of pages.
type StatusRequest struct {
	Pages  []model.DocumentRef `json:"pages"`
	Scope  Scope               `json:"scope,omitempty"`
	Status model.PageStatus    `json:"status"`
	User   string              `json:"user,omitempty"`
}

func (r *StatusRequest) validate() error {
	if len(r.Pages) == 0 {
		return errors.ValidationFailed("pages", "at least one page is required")
	}
	if r.Scope == "" {
		r.Scope = ScopeSelected
	}
	if r.Scope != ScopeSelected && r.Scope != ScopeChildren {
		return errors.ValidationFailed("scope", "unknown scope "+string(r.Scope))
	}
	if !r.Status.Valid() {
		return errors.ValidationFailed("status", "unknown status "+string(r.Status))
	}
	return nil
}

// StatusResult summarises a status change.
type StatusResult struct {
	Status   model.PageStatus    `json:"status"`
	Changed  []model.DocumentRef `json:"changed"`
	Denied   []model.DocumentRef `json:"denied,omitempty"`
	Failures []Failure           `json:"failures,omitempty"`
}

func (s *Service) setPagesStatus(ctx context.Context, id string, req StatusRequest, progress ProgressFunc) (*StatusResult, error) {
	ctx = repository.WithAuthor(ctx, req.User)
	log := s.logger.With(logfields.JobID(id), logfields.User(req.User))

	pages, err := s.expandPages(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{Status: req.Status}
	for i, ref := range pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		progress(i+1, len(pages), ref.String())
		log.Info("Change page status", logfields.Page(ref.String()), slog.String("status", string(req.Status)))

		if err := s.authz.Check(ctx, req.User, auth.RightEdit, ref); err != nil {
			log.Error("Can't change status, user is not allowed to edit the page", logfields.Page(ref.String()))
			result.Denied = append(result.Denied, ref)
			continue
		}
		if err := s.setStatus(ctx, ref, req.Status); err != nil {
			log.Error("Failed to change page status", logfields.Page(ref.String()), logfields.Error(err))
			result.Failures = append(result.Failures, Failure{Ref: ref, Error: err.Error()})
			continue
		}
		result.Changed = append(result.Changed, ref)
		s.emit(ctx, events.New(events.PageStatusChanged, id, ref.String(), map[string]any{"status": string(req.Status)}))
	}
	return result, nil
}

func (s *Service) setStatus(ctx context.Context, ref model.DocumentRef, status model.PageStatus) error {
	doc, err := s.store.Get(ctx, ref)
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(ref.String())
	}
	if err != nil {
		return err
	}
	doc.EnsureObject(model.ClassPageStatus).Set(model.PropStatus, string(status))
	if err := s.store.Save(ctx, doc, statusComment); err != nil {
		return errors.WriteFailed(ref.String(), err)
	}
	return nil
}

// expandPages returns the pages in request order, followed for ScopeChildren by the
// versioned content below each non-terminal page. Duplicates are dropped.
func (s *Service) expandPages(ctx context.Context, req StatusRequest) ([]model.DocumentRef, error) {
	seen := make(map[string]bool)
	var out []model.DocumentRef
	add := func(ref model.DocumentRef) {
		if key := ref.String(); !seen[key] {
			seen[key] = true
			out = append(out, ref)
		}
	}
	for _, page := range req.Pages {
		add(page)
		if req.Scope != ScopeChildren || !page.IsWebHome() {
			continue
		}
		children, err := s.store.Query(ctx, repository.Query{Under: page.Space, Class: model.ClassVersionedContent})
		if err != nil {
			return nil, errors.StoreUnavailable("query", err)
		}
		for _, child := range children {
			add(child)
		}
	}
	return out, nil
}
