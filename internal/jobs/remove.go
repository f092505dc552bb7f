package jobs

import (
	"context"
	stderrors "errors"
	"log/slog"

	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/events"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// Failure records a document a job could not change.
type Failure struct {
	Ref   model.DocumentRef `json:"ref"`
	Error string            `json:"error"`
}

// RemoveResult summarises a version content removal.
type RemoveResult struct {
	Version  model.DocumentRef   `json:"version"`
	Removed  []model.DocumentRef `json:"removed"`
	Failures []Failure           `json:"failures,omitempty"`
}

func (s *Service) removeVersionContent(ctx context.Context, id string, version model.DocumentRef, user string, progress ProgressFunc) (*RemoveResult, error) {
	ctx = repository.WithAuthor(ctx, user)
	log := s.logger.With(logfields.JobID(id), logfields.Version(version.String()))

	collectionRef, ok, err := s.nav.Locate(ctx, version)
	if err != nil {
		return nil, errors.StoreUnavailable("locate", err)
	}
	if !ok {
		return nil, errors.ValidationFailed("version", "version "+version.String()+" is not inside a book or library")
	}
	if err := s.authz.Check(ctx, user, auth.RightDelete, collectionRef); err != nil {
		log.Error("User is missing the delete right on the collection",
			logfields.User(user), logfields.Collection(collectionRef.String()))
		return nil, err
	}

	refs, err := s.store.Query(ctx, repository.Query{
		Under: collectionRef.Space,
		Class: model.ClassVersionedContent,
		Name:  collection.VersionName(version),
	})
	if err != nil {
		return nil, errors.StoreUnavailable("query", err)
	}

	result := &RemoveResult{Version: version}
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		progress(i+1, len(refs), ref.String())
		if err := s.store.Delete(ctx, ref); err != nil && !stderrors.Is(err, repository.ErrNotFound) {
			log.Error("Failed to remove versioned content", logfields.Page(ref.String()), logfields.Error(err))
			result.Failures = append(result.Failures, Failure{Ref: ref, Error: err.Error()})
			continue
		}
		result.Removed = append(result.Removed, ref)
	}

	log.Info("Removed version content", logfields.Collection(collectionRef.String()),
		logfields.User(user), slog.Int("documents", len(result.Removed)))
	s.emit(ctx, events.New(events.VersionContentRemoved, id, version.String(), map[string]any{
		"collection": collectionRef.String(),
		"removed":    len(result.Removed),
		"failed":     len(result.Failures),
	}))
	return result, nil
}
