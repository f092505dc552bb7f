package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// VersionDeleted repairs the version chain after deleted, the last state of a version
// document, was removed: versions that preceded from it now precede from its own
// predecessor (or become roots). The deleted version's content removal is then started
// and its job id returned.
func (h *Hooks) VersionDeleted(ctx context.Context, deleted *model.Document, user string) (string, error) {
	if deleted == nil || !deleted.HasObject(model.ClassVersion) {
		return "", nil
	}
	ctx = repository.WithAuthor(ctx, user)
	ref := deleted.Ref
	log := h.logger.With(logfields.Version(ref.String()), logfields.User(user))

	coll, ok, err := h.nav.Locate(ctx, ref)
	if err != nil {
		return "", errors.StoreUnavailable("locate", err)
	}
	if !ok {
		return "", errors.ValidationFailed("version", fmt.Sprintf("%s is not inside a book or library", ref))
	}

	replacement := ""
	if value := strings.TrimSpace(deleted.Object(model.ClassVersion).String(model.PropPrecedingVersion)); value != "" {
		if prev, err := model.ParseDocumentRef(value, ref); err == nil {
			replacement = prev.String()
		}
	}

	versions, err := h.nav.Versions(ctx, coll)
	if err != nil {
		return "", errors.StoreUnavailable("query", err)
	}
	comment := fmt.Sprintf("Update preceding version after [%s] removal.", ref)
	for _, v := range versions {
		if v.Equal(ref) {
			continue
		}
		prev, ok, err := h.versions.PreviousVersion(ctx, v)
		if err != nil {
			return "", err
		}
		if !ok || !prev.Equal(ref) {
			continue
		}
		if err := h.setPreceding(ctx, v, replacement, comment); err != nil {
			return "", err
		}
		log.Info("Re-pointed preceding version", slog.String("successor", v.String()),
			slog.String("preceding", replacement))
	}

	if h.remover == nil {
		return "", nil
	}
	id, err := h.remover.RemoveVersionContent(ctx, ref, user)
	if err != nil {
		log.Error("Could not start the removal of the version's content", logfields.Error(err))
		return "", err
	}
	return id, nil
}

func (h *Hooks) setPreceding(ctx context.Context, version model.DocumentRef, preceding, comment string) error {
	doc, err := h.store.Get(ctx, version)
	if err != nil {
		return errors.StoreUnavailable("get", err)
	}
	doc.EnsureObject(model.ClassVersion).Set(model.PropPrecedingVersion, preceding)
	if err := h.store.Save(ctx, doc, comment); err != nil {
		return errors.WriteFailed(version.String(), err)
	}
	return nil
}

// VersionRenamed follows the rename of a version document from oldRef to newRef: content
// forks named after the old version are renamed after the new one, and versions
// preceding from oldRef now precede from newRef. Forks the user may not edit at their
// new name, or whose new name is taken, stay in place and are reported as denied.
func (h *Hooks) VersionRenamed(ctx context.Context, oldRef, newRef model.DocumentRef, user string) (*RenameResult, error) {
	oldName, newName := collection.VersionName(oldRef), collection.VersionName(newRef)
	result := &RenameResult{}
	if oldName == newName {
		return result, nil
	}
	ctx = repository.WithAuthor(ctx, user)
	log := h.logger.With(logfields.Version(newRef.String()), logfields.User(user))

	coll, ok, err := h.nav.Locate(ctx, newRef)
	if err != nil {
		return nil, errors.StoreUnavailable("locate", err)
	}
	if !ok {
		return nil, errors.ValidationFailed("version", fmt.Sprintf("%s is not inside a book or library", newRef))
	}
	log.Debug("Version renamed", slog.String("previous", oldName), slog.String("name", newName))

	forks, err := h.store.Query(ctx, repository.Query{Under: coll.Space, Class: model.ClassVersionedContent, Name: oldName})
	if err != nil {
		return nil, errors.StoreUnavailable("query", err)
	}
	for _, fork := range forks {
		target := fork.Sibling(newName)
		if err := h.authz.Check(ctx, user, auth.RightEdit, target); err != nil {
			log.Error("Cannot rename versioned content, no edit right on the destination",
				logfields.Page(fork.String()), slog.String("target", target.String()))
			result.Denied = append(result.Denied, fork)
			continue
		}
		if err := h.store.Rename(ctx, fork, target); err != nil {
			if stderrors.Is(err, repository.ErrAlreadyExists) {
				log.Error("Cannot rename versioned content, destination exists",
					logfields.Page(fork.String()), slog.String("target", target.String()))
				result.Denied = append(result.Denied, fork)
				continue
			}
			return result, errors.WriteFailed(fork.String(), err)
		}
		result.Renamed = append(result.Renamed, target)
	}

	versions, err := h.nav.Versions(ctx, coll)
	if err != nil {
		return result, errors.StoreUnavailable("query", err)
	}
	comment := fmt.Sprintf("Update preceding version after [%s] rename.", oldRef)
	for _, v := range versions {
		prev, ok, err := h.versions.PreviousVersion(ctx, v)
		if err != nil {
			return result, err
		}
		if ok && prev.Equal(oldRef) {
			if err := h.setPreceding(ctx, v, newRef.String(), comment); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// RenameResult lists the forks moved by VersionRenamed.
type RenameResult struct {
	Renamed []model.DocumentRef `json:"renamed"`
	Denied  []model.DocumentRef `json:"denied,omitempty"`
}
