package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/translation"
)

const (
	commentMarkedDeleted   = `Marked document as "Deleted"`
	commentUnmarkedDeleted = `Unmarked document as "Deleted"`
)

// PageCreated saves a newly created collection page. The content of a versioned page
// moves into its fork for selected, or for the collection's first version when selected
// is zero; the fork is hidden, starts as a draft and takes the page title. Translation
// records are written for whichever document keeps the content. It returns the fork,
// or a zero reference when the page keeps its content.
func (h *Hooks) PageCreated(ctx context.Context, page *model.Document, selected model.DocumentRef, user string) (model.DocumentRef, error) {
	if page == nil {
		return model.DocumentRef{}, nil
	}
	ctx = repository.WithAuthor(ctx, user)
	if err := h.authz.Check(ctx, user, auth.RightEdit, page.Ref); err != nil {
		return model.DocumentRef{}, err
	}
	exists, err := h.store.Exists(ctx, page.Ref)
	if err != nil {
		return model.DocumentRef{}, errors.StoreUnavailable("exists", err)
	}
	if exists {
		return model.DocumentRef{}, errors.ValidationFailed("page", fmt.Sprintf("%s already exists", page.Ref))
	}

	var fork model.DocumentRef
	kind := model.KindOf(page)
	if kind.Has(model.KindVersionedPage) {
		version, err := h.forkVersion(ctx, page.Ref, selected)
		if err != nil {
			return model.DocumentRef{}, err
		}
		if !version.IsZero() {
			fork = collection.ContentRef(page.Ref, version)
			if err := h.createFork(ctx, page, fork); err != nil {
				return model.DocumentRef{}, err
			}
			page.Content = ""
		}
	}
	if kind.Has(model.KindPage) {
		if err := h.recordTranslations(page); err != nil {
			return model.DocumentRef{}, err
		}
	}
	if err := h.store.Save(ctx, page, ""); err != nil {
		return model.DocumentRef{}, errors.WriteFailed(page.Ref.String(), err)
	}
	h.logger.Info("Created page", logfields.Page(page.Ref.String()), slog.String("fork", fork.String()), logfields.User(user))
	return fork, nil
}

// forkVersion picks the version receiving a new page's content.
func (h *Hooks) forkVersion(ctx context.Context, page, selected model.DocumentRef) (model.DocumentRef, error) {
	coll, ok, err := h.nav.Locate(ctx, page)
	if err != nil {
		return model.DocumentRef{}, errors.StoreUnavailable("locate", err)
	}
	if !ok {
		return model.DocumentRef{}, nil
	}
	if !selected.IsZero() {
		owner, ok, err := h.nav.Locate(ctx, selected)
		if err != nil {
			return model.DocumentRef{}, errors.StoreUnavailable("locate", err)
		}
		k, err := h.nav.Kind(ctx, selected)
		if err != nil {
			return model.DocumentRef{}, errors.StoreUnavailable("get", err)
		}
		if !ok || !owner.Equal(coll) || !k.Has(model.KindVersion) {
			return model.DocumentRef{}, errors.ValidationFailed("version", fmt.Sprintf("%s is not a version of %s", selected, coll))
		}
		return selected, nil
	}
	versions, err := h.nav.Versions(ctx, coll)
	if err != nil {
		return model.DocumentRef{}, errors.StoreUnavailable("query", err)
	}
	if len(versions) == 0 {
		return model.DocumentRef{}, nil
	}
	return versions[0], nil
}

func (h *Hooks) createFork(ctx context.Context, page *model.Document, ref model.DocumentRef) error {
	fork, err := h.store.Get(ctx, ref)
	if stderrors.Is(err, repository.ErrNotFound) {
		fork = model.NewDocument(ref)
	} else if err != nil {
		return errors.StoreUnavailable("get", err)
	}
	fork.Syntax = page.Syntax
	fork.Content = page.Content
	fork.Title = page.Title
	fork.Hidden = true
	fork.EnsureObject(model.ClassVersionedContent)
	fork.EnsureObject(model.ClassPageStatus).Set(model.PropStatus, string(model.StatusDraft))
	if err := h.recordTranslations(fork); err != nil {
		return err
	}
	if err := h.store.Save(ctx, fork, ""); err != nil {
		return errors.WriteFailed(ref.String(), err)
	}
	return nil
}

func (h *Hooks) recordTranslations(doc *model.Document) error {
	if doc.Content == "" {
		return nil
	}
	data, err := translation.LanguageData(doc, h.syntaxes)
	if err != nil {
		return errors.ValidationFailed("content", err.Error())
	}
	if len(data) == 0 {
		return nil
	}
	return translation.SetLanguageData(doc, data)
}

// SwitchDeletedMark toggles the deletion marker of ref and reports whether the document
// is marked afterwards.
func (h *Hooks) SwitchDeletedMark(ctx context.Context, ref model.DocumentRef, user string) (bool, error) {
	ctx = repository.WithAuthor(ctx, user)
	if err := h.authz.Check(ctx, user, auth.RightEdit, ref); err != nil {
		return false, err
	}
	doc, err := h.store.Get(ctx, ref)
	if stderrors.Is(err, repository.ErrNotFound) {
		return false, errors.NotFound(ref.String())
	}
	if err != nil {
		return false, errors.StoreUnavailable("get", err)
	}

	marked := doc.RemoveObjects(model.ClassDeletedContent) == 0
	comment := commentUnmarkedDeleted
	if marked {
		doc.AddObject(model.ClassDeletedContent)
		comment = commentMarkedDeleted
	}
	if err := h.store.Save(ctx, doc, comment); err != nil {
		return false, errors.WriteFailed(ref.String(), err)
	}
	return marked, nil
}

// SetLibrary makes every version of book use libraryVersion of library; a zero
// libraryVersion selects the library's first version.
func (h *Hooks) SetLibrary(ctx context.Context, book, library, libraryVersion model.DocumentRef, user string) error {
	ctx = repository.WithAuthor(ctx, user)
	if err := h.authz.Check(ctx, user, auth.RightEdit, book); err != nil {
		return err
	}
	return h.libs.SetLibrary(ctx, book, library, libraryVersion)
}
