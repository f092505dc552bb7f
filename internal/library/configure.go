package library

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// SetLibrary configures every version of book to use libraryVersion of library. A zero
// libraryVersion selects the library's first version. Versions already configured with
// the same library version are left untouched.
func (r *Resolver) SetLibrary(ctx context.Context, book, library, libraryVersion model.DocumentRef) error {
	if k, err := r.nav.Kind(ctx, book); err != nil {
		return err
	} else if !k.Has(model.KindBook) {
		return errors.ValidationFailed("book", fmt.Sprintf("%s is not a book", book))
	}
	if k, err := r.nav.Kind(ctx, library); err != nil {
		return err
	} else if !k.Has(model.KindLibrary) {
		return errors.ValidationFailed("library", fmt.Sprintf("%s is not a library", library))
	}

	if libraryVersion.IsZero() {
		versions, err := r.nav.Versions(ctx, library)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			return errors.ValidationFailed("libraryVersion", fmt.Sprintf("library %s has no versions", library))
		}
		libraryVersion = versions[0]
	}
	owner, ok, err := r.nav.Locate(ctx, libraryVersion)
	if err != nil {
		return err
	}
	if !ok || !owner.Equal(library) {
		return errors.ValidationFailed("libraryVersion", fmt.Sprintf("%s is not a version of %s", libraryVersion, library))
	}

	versions, err := r.nav.Versions(ctx, book)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := r.setVersionLibrary(ctx, v, library, libraryVersion); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) setVersionLibrary(ctx context.Context, version, library, libraryVersion model.DocumentRef) error {
	store := r.nav.Store()
	doc, err := store.Get(ctx, version)
	if err != nil {
		return err
	}

	var target *model.Object
	for _, obj := range doc.ObjectsOf(model.ClassLibraryReference) {
		ref, err := model.ParseDocumentRef(obj.String(model.PropLibrary), library)
		if err != nil || !ref.Equal(library) {
			continue
		}
		current, err := model.ParseDocumentRef(obj.String(model.PropLibraryVersion), library)
		if err == nil && current.Equal(libraryVersion) {
			return nil
		}
		target = obj
		break
	}
	if target == nil {
		target = doc.AddObject(model.ClassLibraryReference)
		target.Set(model.PropLibrary, library.String())
	}
	target.Set(model.PropLibraryVersion, libraryVersion.String())

	comment := fmt.Sprintf("Setting version configuration for library [%s]: [%s].", library.Space, libraryVersion)
	if err := store.Save(ctx, doc, comment); err != nil {
		return errors.WriteFailed(version.String(), err)
	}
	r.logger.Info("Configured library version", logfields.Version(version.String()),
		logfields.Library(library.String()), slog.String("library_version", libraryVersion.String()))
	return nil
}
