// Package library resolves which library versions a book version uses and where those
// library versions were published.
package library

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/versioning"
)

// Status describes how far a library binding could be resolved.
type Status string

const (
	StatusPublished     Status = "published"
	StatusNotConfigured Status = "not_configured"
	StatusNotPublished  Status = "not_published"
)

// Binding is one library as seen from one book version. LibraryVersion is zero when the
// book version has no configuration for the library; PublishedSpace is zero when that
// library version was never published.
type Binding struct {
	Library        model.DocumentRef
	LibraryVersion model.DocumentRef
	PublishedSpace model.DocumentRef
	Status         Status
}

// Resolved reports whether the binding points at a published space.
func (b Binding) Resolved() bool { return b.Status == StatusPublished }

// Table holds the bindings of every library used by a book, for a version and each of
// the versions it inherits from.
type Table struct {
	// Versions lists version names, the selected version first.
	Versions  []string
	ByVersion map[string][]Binding
}

// Lookup returns the binding of library for the named version.
func (t *Table) Lookup(versionName string, library model.DocumentRef) (Binding, bool) {
	if t == nil {
		return Binding{}, false
	}
	for _, b := range t.ByVersion[versionName] {
		if b.Library.Equal(library) {
			return b, true
		}
	}
	return Binding{}, false
}

// Published returns the resolved bindings of the named version.
func (t *Table) Published(versionName string) []Binding {
	if t == nil {
		return nil
	}
	var out []Binding
	for _, b := range t.ByVersion[versionName] {
		if b.Resolved() {
			out = append(out, b)
		}
	}
	return out
}

// Gaps returns every unresolved binding across all versions.
func (t *Table) Gaps() []Binding {
	if t == nil {
		return nil
	}
	var out []Binding
	for _, name := range t.Versions {
		for _, b := range t.ByVersion[name] {
			if !b.Resolved() {
				out = append(out, b)
			}
		}
	}
	return out
}

// Resolver answers library configuration questions for books.
type Resolver struct {
	nav      *collection.Navigator
	versions *versioning.Resolver
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(nav *collection.Navigator, versions *versioning.Resolver) *Resolver {
	return &Resolver{nav: nav, versions: versions, logger: nav.Logger()}
}

// ConfiguredVersion returns the library version that a book version is configured to
// use for library. It reports false when any of the three references has the wrong
// kind or the version carries no matching configuration; it never ascends to
// preceding versions.
func (r *Resolver) ConfiguredVersion(ctx context.Context, book, library, version model.DocumentRef) (model.DocumentRef, bool, error) {
	for _, check := range []struct {
		ref  model.DocumentRef
		kind model.Kind
	}{{book, model.KindBook}, {library, model.KindLibrary}, {version, model.KindVersion}} {
		k, err := r.nav.Kind(ctx, check.ref)
		if err != nil || !k.Has(check.kind) {
			return model.DocumentRef{}, false, err
		}
	}
	doc, err := r.nav.Document(ctx, version)
	if err != nil || doc == nil {
		return model.DocumentRef{}, false, err
	}
	for _, obj := range doc.ObjectsOf(model.ClassLibraryReference) {
		ref, err := model.ParseDocumentRef(obj.String(model.PropLibrary), library)
		if err != nil || !ref.Equal(library) {
			continue
		}
		libVersion, err := model.ParseDocumentRef(obj.String(model.PropLibraryVersion), library)
		if err != nil {
			r.logger.Warn("Ignoring malformed library version", logfields.Version(version.String()),
				logfields.Library(library.String()), logfields.Error(err))
			return model.DocumentRef{}, false, nil
		}
		return libVersion, true, nil
	}
	return model.DocumentRef{}, false, nil
}

// UsedLibraries lists the distinct libraries referenced by any library configuration
// inside the book, sorted by reference.
func (r *Resolver) UsedLibraries(ctx context.Context, book model.DocumentRef) ([]model.DocumentRef, error) {
	k, err := r.nav.Kind(ctx, book)
	if err != nil || !k.Has(model.KindBook) {
		return nil, err
	}
	refs, err := r.nav.Store().Query(ctx, repository.Query{Under: book.Space, Class: model.ClassLibraryReference})
	if err != nil {
		return nil, err
	}
	var out []model.DocumentRef
	for _, ref := range refs {
		doc, err := r.nav.Document(ctx, ref)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		for _, obj := range doc.ObjectsOf(model.ClassLibraryReference) {
			value := strings.TrimSpace(obj.String(model.PropLibrary))
			if value == "" {
				continue
			}
			lib, err := model.ParseDocumentRef(value, book)
			if err != nil {
				r.logger.Warn("Ignoring malformed library reference", logfields.Version(ref.String()), logfields.Error(err))
				continue
			}
			if !slices.ContainsFunc(out, lib.Equal) {
				out = append(out, lib)
			}
		}
	}
	slices.SortFunc(out, func(a, b model.DocumentRef) int { return strings.Compare(a.String(), b.String()) })
	return out, nil
}

// PublishedSpace finds where coll was published under publicationID from source. The
// result is the home document of the published space.
func (r *Resolver) PublishedSpace(ctx context.Context, coll model.DocumentRef, publicationID string, source model.DocumentRef) (model.DocumentRef, bool, error) {
	if publicationID == "" || coll.IsZero() || source.IsZero() {
		return model.DocumentRef{}, false, nil
	}
	doc, err := r.nav.Document(ctx, coll)
	if err != nil || doc == nil {
		return model.DocumentRef{}, false, err
	}
	if !model.KindOf(doc).IsCollection() {
		return model.DocumentRef{}, false, nil
	}
	for _, obj := range doc.ObjectsOf(model.ClassPublication) {
		if obj.String(model.PropPublicationID) != publicationID || obj.String(model.PropPublicationSource) != source.String() {
			continue
		}
		space, err := model.ParseDocumentRef(obj.String(model.PropPublicationPublishedSpace), coll)
		if err != nil {
			r.logger.Warn("Ignoring malformed publication record", logfields.Collection(coll.String()), logfields.Error(err))
			return model.DocumentRef{}, false, nil
		}
		return space, true, nil
	}
	return model.DocumentRef{}, false, nil
}

// Bind resolves one library for one book version.
func (r *Resolver) Bind(ctx context.Context, book, library, version model.DocumentRef) (Binding, error) {
	b := Binding{Library: library, Status: StatusNotConfigured}
	libVersion, ok, err := r.ConfiguredVersion(ctx, book, library, version)
	if err != nil {
		return b, err
	}
	if !ok {
		gap := errors.ResolutionGap(library.String(), version.String(), string(StatusNotConfigured))
		r.logger.Warn("Library is used in book but no library version is configured for the book version",
			logfields.Collection(book.String()), logfields.Library(library.String()),
			logfields.Version(version.String()), logfields.Error(gap))
		return b, nil
	}
	b.LibraryVersion = libVersion
	b.Status = StatusNotPublished
	space, ok, err := r.PublishedSpace(ctx, library, collection.VersionName(libVersion), library)
	if err != nil {
		return b, err
	}
	if !ok {
		gap := errors.ResolutionGap(library.String(), libVersion.String(), string(StatusNotPublished))
		r.logger.Warn("Configured library version does not seem to be published",
			logfields.Collection(book.String()), logfields.Library(library.String()),
			logfields.Version(libVersion.String()), logfields.Error(gap))
		return b, nil
	}
	b.PublishedSpace = space
	b.Status = StatusPublished
	return b, nil
}

// UsedPublished resolves every library used by book for version alone.
func (r *Resolver) UsedPublished(ctx context.Context, book, version model.DocumentRef) ([]Binding, error) {
	libs, err := r.UsedLibraries(ctx, book)
	if err != nil {
		return nil, err
	}
	out := make([]Binding, 0, len(libs))
	for _, lib := range libs {
		b, err := r.Bind(ctx, book, lib, version)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// UsedPublishedWithInheritance resolves every library used by book for version and for
// each version it inherits from. Unresolved libraries stay in the table with their
// status so callers can report them.
func (r *Resolver) UsedPublishedWithInheritance(ctx context.Context, book, version model.DocumentRef) (*Table, error) {
	table := &Table{ByVersion: make(map[string][]Binding)}
	k, err := r.nav.Kind(ctx, book)
	if err != nil || !k.Has(model.KindBook) {
		return table, err
	}
	chain, err := r.versions.Ascending(ctx, book, version)
	if err != nil {
		return nil, err
	}
	libs, err := r.UsedLibraries(ctx, book)
	if err != nil {
		return nil, err
	}
	for _, v := range chain {
		name := collection.VersionName(v)
		bindings := make([]Binding, 0, len(libs))
		for _, lib := range libs {
			b, err := r.Bind(ctx, book, lib, v)
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, b)
		}
		table.Versions = append(table.Versions, name)
		table.ByVersion[name] = bindings
	}
	return table, nil
}
