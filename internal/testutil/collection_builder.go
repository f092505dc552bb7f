// Package testutil builds collections in a document store for tests.
package testutil

import (
	"context"
	"strings"
	"testing"

	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
)

// CollectionBuilder provides a fluent interface for creating books and libraries.
type CollectionBuilder struct {
	t     *testing.T
	ctx   context.Context
	store repository.Store
	root  model.SpaceRef
}

// NewBook creates a book rooted at space (e.g. "Books.Guide") with the given title.
func NewBook(t *testing.T, store repository.Store, space, title string) *CollectionBuilder {
	return newCollection(t, store, space, title, model.ClassBook)
}

// NewLibrary creates a library rooted at space.
func NewLibrary(t *testing.T, store repository.Store, space, title string) *CollectionBuilder {
	return newCollection(t, store, space, title, model.ClassLibrary)
}

func newCollection(t *testing.T, store repository.Store, space, title, class string) *CollectionBuilder {
	t.Helper()
	root, err := model.ParseSpaceRef(space)
	if err != nil {
		t.Fatalf("invalid collection space %q: %v", space, err)
	}
	cb := &CollectionBuilder{t: t, ctx: t.Context(), store: store, root: root}
	doc := model.NewDocument(root.Home())
	doc.Title = title
	doc.AddObject(class)
	cb.save(doc)
	return cb
}

// Ref returns the collection root document.
func (cb *CollectionBuilder) Ref() model.DocumentRef { return cb.root.Home() }

// Space returns the collection root space.
func (cb *CollectionBuilder) Space() model.SpaceRef { return cb.root }

// VersionRef returns the terminal version document for name.
func (cb *CollectionBuilder) VersionRef(name string) model.DocumentRef {
	return cb.root.Child(model.SpaceVersions).Doc(name)
}

// VariantRef returns the terminal variant document for name.
func (cb *CollectionBuilder) VariantRef(name string) model.DocumentRef {
	return cb.root.Child(model.SpaceVariants).Doc(name)
}

// PageRef returns the WebHome of a slash separated page path inside the collection.
func (cb *CollectionBuilder) PageRef(path string) model.DocumentRef {
	space := cb.root
	for _, name := range strings.Split(path, "/") {
		space = space.Child(name)
	}
	return space.Home()
}

// ContentRef returns the versioned content fork of page for version.
func (cb *CollectionBuilder) ContentRef(path, version string) model.DocumentRef {
	return cb.PageRef(path).Sibling(version)
}

// Version adds a version. An empty preceding name makes it a root version.
func (cb *CollectionBuilder) Version(name, preceding string) *CollectionBuilder {
	cb.t.Helper()
	doc := model.NewDocument(cb.VersionRef(name))
	doc.Title = name
	obj := doc.AddObject(model.ClassVersion)
	if preceding != "" {
		obj.Set(model.PropPrecedingVersion, cb.VersionRef(preceding).String())
	}
	cb.save(doc)
	return cb
}

// Variant adds a variant.
func (cb *CollectionBuilder) Variant(name string, excludeOutside bool) *CollectionBuilder {
	cb.t.Helper()
	doc := model.NewDocument(cb.VariantRef(name))
	doc.Title = name
	doc.AddObject(model.ClassVariant).SetBool(model.PropExcludePagesOutsideVariant, excludeOutside)
	cb.save(doc)
	return cb
}

// Languages configures the book's supported languages.
func (cb *CollectionBuilder) Languages(langs ...string) *CollectionBuilder {
	cb.t.Helper()
	doc := model.NewDocument(cb.root.Child(model.SpaceLanguages).Home())
	doc.AddObject(model.ClassMultilingual).SetList(model.PropSupportedLanguages, langs)
	cb.save(doc)
	return cb
}

// Page adds a versioned page (no content of its own).
func (cb *CollectionBuilder) Page(path string) *CollectionBuilder {
	cb.t.Helper()
	doc := model.NewDocument(cb.PageRef(path))
	doc.Title = path[strings.LastIndex(path, "/")+1:]
	doc.Syntax = richtext.MarkdownSyntaxID
	doc.AddObject(model.ClassBookPage)
	cb.save(doc)
	return cb
}

// UnversionedPage adds a page holding its own content.
func (cb *CollectionBuilder) UnversionedPage(path, content string) *CollectionBuilder {
	cb.t.Helper()
	doc := model.NewDocument(cb.PageRef(path))
	doc.Title = path[strings.LastIndex(path, "/")+1:]
	doc.Syntax = richtext.MarkdownSyntaxID
	doc.Content = content
	doc.AddObject(model.ClassBookPage).SetBool(model.PropUnversioned, true)
	cb.save(doc)
	return cb
}

// ContentOption customizes a versioned content fork.
type ContentOption func(*model.Document)

// WithStatus sets the page status record.
func WithStatus(status model.PageStatus) ContentOption {
	return func(d *model.Document) {
		d.EnsureObject(model.ClassPageStatus).Set(model.PropStatus, string(status))
	}
}

// WithVariants declares variant membership by full variant reference.
func WithVariants(refs ...model.DocumentRef) ContentOption {
	return func(d *model.Document) {
		values := make([]string, len(refs))
		for i, r := range refs {
			values[i] = r.String()
		}
		d.EnsureObject(model.ClassVariantsList).SetList(model.PropVariantsList, values)
	}
}

// Deleted adds the deletion marker.
func Deleted() ContentOption {
	return func(d *model.Document) { d.AddObject(model.ClassDeletedContent) }
}

// WithTitle overrides the fork's title.
func WithTitle(title string) ContentOption {
	return func(d *model.Document) { d.Title = title }
}

// Content adds the fork of page path for version.
func (cb *CollectionBuilder) Content(path, version, content string, opts ...ContentOption) *CollectionBuilder {
	cb.t.Helper()
	doc := model.NewDocument(cb.ContentRef(path, version))
	doc.Title = path[strings.LastIndex(path, "/")+1:]
	doc.Syntax = richtext.MarkdownSyntaxID
	doc.Content = content
	doc.Hidden = true
	doc.AddObject(model.ClassVersionedContent)
	for _, opt := range opts {
		opt(doc)
	}
	cb.save(doc)
	return cb
}

// Modify applies fn to an existing document and saves it.
func (cb *CollectionBuilder) Modify(ref model.DocumentRef, fn func(*model.Document)) *CollectionBuilder {
	cb.t.Helper()
	doc, err := cb.store.Get(cb.ctx, ref)
	if err != nil {
		cb.t.Fatalf("get %s: %v", ref, err)
	}
	fn(doc)
	cb.save(doc)
	return cb
}

// UseLibrary configures, on a book version, which library version it uses.
func (cb *CollectionBuilder) UseLibrary(version string, library, libraryVersion model.DocumentRef) *CollectionBuilder {
	cb.t.Helper()
	return cb.Modify(cb.VersionRef(version), func(d *model.Document) {
		obj := d.AddObject(model.ClassLibraryReference)
		obj.Set(model.PropLibrary, library.String())
		obj.Set(model.PropLibraryVersion, libraryVersion.String())
	})
}

// Published records that version[-variant] of this collection was published into space.
func (cb *CollectionBuilder) Published(id string, space model.SpaceRef) *CollectionBuilder {
	cb.t.Helper()
	return cb.Modify(cb.Ref(), func(d *model.Document) {
		obj := d.AddObject(model.ClassPublication)
		obj.Set(model.PropPublicationID, id)
		obj.Set(model.PropPublicationSource, cb.Ref().String())
		obj.Set(model.PropPublicationPublishedSpace, space.Home().String())
	})
}

func (cb *CollectionBuilder) save(doc *model.Document) {
	cb.t.Helper()
	if err := cb.store.Save(cb.ctx, doc, "test fixture"); err != nil {
		cb.t.Fatalf("save %s: %v", doc.Ref, err)
	}
}
