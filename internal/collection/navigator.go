// Package collection finds the book or library owning a document and navigates
// a collection's versions, variants and languages.
package collection

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// Navigator answers structural questions about collections stored in a repository.
type Navigator struct {
	store  repository.Store
	logger *slog.Logger

	cache *docCache
}

type docCache struct {
	mu   sync.Mutex
	docs map[string]*model.Document // nil value = known missing
}

// NewNavigator creates a Navigator reading from store.
func NewNavigator(store repository.Store, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{store: store, logger: logger}
}

// Cached returns a Navigator that memoizes document reads. Use it for the
// duration of one run over content that the run does not modify.
func (n *Navigator) Cached() *Navigator {
	return &Navigator{
		store:  n.store,
		logger: n.logger,
		cache:  &docCache{docs: make(map[string]*model.Document)},
	}
}

// Store returns the underlying repository.
func (n *Navigator) Store() repository.Store { return n.store }

// Logger returns the navigator's logger.
func (n *Navigator) Logger() *slog.Logger { return n.logger }

// Document returns the document at ref, or nil when it doesn't exist.
func (n *Navigator) Document(ctx context.Context, ref model.DocumentRef) (*model.Document, error) {
	if ref.IsZero() {
		return nil, nil
	}
	key := ref.String()
	if n.cache != nil {
		n.cache.mu.Lock()
		doc, ok := n.cache.docs[key]
		n.cache.mu.Unlock()
		if ok {
			return doc, nil
		}
	}
	doc, err := n.store.Get(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		doc, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if n.cache != nil {
		n.cache.mu.Lock()
		n.cache.docs[key] = doc
		n.cache.mu.Unlock()
	}
	return doc, nil
}

// Exists reports whether a document is stored at ref.
func (n *Navigator) Exists(ctx context.Context, ref model.DocumentRef) (bool, error) {
	doc, err := n.Document(ctx, ref)
	return doc != nil, err
}

// Kind returns the roles of the document at ref; missing documents have no kind.
func (n *Navigator) Kind(ctx context.Context, ref model.DocumentRef) (model.Kind, error) {
	doc, err := n.Document(ctx, ref)
	if err != nil {
		return 0, err
	}
	return model.KindOf(doc), nil
}

// Locate returns the collection root owning ref. The document itself counts when it is a
// book, a library or a published copy; then its space's home is tested for a book or
// library; then each enclosing space's home is tested like the document itself.
// Each space is visited once, so the walk is bounded by the reference depth.
func (n *Navigator) Locate(ctx context.Context, ref model.DocumentRef) (model.DocumentRef, bool, error) {
	if ref.IsZero() {
		return model.DocumentRef{}, false, nil
	}
	const self = model.KindBook | model.KindLibrary | model.KindPublished
	const parent = model.KindBook | model.KindLibrary

	k, err := n.Kind(ctx, ref)
	if err != nil {
		return model.DocumentRef{}, false, err
	}
	if k.Any(self) {
		return ref, true, nil
	}
	if home := ref.Space.Home(); !home.Equal(ref) {
		if k, err = n.Kind(ctx, home); err != nil {
			return model.DocumentRef{}, false, err
		}
		if k.Any(parent) {
			return home, true, nil
		}
	}
	for space := ref.Space.Parent(); space != nil; space = space.Parent() {
		home := space.Home()
		if k, err = n.Kind(ctx, home); err != nil {
			return model.DocumentRef{}, false, err
		}
		if k.Any(self) {
			return home, true, nil
		}
	}
	return model.DocumentRef{}, false, nil
}

// VersionName is the name a version is known by: the document name, or the space
// name for non-terminal version pages.
func VersionName(version model.DocumentRef) string {
	return version.PageName()
}

// ContentRef is the versioned content fork of page for version: a sibling document
// named after the version.
func ContentRef(page, version model.DocumentRef) model.DocumentRef {
	return page.Sibling(VersionName(version))
}

// PageOf returns the page owning a versioned content fork.
func PageOf(content model.DocumentRef) model.DocumentRef {
	return content.Space.Home()
}

// Versions lists the version documents of a collection.
func (n *Navigator) Versions(ctx context.Context, collection model.DocumentRef) ([]model.DocumentRef, error) {
	return n.store.Query(ctx, repository.Query{Under: collection.Space, Class: model.ClassVersion})
}

// Variants lists the variant documents of a collection.
func (n *Navigator) Variants(ctx context.Context, collection model.DocumentRef) ([]model.DocumentRef, error) {
	return n.store.Query(ctx, repository.Query{Under: collection.Space, Class: model.ClassVariant})
}

// VersionRef finds a collection's version by name, terminal form first.
func (n *Navigator) VersionRef(ctx context.Context, collection model.DocumentRef, name string) (model.DocumentRef, bool, error) {
	return n.namedRecord(ctx, collection, model.SpaceVersions, name, model.KindVersion)
}

// VariantRef finds a collection's variant by name, terminal form first.
func (n *Navigator) VariantRef(ctx context.Context, collection model.DocumentRef, name string) (model.DocumentRef, bool, error) {
	return n.namedRecord(ctx, collection, model.SpaceVariants, name, model.KindVariant)
}

func (n *Navigator) namedRecord(ctx context.Context, collection model.DocumentRef, location, name string, kind model.Kind) (model.DocumentRef, bool, error) {
	if collection.IsZero() || name == "" {
		return model.DocumentRef{}, false, nil
	}
	base := collection.Space.Child(location)
	for _, candidate := range []model.DocumentRef{base.Doc(name), base.Child(name).Home()} {
		k, err := n.Kind(ctx, candidate)
		if err != nil {
			return model.DocumentRef{}, false, err
		}
		if k.Has(kind) {
			return candidate, true, nil
		}
	}
	return model.DocumentRef{}, false, nil
}

// Title returns the document title, falling back to the page name.
func (n *Navigator) Title(ctx context.Context, ref model.DocumentRef) (string, error) {
	doc, err := n.Document(ctx, ref)
	if err != nil {
		return "", err
	}
	if doc != nil && doc.Title != "" {
		return doc.Title, nil
	}
	return ref.PageName(), nil
}

// ConfiguredLanguages returns the languages configured for a book, read from the
// multilingual record on the collection's Languages page.
func (n *Navigator) ConfiguredLanguages(ctx context.Context, book model.DocumentRef) ([]string, error) {
	k, err := n.Kind(ctx, book)
	if err != nil || !k.Has(model.KindBook) {
		return nil, err
	}
	doc, err := n.Document(ctx, book.Space.Child(model.SpaceLanguages).Home())
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Object(model.ClassMultilingual).List(model.PropSupportedLanguages), nil
}

// PageTree returns source followed by every page nested below source's space, sorted by reference.
func (n *Navigator) PageTree(ctx context.Context, source model.DocumentRef) ([]model.DocumentRef, error) {
	refs, err := n.store.Query(ctx, repository.Query{Under: source.Space, Class: model.ClassBookPage})
	if err != nil {
		return nil, err
	}
	out := make([]model.DocumentRef, 0, len(refs)+1)
	out = append(out, source)
	for _, r := range refs {
		if !r.Equal(source) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ResolveList parses a list of references relative to base, dropping and logging malformed entries.
func (n *Navigator) ResolveList(values []string, base model.DocumentRef) []model.DocumentRef {
	out := make([]model.DocumentRef, 0, len(values))
	for _, v := range values {
		ref, err := model.ParseDocumentRef(v, base)
		if err != nil {
			n.logger.Warn("Ignoring malformed reference", logfields.Page(base.String()), slog.String("value", v), logfields.Error(err))
			continue
		}
		if !slices.ContainsFunc(out, ref.Equal) {
			out = append(out, ref)
		}
	}
	return out
}

// VariantMatches reports whether value names variant: either a reference resolving to
// variant relative to base, or the bare variant name.
func VariantMatches(value string, base, variant model.DocumentRef) bool {
	value = strings.TrimSpace(value)
	if value == "" || variant.IsZero() {
		return false
	}
	if ref, err := model.ParseDocumentRef(value, base); err == nil && ref.Equal(variant) {
		return true
	}
	return !strings.Contains(value, ".") && value == VersionName(variant)
}
