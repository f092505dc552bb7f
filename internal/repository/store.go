// Package repository provides the hierarchical document store the publication pipeline runs against.
package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

var (
	// ErrNotFound is returned when a document doesn't exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Rename when the target is taken.
	ErrAlreadyExists = errors.New("document already exists")
)

// Store is a hierarchical document repository. Every write is atomic per document.
type Store interface {
	// Get returns a copy of the document at ref.
	// Returns ErrNotFound if the document doesn't exist.
	Get(ctx context.Context, ref model.DocumentRef) (*model.Document, error)

	// Exists checks whether a document is stored at ref.
	Exists(ctx context.Context, ref model.DocumentRef) (bool, error)

	// Save creates or replaces doc and records a revision with comment.
	Save(ctx context.Context, doc *model.Document, comment string) error

	// Delete removes the document at ref.
	// Returns ErrNotFound if the document doesn't exist.
	Delete(ctx context.Context, ref model.DocumentRef) error

	// Rename moves a document. Returns ErrAlreadyExists if to is taken.
	Rename(ctx context.Context, from, to model.DocumentRef) error

	// Query returns matching references sorted by serialized reference.
	Query(ctx context.Context, q Query) ([]model.DocumentRef, error)

	// History returns the revisions recorded for ref, oldest first.
	History(ctx context.Context, ref model.DocumentRef) ([]Revision, error)

	// Close releases any resources held by the store.
	Close() error
}

// Query filters documents. Zero fields match everything.
type Query struct {
	// Under restricts results to documents whose space is Under or nested inside it.
	Under model.SpaceRef
	// Class restricts results to documents carrying at least one record of the class.
	Class string
	// Name restricts results to documents with this name.
	Name string
}

// Matches reports whether doc satisfies q.
func (q Query) Matches(doc *model.Document) bool {
	if !q.Under.IsZero() && !doc.Ref.Space.HasPrefix(q.Under) {
		return false
	}
	if q.Name != "" && doc.Ref.Name != q.Name {
		return false
	}
	if q.Class != "" && !doc.HasObject(q.Class) {
		return false
	}
	return true
}

// Revision is one recorded save or delete.
type Revision struct {
	Author  string    `json:"author,omitempty" yaml:"author,omitempty"`
	Comment string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	Time    time.Time `json:"time" yaml:"time"`
	Deleted bool      `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

type authorKey struct{}

// WithAuthor attaches the acting user to ctx; stores stamp it on saved documents and revisions.
func WithAuthor(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, authorKey{}, user)
}

// AuthorFrom returns the acting user attached by WithAuthor.
func AuthorFrom(ctx context.Context) string {
	user, _ := ctx.Value(authorKey{}).(string)
	return user
}

// Open builds the store selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.StoreDriverMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func validateRef(ref model.DocumentRef) error {
	if ref.Space.IsZero() || ref.Name == "" {
		return fmt.Errorf("invalid document reference %q", ref.String())
	}
	return nil
}

func sortRefs(refs []model.DocumentRef) {
	slices.SortFunc(refs, func(a, b model.DocumentRef) int {
		return strings.Compare(a.String(), b.String())
	})
}
