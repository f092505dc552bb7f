package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/model"
)

// MemoryStore is an in-memory Store. Documents are deep-copied on the way in and out.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]*model.Document
	revisions map[string][]Revision
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]*model.Document),
		revisions: make(map[string][]Revision),
		now:       time.Now,
	}
}

// Get returns a copy of the document at ref.
func (m *MemoryStore) Get(ctx context.Context, ref model.DocumentRef) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return doc.Clone(), nil
}

// Exists checks whether a document is stored at ref.
func (m *MemoryStore) Exists(ctx context.Context, ref model.DocumentRef) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[ref.String()]
	return ok, nil
}

// Save creates or replaces doc.
func (m *MemoryStore) Save(ctx context.Context, doc *model.Document, comment string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRef(doc.Ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := doc.Clone()
	stored.Updated = m.now().UTC()
	if author := AuthorFrom(ctx); author != "" {
		stored.Author = author
	}
	key := doc.Ref.String()
	m.docs[key] = stored
	m.revisions[key] = append(m.revisions[key], Revision{Author: stored.Author, Comment: comment, Time: stored.Updated})
	return nil
}

// Delete removes the document at ref.
func (m *MemoryStore) Delete(ctx context.Context, ref model.DocumentRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ref.String()
	if _, ok := m.docs[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	delete(m.docs, key)
	m.revisions[key] = append(m.revisions[key], Revision{Author: AuthorFrom(ctx), Time: m.now().UTC(), Deleted: true})
	return nil
}

// Rename moves a document and its revision history.
func (m *MemoryStore) Rename(ctx context.Context, from, to model.DocumentRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRef(to); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src, dst := from.String(), to.String()
	doc, ok := m.docs[src]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, from)
	}
	if _, taken := m.docs[dst]; taken {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, to)
	}
	moved := doc.Clone()
	moved.Ref = to
	moved.Updated = m.now().UTC()
	m.docs[dst] = moved
	delete(m.docs, src)
	m.revisions[dst] = append(m.revisions[src], Revision{
		Author:  AuthorFrom(ctx),
		Comment: "Renamed from " + src,
		Time:    moved.Updated,
	})
	delete(m.revisions, src)
	return nil
}

// Query returns matching references sorted by serialized reference.
func (m *MemoryStore) Query(ctx context.Context, q Query) ([]model.DocumentRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.DocumentRef
	for _, doc := range m.docs {
		if q.Matches(doc) {
			out = append(out, doc.Clone().Ref)
		}
	}
	sortRefs(out)
	return out, nil
}

// History returns the revisions recorded for ref.
func (m *MemoryStore) History(ctx context.Context, ref model.DocumentRef) ([]Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs := m.revisions[ref.String()]
	out := make([]Revision, len(revs))
	copy(out, revs)
	return out, nil
}

// Len returns the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
