package transform

import (
	"git.home.luguber.info/inful/bookversions/internal/library"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Mapping re-parents references under From onto To.
type Mapping struct {
	From model.SpaceRef
	To   model.SpaceRef
}

// SpaceMaps holds the two lookup tables of a run: the published source and library
// spaces, and the collection-relative fallback.
type SpaceMaps struct {
	Spaces     []Mapping
	Collection []Mapping
}

// Run describes where a publication copies from and to.
type Run struct {
	// Source is the publication source page. A content fork shares its page's space,
	// so either maps the same way.
	Source     model.DocumentRef
	Collection model.DocumentRef
	Target     model.SpaceRef
	// Libraries are the library bindings of the selected version.
	Libraries []library.Binding
}

// NewSpaceMaps builds the lookup tables for r.
func NewSpaceMaps(r Run) SpaceMaps {
	var m SpaceMaps
	source := r.Source.Space
	if !source.IsZero() && !r.Target.IsZero() {
		m.Spaces = append(m.Spaces, Mapping{From: source, To: r.Target})
	}
	if !r.Collection.IsZero() && !r.Collection.Equal(r.Source) {
		if to := collectionTarget(r.Source.Space, r.Target, r.Collection.Space); !to.IsZero() {
			m.Collection = append(m.Collection, Mapping{From: r.Collection.Space, To: to})
		}
	}
	for _, b := range r.Libraries {
		if b.Resolved() {
			m.Spaces = append(m.Spaces, Mapping{From: b.Library.Space, To: b.PublishedSpace.Space})
		}
	}
	return m
}

// collectionTarget is the published location of the collection root: the target
// climbed by one level per space between the source and the collection.
func collectionTarget(source, target, coll model.SpaceRef) model.SpaceRef {
	out := target
	for _, s := range source.Ancestors() {
		if s.Equal(coll) {
			break
		}
		out = out.Parent()
	}
	return out
}

// Equivalent re-parents ref by the first of its spaces, outermost first, found in the
// space table, then likewise in the collection table. References outside both tables
// are returned unchanged.
func (m SpaceMaps) Equivalent(ref model.DocumentRef) model.DocumentRef {
	if to, from, ok := match(ref.Space, m.Spaces); ok {
		return model.ReplaceParent(ref, from, to)
	}
	if to, from, ok := match(ref.Space, m.Collection); ok {
		return model.ReplaceParent(ref, from, to)
	}
	return ref
}

func match(space model.SpaceRef, table []Mapping) (to, from model.SpaceRef, ok bool) {
	for i := 1; i <= len(space); i++ {
		prefix := space[:i]
		for _, mp := range table {
			if mp.From.Equal(prefix) {
				return mp.To, mp.From, true
			}
		}
	}
	return nil, nil, false
}
