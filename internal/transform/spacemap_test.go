package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/bookversions/internal/library"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

func TestSpaceMapsSubtreeSource(t *testing.T) {
	// Publishing Books.Guide.Part into Pub.Out.Sub places the collection root at Pub.Out.
	maps := NewSpaceMaps(Run{
		Source:     model.MustDocumentRef("Books.Guide.Part.WebHome"),
		Collection: model.MustDocumentRef("Books.Guide.WebHome"),
		Target:     model.SpaceRef{"Pub", "Out", "Sub"},
	})

	tests := map[string]string{
		"Books.Guide.Part.X.WebHome": "Pub.Out.Sub.X.WebHome",
		"Books.Guide.Part.WebHome":   "Pub.Out.Sub.WebHome",
		"Books.Guide.Other.WebHome":  "Pub.Out.Other.WebHome",
		"Books.Guide.WebHome":        "Pub.Out.WebHome",
		"Books.Elsewhere.WebHome":    "Books.Elsewhere.WebHome",
	}
	for in, want := range tests {
		assert.Equal(t, want, maps.Equivalent(model.MustDocumentRef(in)).String(), in)
	}
}

func TestSpaceMapsOutermostMatchWins(t *testing.T) {
	maps := NewSpaceMaps(Run{
		Source:     model.MustDocumentRef("Books.Guide.WebHome"),
		Collection: model.MustDocumentRef("Books.Guide.WebHome"),
		Target:     model.SpaceRef{"Pub", "Guide"},
		Libraries: []library.Binding{
			// A library nested in the book's space is shadowed by the book mapping.
			{Library: model.MustDocumentRef("Books.Guide.Lib.WebHome"), PublishedSpace: model.MustDocumentRef("Pub.Lib.WebHome"), Status: library.StatusPublished},
			{Library: model.MustDocumentRef("Libs.Gone.WebHome"), Status: library.StatusNotPublished},
		},
	})
	assert.Empty(t, maps.Collection)
	assert.Len(t, maps.Spaces, 2)
	assert.Equal(t, "Pub.Guide.Lib.A.WebHome", maps.Equivalent(model.MustDocumentRef("Books.Guide.Lib.A.WebHome")).String())
	assert.Equal(t, "Libs.Gone.A.WebHome", maps.Equivalent(model.MustDocumentRef("Libs.Gone.A.WebHome")).String())
}
