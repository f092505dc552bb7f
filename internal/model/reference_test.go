package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRefRoundTrip(t *testing.T) {
	cases := []string{
		"Book.WebHome",
		"Book.Content.Page.v1",
		`My\.Space.Page`,
		`A\\B.WebHome`,
	}
	for _, in := range cases {
		ref, err := ParseDocumentRef(in, DocumentRef{})
		require.NoError(t, err, in)
		assert.Equal(t, in, ref.String())
	}
}

func TestParseDocumentRefEscapes(t *testing.T) {
	ref, err := ParseDocumentRef(`My\.Space.Page`, DocumentRef{})
	require.NoError(t, err)
	assert.Equal(t, SpaceRef{"My.Space"}, ref.Space)
	assert.Equal(t, "Page", ref.Name)
}

func TestParseDocumentRefRelative(t *testing.T) {
	base := MustDocumentRef("Book.Chapter.WebHome")

	ref, err := ParseDocumentRef("Other", base)
	require.NoError(t, err)
	assert.Equal(t, "Book.Chapter.Other", ref.String())

	ref, err = ParseDocumentRef("Lib.Page.WebHome", base)
	require.NoError(t, err)
	assert.Equal(t, "Lib.Page.WebHome", ref.String())

	_, err = ParseDocumentRef("Other", DocumentRef{})
	require.Error(t, err)

	_, err = ParseDocumentRef("A..B", base)
	require.Error(t, err)
}

func TestParsePageRef(t *testing.T) {
	base := MustDocumentRef("Book.Chapter.WebHome")

	ref, err := ParsePageRef("Book/Intro", base)
	require.NoError(t, err)
	assert.Equal(t, "Book.Intro.WebHome", ref.String())

	ref, err = ParsePageRef("Sibling", base)
	require.NoError(t, err)
	assert.Equal(t, "Book.Sibling.WebHome", ref.String())

	terminal := MustDocumentRef("Book.Chapter.Leaf")
	ref, err = ParsePageRef("Next", terminal)
	require.NoError(t, err)
	assert.Equal(t, "Book.Chapter.Next.WebHome", ref.String())
}

func TestParseAttachmentRef(t *testing.T) {
	base := MustDocumentRef("Book.Chapter.WebHome")

	att, err := ParseAttachmentRef("image.png", base)
	require.NoError(t, err)
	assert.Equal(t, "Book.Chapter.WebHome@image.png", att.String())

	att, err = ParseAttachmentRef("Lib.Page.WebHome@logo.svg", base)
	require.NoError(t, err)
	assert.Equal(t, "Lib.Page.WebHome", att.Doc.String())
	assert.Equal(t, "logo.svg", att.Name)

	att, err = ParseAttachmentRef("Other@a.txt", base)
	require.NoError(t, err)
	assert.Equal(t, "Book.Chapter.Other@a.txt", att.String())

	_, err = ParseAttachmentRef("Page@", base)
	require.Error(t, err)
}

func TestParsePageAttachmentRef(t *testing.T) {
	base := MustDocumentRef("Book.Chapter.WebHome")
	att, err := ParsePageAttachmentRef("Book/Other/pic.png", base)
	require.NoError(t, err)
	assert.Equal(t, "Book.Other.WebHome@pic.png", att.String())
}

func TestReplaceParent(t *testing.T) {
	ref := MustDocumentRef("Books.Guide.Content.Page.WebHome")

	got := ReplaceParent(ref, SpaceRef{"Books", "Guide"}, SpaceRef{"Published", "Guide-v2"})
	assert.Equal(t, "Published.Guide-v2.Content.Page.WebHome", got.String())

	unchanged := ReplaceParent(ref, SpaceRef{"Other"}, SpaceRef{"X"})
	assert.True(t, unchanged.Equal(ref))

	// Prefix matching is by whole names.
	partial := ReplaceParent(ref, SpaceRef{"Book"}, SpaceRef{"X"})
	assert.True(t, partial.Equal(ref))
}

func TestSpaceRefDerivationsDoNotAlias(t *testing.T) {
	base := make(SpaceRef, 2, 8)
	base[0], base[1] = "A", "B"
	c1 := base.Child("C")
	c2 := base.Child("D")
	if c1.Last() != "C" || c2.Last() != "D" {
		t.Fatalf("children alias each other: %v %v", c1, c2)
	}
	assert.Equal(t, SpaceRef{"A"}, base.Parent())
	assert.Nil(t, SpaceRef{"A"}.Parent())
	assert.Len(t, SpaceRef{"A", "B", "C"}.Ancestors(), 3)
	assert.Equal(t, SpaceRef{"A", "B", "C"}, SpaceRef{"A", "B", "C"}.Ancestors()[0])
}

func TestPageName(t *testing.T) {
	assert.Equal(t, "Chapter", MustDocumentRef("Book.Chapter.WebHome").PageName())
	assert.Equal(t, "v1", MustDocumentRef("Book.Chapter.v1").PageName())
}
