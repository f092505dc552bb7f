package publication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
)

func markdownDoc(ref, content string) *model.Document {
	doc := model.NewDocument(model.MustDocumentRef(ref))
	doc.Syntax = richtext.MarkdownSyntaxID
	doc.Content = content
	return doc
}

func TestMergeTranslation(t *testing.T) {
	p := New(repository.NewMemoryStore())
	de := `{{contentTranslation language="de" status="translated"}}Hallo{{/contentTranslation}}`

	t.Run("nested block without published copy", func(t *testing.T) {
		doc := markdownDoc("Books.Guide.Intro.v1",
			`intro {{box}}{{contentTranslation language="de" status="outdated"}}alt{{/contentTranslation}}`+de+`{{/box}}`)
		require.NoError(t, p.mergeTranslation(doc, nil, "de"))
		assert.Equal(t, de, doc.Content)
	})

	t.Run("no translated block keeps content", func(t *testing.T) {
		in := `{{contentTranslation language="de" status="inProgress"}}Hal{{/contentTranslation}}`
		doc := markdownDoc("Books.Guide.Intro.v1", in)
		require.NoError(t, p.mergeTranslation(doc, nil, "de"))
		assert.Equal(t, in, doc.Content)
	})

	t.Run("replaces the published block", func(t *testing.T) {
		published := markdownDoc("Pub.Guide.Intro.WebHome",
			`{{contentTranslation language="en" status="translated"}}Hi{{/contentTranslation}}`+
				`{{contentTranslation language="de-DE" status="translated"}}Alt{{/contentTranslation}}`)
		doc := markdownDoc("Books.Guide.Intro.v1", `{{contentTranslation language="de-de" status="translated"}}Neu{{/contentTranslation}}`)
		require.NoError(t, p.mergeTranslation(doc, published, "de-DE"))
		assert.Equal(t, `{{contentTranslation language="en" status="translated"}}Hi{{/contentTranslation}}`+
			`{{contentTranslation language="de-de" status="translated"}}Neu{{/contentTranslation}}`, doc.Content)
	})
}
