package translation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
)

func page(content string) *model.Document {
	doc := model.NewDocument(model.MustDocumentRef("Books.Guide.Intro.v1"))
	doc.Title = "Intro"
	doc.Syntax = richtext.MarkdownSyntaxID
	doc.Content = content
	return doc
}

func TestLanguageData(t *testing.T) {
	doc := page(`{{contentTranslation language="en" title="Intro" status="Translated" isDefault="true"}}Hello{{/contentTranslation}}
{{contentTranslation language="fr" title="Introduction" status="translated"}}Bonjour{{/contentTranslation}}
{{contentTranslation language="fr" title="Intro FR" status="outdated"}}Salut{{/contentTranslation}}
{{variant name="Pro"}}{{contentTranslation language="de" status="inProgress"}}Hallo{{/contentTranslation}}{{/variant}}
{{contentTranslation title="no language"}}x{{/contentTranslation}}`)

	data, err := LanguageData(doc, richtext.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "en", "fr"}, data.Languages())

	assert.Equal(t, Record{Title: "Intro", Status: Translated, IsDefault: true, HasTranslated: true}, data["en"])

	fr := data["fr"]
	assert.Equal(t, "Intro FR", fr.Title, "later block wins")
	assert.Equal(t, Outdated, fr.Status)
	assert.True(t, fr.HasTranslated, "translated state is sticky")

	assert.Equal(t, InProgress, data["de"].Status)
	assert.False(t, data["de"].HasTranslated)

	lang, ok := data.Default()
	require.True(t, ok)
	assert.Equal(t, "en", lang)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, Translated, ParseStatus("TRANSLATED"))
	assert.Equal(t, Outdated, ParseStatus(" outdated "))
	assert.Equal(t, InProgress, ParseStatus("inProgress"))
	assert.Equal(t, NotTranslated, ParseStatus(""))
	assert.Equal(t, NotTranslated, ParseStatus("bogus"))
}

func TestLookupCanonical(t *testing.T) {
	data := Data{"pt-br": {Title: "Olá"}}
	rec, ok := data.Lookup("pt-BR")
	require.True(t, ok)
	assert.Equal(t, "Olá", rec.Title)

	_, ok = data.Lookup("fr")
	assert.False(t, ok)
}

func TestSetLanguageData(t *testing.T) {
	doc := page("")
	stale := doc.AddObject(model.ClassPageTranslation)
	stale.Set(model.PropTranslationLanguage, "de")
	existing := doc.AddObject(model.ClassPageTranslation)
	existing.Set(model.PropTranslationLanguage, "en")
	existing.Set(model.PropTranslationTitle, "Old")

	err := SetLanguageData(doc, Data{
		"EN": {Title: "Intro", Status: Translated, IsDefault: true},
		"fr": {Title: "Introduction", Status: Outdated},
	})
	require.NoError(t, err)

	records := doc.ObjectsOf(model.ClassPageTranslation)
	require.Len(t, records, 2)
	assert.Equal(t, "en", records[0].String(model.PropTranslationLanguage))
	assert.Equal(t, "Intro", records[0].String(model.PropTranslationTitle))
	assert.Equal(t, "1", records[0].String(model.PropTranslationIsDefault))
	assert.Equal(t, "fr", records[1].String(model.PropTranslationLanguage))
	assert.Equal(t, "0", records[1].String(model.PropTranslationIsDefault))

	got := Records(doc)
	assert.Equal(t, Outdated, got["fr"].Status)
	assert.True(t, got["en"].IsDefault)
}

func TestSetLanguageDataEnforcesUniqueness(t *testing.T) {
	doc := page("")

	err := SetLanguageData(doc, Data{"en": {}, "EN": {}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	err = SetLanguageData(doc, Data{"en": {IsDefault: true}, "fr": {IsDefault: true}})
	require.Error(t, err)

	err = SetLanguageData(doc, Data{"not a language!": {}})
	require.Error(t, err)

	assert.Empty(t, doc.ObjectsOf(model.ClassPageTranslation), "rejected data leaves the document untouched")
}

func TestTranslatedTitle(t *testing.T) {
	doc := page(`{{contentTranslation language="en" title="Intro" isDefault="true"}}a{{/contentTranslation}}{{contentTranslation language="fr" title="Introduction"}}b{{/contentTranslation}}`)
	reg := richtext.DefaultRegistry()

	title, err := TranslatedTitle(doc, reg, "fr")
	require.NoError(t, err)
	assert.Equal(t, "Introduction", title)

	title, err = TranslatedTitle(doc, reg, "")
	require.NoError(t, err)
	assert.Equal(t, "Intro", title)

	title, err = TranslatedTitle(doc, reg, "de")
	require.NoError(t, err)
	assert.Equal(t, "Intro", title, "falls back to the document title")

	lang, err := DefaultLanguage(doc, reg)
	require.NoError(t, err)
	assert.Equal(t, "en", lang)
}
