package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/library"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
	"git.home.luguber.info/inful/bookversions/internal/testutil"
	"git.home.luguber.info/inful/bookversions/internal/versioning"
)

type engineFixture struct {
	book   *testutil.CollectionBuilder
	common *testutil.CollectionBuilder
	nav    *collection.Navigator
	engine *Engine
}

// Books.Guide has v1 and v2 (inheriting v1) and a Pro variant. v1 uses the Common
// library at Lv2, which was published to Pub.Common.
func newEngineFixture(t *testing.T, extra ...Descriptor) *engineFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	common := testutil.NewLibrary(t, store, "Libs.Common", "Common").
		Version("Lv1", "").
		Version("Lv2", "Lv1").
		UnversionedPage("Intro", "library intro")
	common.Published("Lv2", model.SpaceRef{"Pub", "Common"})

	book := testutil.NewBook(t, store, "Books.Guide", "Guide").
		Version("v1", "").
		Version("v2", "v1").
		Variant("Pro", true).
		Variant("Basic", false).
		Page("Intro").
		Content("Intro", "v1", "intro").
		UnversionedPage("Notes", "notes").
		UseLibrary("v1", common.Ref(), common.VersionRef("Lv2"))

	nav := collection.NewNavigator(store, nil)
	return &engineFixture{
		book:   book,
		common: common,
		nav:    nav,
		engine: NewEngine(nav, nil, NewRegistry(extra...)),
	}
}

func (f *engineFixture) scope(t *testing.T, version, variant string) *Scope {
	t.Helper()
	libs := library.NewResolver(f.nav, versioning.NewResolver(f.nav))
	table, err := libs.UsedPublishedWithInheritance(t.Context(), f.book.Ref(), f.book.VersionRef(version))
	require.NoError(t, err)

	s := &Scope{
		Maps: NewSpaceMaps(Run{
			Source:     f.book.Ref(),
			Collection: f.book.Ref(),
			Target:     model.SpaceRef{"Pub", "Guide"},
			Libraries:  table.Published(version),
		}),
		VersionName: version,
		Libraries:   table,
	}
	if variant != "" {
		s.Variant = f.book.VariantRef(variant)
	}
	return s
}

func (f *engineFixture) run(t *testing.T, content string, origin model.DocumentRef, scope *Scope) (string, bool) {
	t.Helper()
	doc := model.NewDocument(origin)
	doc.Syntax = richtext.MarkdownSyntaxID
	doc.Content = content
	changed, err := f.engine.TransformDocument(t.Context(), doc, origin, scope)
	require.NoError(t, err)
	return doc.Content, changed
}

func TestTransformLinks(t *testing.T) {
	f := newEngineFixture(t)
	scope := f.scope(t, "v1", "")
	origin := f.book.ContentRef("Intro", "v1")

	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{"absolute link", "[x](Books.Guide.Other.WebHome)", "[x](doc:Pub.Guide.Other.WebHome)", true},
		{"relative link", "see [x](Other) here", "see [x](doc:Pub.Guide.Intro.Other) here", true},
		{"link to content fork", "[x](doc:Books.Guide.Intro.v1)", "[x](doc:Pub.Guide.Intro.WebHome)", true},
		{"page link", "[x](page:Books/Guide/Setup)", "[x](doc:Pub.Guide.Setup.WebHome)", true},
		{"outside any mapping", "[x](Elsewhere.Page)", "[x](Elsewhere.Page)", false},
		{"url", "[x](https://example.org/a.b)", "[x](https://example.org/a.b)", false},
		{"library link", "[x](Libs.Common.Intro.WebHome)", "[x](doc:Pub.Common.Intro.WebHome)", true},
		{"image attachment", "![a](Books.Guide.Other.WebHome@logo.png)", "![a](attach:Pub.Guide.Other.WebHome@logo.png)", true},
		{"attachment link", "[f](attach:Books.Guide.Other.WebHome@a.pdf)", "[f](attach:Pub.Guide.Other.WebHome@a.pdf)", true},
		{"image url", "![a](https://example.org/x.png)", "![a](https://example.org/x.png)", false},
		{"image inside link label",
			"[![logo](attach:Books.Guide.Other.WebHome@logo.png)](doc:Books.Guide.Other.WebHome)",
			"[![logo](attach:Pub.Guide.Other.WebHome@logo.png)](doc:Pub.Guide.Other.WebHome)", true},
		{"image inside external link", "[![logo](Books.Guide.Other.WebHome@logo.png)](https://example.org)",
			"[![logo](attach:Pub.Guide.Other.WebHome@logo.png)](https://example.org)", true},
		{"reference definition", "[x][o]\n\n[o]: Books.Guide.Other.WebHome\n",
			"[x][o]\n\n[o]: doc:Pub.Guide.Other.WebHome\n", true},
		{"reference definition with title", "[x][o]\n\n  [o]: <Books.Guide.Other.WebHome> \"Other\"",
			"[x][o]\n\n  [o]: <doc:Pub.Guide.Other.WebHome> \"Other\"", true},
		{"angle bracket destination", "[x](<Books.Guide.Other.WebHome>)", "[x](<doc:Pub.Guide.Other.WebHome>)", true},
		{"titled link", `[x](Books.Guide.Other.WebHome "Other page")`, `[x](doc:Pub.Guide.Other.WebHome "Other page")`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := f.run(t, tt.in, origin, scope)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestTransformLinksIsStable(t *testing.T) {
	f := newEngineFixture(t)
	scope := f.scope(t, "v1", "")
	origin := f.book.ContentRef("Intro", "v1")

	in := "[![logo](attach:Books.Guide.Other.WebHome@logo.png)](doc:Books.Guide.Other.WebHome)\n\n" +
		"See [setup][s].\n\n[s]: Books.Guide.Setup.WebHome\n"
	once, changed := f.run(t, in, origin, scope)
	require.True(t, changed)
	assert.NotContains(t, once, "Books.Guide")

	twice, changed := f.run(t, once, origin, scope)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
}

func TestTransformVariants(t *testing.T) {
	f := newEngineFixture(t)
	origin := f.book.ContentRef("Intro", "v1")
	in := "a\n{{variant name=\"Pro\"}}pro [x](Other){{/variant}}\n{{variant name=\"Basic\"}}basic{{/variant}}\nb"

	out, changed := f.run(t, in, origin, f.scope(t, "v1", "Pro"))
	assert.True(t, changed)
	assert.Equal(t, "a\n{{inline}}pro [x](doc:Pub.Guide.Intro.Other){{/inline}}\n\nb", out)

	out, changed = f.run(t, in, origin, f.scope(t, "v1", ""))
	assert.True(t, changed)
	assert.Equal(t, "a\n\n\nb", out)

	// A full variant reference in the list selects the block too.
	in = `{{variant name="Basic, Books.Guide.Variants.Pro"}}both{{/variant}}`
	out, _ = f.run(t, in, origin, f.scope(t, "v1", "Pro"))
	assert.Equal(t, "{{inline}}both{{/inline}}", out)

	// Selected but empty blocks never survive.
	out, changed = f.run(t, `x{{variant name="Pro"/}}`, origin, f.scope(t, "v1", "Pro"))
	assert.True(t, changed)
	assert.Equal(t, "x", out)
}

func TestTransformTranslations(t *testing.T) {
	f := newEngineFixture(t)
	in := `{{contentTranslation language="en" status="translated"}}en{{/contentTranslation}}` +
		`{{contentTranslation language="fr" status="outdated"}}fr{{/contentTranslation}}` +
		`{{contentTranslation language="de" status="inProgress"}}de{{/contentTranslation}}` +
		`{{contentTranslation language="it"}}it{{/contentTranslation}}`

	out, changed := f.run(t, in, f.book.ContentRef("Intro", "v1"), f.scope(t, "v1", ""))
	assert.True(t, changed)
	assert.Equal(t, `{{contentTranslation language="en" status="translated"}}en{{/contentTranslation}}`+
		`{{contentTranslation language="it"}}it{{/contentTranslation}}`, out)
}

func TestTransformLibraryInclusion(t *testing.T) {
	f := newEngineFixture(t)
	in := `{{includeLibrary keyReference="Libs.Common.Intro.WebHome"/}}`

	// Content inherited from v1 uses v1's library configuration, even in a v2 run.
	out, changed := f.run(t, in, f.book.ContentRef("Intro", "v1"), f.scope(t, "v2", ""))
	assert.True(t, changed)
	assert.Equal(t, `{{include reference="Pub.Common.Intro.WebHome"/}}`, out)

	// An unversioned page uses the selected version, which has no library configured.
	out, changed = f.run(t, in, f.book.PageRef("Notes"), f.scope(t, "v2", ""))
	assert.False(t, changed)
	assert.Equal(t, in, out)

	out, changed = f.run(t, in, f.book.PageRef("Notes"), f.scope(t, "v1", ""))
	assert.True(t, changed)
	assert.Equal(t, `{{include reference="Pub.Common.Intro.WebHome"/}}`, out)
}

func TestTransformMacroParameters(t *testing.T) {
	f := newEngineFixture(t, Descriptor{ID: "gallery", Params: map[string]ParamType{
		"image": ParamAttachment,
		"page":  ParamPage,
	}})
	origin := f.book.ContentRef("Intro", "v1")
	scope := f.scope(t, "v1", "")

	out, changed := f.run(t, `{{include reference="Books.Guide.Other.WebHome"/}}`, origin, scope)
	assert.True(t, changed)
	assert.Equal(t, `{{include reference="Pub.Guide.Other.WebHome"/}}`, out)

	out, changed = f.run(t, `{{gallery image="Books.Guide.Other.WebHome@a.png" page="Books/Guide/Setup" title="t"/}}`, origin, scope)
	assert.True(t, changed)
	assert.Equal(t, `{{gallery image="Pub.Guide.Other.WebHome@a.png" page="Pub.Guide.Setup.WebHome" title="t"/}}`, out)

	// Opaque content is left alone.
	in := "{{code}}[x](Books.Guide.Other.WebHome){{/code}}"
	out, changed = f.run(t, in, origin, scope)
	assert.False(t, changed)
	assert.Equal(t, in, out)

	// Rich text content is transformed recursively.
	out, _ = f.run(t, "{{box}}[x](Books.Guide.Other.WebHome){{/box}}", origin, scope)
	assert.Equal(t, "{{box}}[x](doc:Pub.Guide.Other.WebHome){{/box}}", out)
}

func TestTransformDocumentTreeRoot(t *testing.T) {
	f := newEngineFixture(t)
	origin := f.book.ContentRef("Intro", "v1")
	scope := f.scope(t, "v1", "")

	tests := []struct {
		in   string
		want string
	}{
		{`{{documentTree root="document:Books.Guide.WebHome"/}}`, `{{documentTree root="document:Pub.Guide.WebHome"/}}`},
		{`{{documentTree root="space:Books.Guide.Part"/}}`, `{{documentTree root="document:Pub.Guide.Part.WebHome"/}}`},
		{`{{documentTree root="Books.Guide"/}}`, `{{documentTree root="Books.Guide"/}}`},
		{`{{documentTree/}}`, `{{documentTree/}}`},
	}
	for _, tt := range tests {
		out, _ := f.run(t, tt.in, origin, scope)
		assert.Equal(t, tt.want, out)
	}
}

func TestTransformIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	origin := f.book.ContentRef("Intro", "v1")
	scope := f.scope(t, "v1", "Pro")
	in := "# Intro\n[a](Other) ![i](logo.png)\n" +
		`{{variant name="Pro"}}{{include reference="Books.Guide.Other.WebHome"/}}{{/variant}}` + "\n" +
		`{{includeLibrary keyReference="Libs.Common.Intro.WebHome"/}}` + "\n" +
		`{{contentTranslation language="fr" status="outdated"}}fr{{/contentTranslation}}` + "\n" +
		"```\n[b](Other)\n```\n"

	once, changed := f.run(t, in, origin, scope)
	require.True(t, changed)
	twice, changed := f.run(t, once, origin, scope)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
	assert.Contains(t, once, "```\n[b](Other)\n```")
}

// A book using library L at Lv2, published to PubL, links X to Y inside the library.
func TestTransformLibraryLinkIntoPublishedSpace(t *testing.T) {
	store := repository.NewMemoryStore()
	lib := testutil.NewLibrary(t, store, "L", "L").
		Version("Lv1", "").
		Version("Lv2", "Lv1").
		UnversionedPage("X", "[y](L.Y.WebHome)")
	lib.Published("Lv2", model.SpaceRef{"PubL"})
	book := testutil.NewBook(t, store, "B", "B").
		Version("v1", "").
		Page("P").
		Content("P", "v1", "[x](L.X.WebHome)").
		UseLibrary("v1", lib.Ref(), lib.VersionRef("Lv2"))

	nav := collection.NewNavigator(store, nil)
	f := &engineFixture{book: book, common: lib, nav: nav, engine: NewEngine(nav, nil, nil)}
	scope := f.scope(t, "v1", "")

	out, changed := f.run(t, "[x](L.X.WebHome) [y](L.Y.WebHome)", book.ContentRef("P", "v1"), scope)
	assert.True(t, changed)
	assert.Equal(t, "[x](doc:PubL.X.WebHome) [y](doc:PubL.Y.WebHome)", out)
}
