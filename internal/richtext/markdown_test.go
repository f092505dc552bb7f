package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := MarkdownSyntax{}.Parse(src)
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, doc *Document) string {
	t.Helper()
	out, err := MarkdownSyntax{}.Render(doc)
	require.NoError(t, err)
	return out
}

func TestRoundTripUnmodified(t *testing.T) {
	inputs := []string{
		"",
		"plain text only\n",
		"See [the guide](doc:Books.Guide.WebHome) and ![logo](logo.png).\n",
		"{{include reference=\"Lib.Page.WebHome\"/}}\n",
		"{{variant name=\"Book.Variants.Pro\"}}\nPro only [link](Other)\n{{/variant}}\n",
		"{{box title=\"a \\\"quoted\\\" title\"}}{{box}}inner{{/box}}{{/box}}",
		"broken [link(no close\n{{notamacro\n[x]\n",
		"```\n[not a link](doc:X.Y)\n{{include reference=\"A.B\"/}}\n```\n",
		"inline `[code](doc:X)` stays\n",
		"[![badge](attach:b.svg)](url:https://example.org)\n",
		"[x][o]\n\n [o]: <Books.A.WebHome> 'title'\n",
		"[^1]: a footnote\n[x](<A.B> \"t\")\n",
	}
	for _, in := range inputs {
		assert.Equal(t, in, render(t, parse(t, in)), "input %q", in)
	}
}

func TestParseLinksAndImages(t *testing.T) {
	doc := parse(t, "A [guide](doc:Books.Guide.WebHome), [ext](https://x.org), [rel](Sibling) ![pic](pic.png)")
	var links []*Link
	var images []*Image
	for _, n := range doc.Children {
		switch v := n.(type) {
		case *Link:
			links = append(links, v)
		case *Image:
			images = append(images, v)
		}
	}
	require.Len(t, links, 3)
	require.Len(t, images, 1)

	assert.Equal(t, Resource{Type: ResourceDocument, Reference: "Books.Guide.WebHome", Typed: true}, links[0].Ref)
	assert.Equal(t, ResourceURL, links[1].Ref.Type)
	assert.Equal(t, Resource{Type: ResourceDocument, Reference: "Sibling"}, links[2].Ref)
	assert.Equal(t, Resource{Type: ResourceAttachment, Reference: "pic.png"}, images[0].Ref)
	assert.Equal(t, "pic", images[0].Alt)
}

func TestParseLinkLabelImages(t *testing.T) {
	doc := parse(t, "[![logo](attach:A.B@logo.png) text](doc:A.B)")
	require.Len(t, doc.Children, 1)
	link, ok := doc.Children[0].(*Link)
	require.True(t, ok)
	assert.Equal(t, "![logo](attach:A.B@logo.png) text", link.Label)
	require.Len(t, link.Children, 2)
	img, ok := link.Children[0].(*Image)
	require.True(t, ok)
	assert.Equal(t, Resource{Type: ResourceAttachment, Reference: "A.B@logo.png", Typed: true}, img.Ref)

	nodes := doc.Nodes()
	require.Len(t, nodes, 3)
	assert.Same(t, img, nodes[1])

	img.Ref = Resource{Type: ResourceAttachment, Reference: "C.D@logo.png", Typed: true}
	assert.Equal(t, "[![logo](attach:C.D@logo.png) text](doc:A.B)", render(t, doc))
}

func TestParseReferenceDefinitions(t *testing.T) {
	doc := parse(t, "[x][o] and [y][p]\n\n[o]: Books.A.WebHome\n[p]: <Books.B.WebHome> \"B\"\n\n    [q]: indented.code\n")
	var defs []*Definition
	for _, n := range doc.Children {
		if d, ok := n.(*Definition); ok {
			defs = append(defs, d)
		}
	}
	require.Len(t, defs, 2)
	assert.Equal(t, "o", defs[0].Label)
	assert.Equal(t, Resource{Type: ResourceDocument, Reference: "Books.A.WebHome"}, defs[0].Ref)
	assert.Equal(t, Resource{Type: ResourceDocument, Reference: "Books.B.WebHome"}, defs[1].Ref)

	defs[1].Ref = Resource{Type: ResourceDocument, Reference: "Pub.B.WebHome", Typed: true}
	assert.Equal(t, "[x][o] and [y][p]\n\n[o]: Books.A.WebHome\n[p]: <doc:Pub.B.WebHome> \"B\"\n\n    [q]: indented.code\n",
		render(t, doc))
}

func TestBracketTextIsNotADefinition(t *testing.T) {
	doc := parse(t, "Notes:\n[draft]: not a definition inside a paragraph\n")
	for _, n := range doc.Children {
		_, isDef := n.(*Definition)
		assert.False(t, isDef)
	}
}

func TestParseMacros(t *testing.T) {
	doc := parse(t, "{{variant name=\"A,B\"}}outer {{variant name=\"C\"}}inner{{/variant}} tail{{/variant}}after{{toc/}}")
	macros := doc.Macros()
	require.Len(t, macros, 2)

	outer := macros[0]
	assert.Equal(t, "variant", outer.ID)
	assert.Equal(t, "A,B", outer.ParamValue("name"))
	assert.True(t, outer.HasContent)
	assert.Equal(t, "outer {{variant name=\"C\"}}inner{{/variant}} tail", outer.Content)

	assert.Equal(t, "toc", macros[1].ID)
	assert.False(t, macros[1].HasContent)

	nested := parse(t, outer.Content)
	require.Len(t, nested.MacrosByID("variant"), 1)
	assert.Equal(t, "inner", nested.MacrosByID("variant")[0].Content)
}

func TestCodeIsOpaque(t *testing.T) {
	doc := parse(t, "```\n{{include reference=\"A.B\"/}}\n[x](doc:Y.Z)\n```\nthen `{{toc/}}` and {{toc/}}\n")
	assert.Len(t, doc.Macros(), 1)
	for _, n := range doc.Children {
		if _, ok := n.(*Link); ok {
			t.Fatalf("link inside fenced code was parsed")
		}
	}
}

func TestRenderModified(t *testing.T) {
	doc := parse(t, "[guide](Sibling) {{include reference=\"Old.Page\"/}} {{box}}x{{/box}}")
	link := doc.Children[0].(*Link)
	link.Ref = Resource{Type: ResourceDocument, Reference: "Pub.Sibling.WebHome", Typed: true}

	macros := doc.Macros()
	macros[0].SetParam("reference", `New "quoted".Page`)
	macros[1].ID = "inline"
	macros[1].Params = nil

	assert.Equal(t,
		`[guide](doc:Pub.Sibling.WebHome) {{include reference="New \"quoted\".Page"/}} {{inline}}x{{/inline}}`,
		render(t, doc))

	// Escaped values parse back to the same parameter.
	again := parse(t, render(t, doc))
	assert.Equal(t, `New "quoted".Page`, again.Macros()[0].ParamValue("reference"))
}

func TestRemoveAndAppend(t *testing.T) {
	doc := parse(t, "a{{x/}}b")
	m := doc.Macros()[0]
	require.True(t, doc.Remove(m))
	doc.Append(NewMacro("contentTranslation", []Param{{Name: "language", Value: "fr"}}, "Bonjour", true))
	assert.Equal(t, `ab{{contentTranslation language="fr"}}Bonjour{{/contentTranslation}}`, render(t, doc))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	s, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, MarkdownSyntaxID, s.ID())

	p, err := r.Get(PlainSyntaxID)
	require.NoError(t, err)
	doc, err := p.Parse("[not](parsed)")
	require.NoError(t, err)
	require.Len(t, doc.Children, 1)
	out, err := p.Render(doc)
	require.NoError(t, err)
	assert.Equal(t, "[not](parsed)", out)

	_, err = r.Get("xwiki/2.1")
	require.Error(t, err)
}
