// Package richtext parses and renders page content: text interleaved with links,
// images and macros (parametrized directive blocks).
package richtext

import (
	"slices"
	"strings"
)

// Node is one element of a parsed document.
type Node interface {
	node()
}

// Document is a parsed content tree. Macro content is kept as source text and
// parsed on demand, so nesting is explicit at every level.
type Document struct {
	Children []Node
}

// Text is literal content.
type Text struct {
	Value string
}

// ResourceType is the kind of target a link or image points at.
type ResourceType string

const (
	ResourceDocument       ResourceType = "doc"
	ResourcePage           ResourceType = "page"
	ResourceSpace          ResourceType = "space"
	ResourceAttachment     ResourceType = "attach"
	ResourcePageAttachment ResourceType = "pageAttach"
	ResourceURL            ResourceType = "url"
	ResourceMailto         ResourceType = "mailto"
)

var knownResourceTypes = []ResourceType{
	ResourceDocument, ResourcePage, ResourceSpace, ResourceAttachment,
	ResourcePageAttachment, ResourceURL, ResourceMailto,
}

// Resource is a link or image target. Typed resources carry an explicit "type:" prefix.
type Resource struct {
	Type      ResourceType
	Reference string
	Typed     bool
}

func (r Resource) String() string {
	if r.Typed {
		return string(r.Type) + ":" + r.Reference
	}
	return r.Reference
}

// Link is a "[label](target)" element. Children holds the parsed label, in which
// only images are recognized; Label is its source text.
type Link struct {
	Label    string
	Ref      Resource
	Children []Node

	raw  string
	form destination
	orig linkState
}

type linkState struct {
	Label string
	Ref   Resource
}

// Image is a "![alt](target)" element.
type Image struct {
	Alt string
	Ref Resource

	raw  string
	form destination
	orig imageState
}

type imageState struct {
	Alt string
	Ref Resource
}

// Definition is a "[label]: target" reference definition.
type Definition struct {
	Label string
	Ref   Resource

	raw  string
	form destination
	orig Resource
}

// Param is one macro parameter. Order is preserved.
type Param struct {
	Name  string
	Value string
}

// Macro is a "{{id params}}content{{/id}}" or "{{id params/}}" block.
type Macro struct {
	ID         string
	Params     []Param
	Content    string
	HasContent bool

	raw  string
	orig macroState
}

type macroState struct {
	id         string
	params     []Param
	content    string
	hasContent bool
}

func (*Text) node()       {}
func (*Link) node()       {}
func (*Image) node()      {}
func (*Definition) node() {}
func (*Macro) node()      {}

// NewMacro builds a macro that renders from its fields.
func NewMacro(id string, params []Param, content string, hasContent bool) *Macro {
	return &Macro{ID: id, Params: params, Content: content, HasContent: hasContent}
}

// Param returns the value of the named parameter and whether it is set.
func (m *Macro) Param(name string) (string, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// ParamValue returns the named parameter, or "" when unset.
func (m *Macro) ParamValue(name string) string {
	v, _ := m.Param(name)
	return v
}

// SetParam sets or appends a parameter.
func (m *Macro) SetParam(name, value string) {
	for i := range m.Params {
		if m.Params[i].Name == name {
			m.Params[i].Value = value
			return
		}
	}
	m.Params = append(m.Params, Param{Name: name, Value: value})
}

func (m *Macro) modified() bool {
	return m.raw == "" ||
		m.ID != m.orig.id ||
		m.Content != m.orig.content ||
		m.HasContent != m.orig.hasContent ||
		!slices.Equal(m.Params, m.orig.params)
}

func (l *Link) modified() bool {
	return l.raw == "" || l.Label != l.orig.Label || l.Ref != l.orig.Ref || anyModified(l.Children)
}

func (i *Image) modified() bool {
	return i.raw == "" || i.Alt != i.orig.Alt || i.Ref != i.orig.Ref
}

func (d *Definition) modified() bool {
	return d.raw == "" || d.Ref != d.orig
}

func anyModified(nodes []Node) bool {
	for _, n := range nodes {
		if im, ok := n.(*Image); ok && im.modified() {
			return true
		}
	}
	return false
}

// Macros returns the document's macros in order.
func (d *Document) Macros() []*Macro {
	var out []*Macro
	for _, n := range d.Children {
		if m, ok := n.(*Macro); ok {
			out = append(out, m)
		}
	}
	return out
}

// Nodes returns the document's nodes in order, each link followed by the nodes of its label.
func (d *Document) Nodes() []Node {
	out := make([]Node, 0, len(d.Children))
	for _, n := range d.Children {
		out = append(out, n)
		if l, ok := n.(*Link); ok {
			out = append(out, l.Children...)
		}
	}
	return out
}

// MacrosByID returns the document's macros with the given id.
func (d *Document) MacrosByID(id string) []*Macro {
	var out []*Macro
	for _, m := range d.Macros() {
		if m.ID == id {
			out = append(out, m)
		}
	}
	return out
}

// Remove drops n from the document. It reports whether n was found.
func (d *Document) Remove(n Node) bool {
	for i, c := range d.Children {
		if c == n {
			d.Children = slices.Delete(d.Children, i, i+1)
			return true
		}
	}
	return false
}

// Replace swaps old for repl. It reports whether old was found.
func (d *Document) Replace(old, repl Node) bool {
	for i, c := range d.Children {
		if c == old {
			d.Children[i] = repl
			return true
		}
	}
	return false
}

// Append adds nodes at the end of the document.
func (d *Document) Append(nodes ...Node) {
	d.Children = append(d.Children, nodes...)
}

// PlainText concatenates the document's text nodes and link labels.
func (d *Document) PlainText() string {
	var b strings.Builder
	for _, n := range d.Children {
		switch v := n.(type) {
		case *Text:
			b.WriteString(v.Value)
		case *Link:
			b.WriteString(v.Label)
		}
	}
	return b.String()
}

// ParseResource interprets a link target. Untyped images default to attachments,
// untyped links to documents unless they look like URLs.
func ParseResource(target string, image bool) Resource {
	if prefix, rest, ok := strings.Cut(target, ":"); ok && !strings.HasPrefix(rest, "//") {
		for _, t := range knownResourceTypes {
			if string(t) == prefix {
				return Resource{Type: t, Reference: rest, Typed: true}
			}
		}
	}
	switch {
	case strings.Contains(target, "://"), strings.HasPrefix(target, "#"):
		return Resource{Type: ResourceURL, Reference: target}
	case image:
		return Resource{Type: ResourceAttachment, Reference: target}
	default:
		return Resource{Type: ResourceDocument, Reference: target}
	}
}
