package richtext

import (
	"fmt"
	"strings"
)

// MarkdownSyntaxID identifies Markdown content with embedded macros.
const MarkdownSyntaxID = "markdown+macros/1.0"

// MarkdownSyntax parses Markdown text with links, images and "{{macro}}" blocks.
// Rendering an unmodified tree reproduces the parsed source byte for byte.
type MarkdownSyntax struct{}

func (MarkdownSyntax) ID() string { return MarkdownSyntaxID }

// Parse splits content into nodes. Malformed constructs are kept as text.
func (MarkdownSyntax) Parse(content string) (*Document, error) {
	o := analyze([]byte(content))
	p := &scanner{src: content, code: rangeIndex{ranges: o.code}, refs: o}
	return p.parse(), nil
}

// Render serializes doc. Unmodified nodes are written as they were parsed.
func (MarkdownSyntax) Render(doc *Document) (string, error) {
	var b strings.Builder
	for _, n := range doc.Children {
		if err := renderNode(&b, n); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func renderNode(b *strings.Builder, n Node) error {
	switch v := n.(type) {
	case *Text:
		b.WriteString(v.Value)
	case *Link:
		if !v.modified() {
			b.WriteString(v.raw)
			return nil
		}
		label := v.Label
		if label == v.orig.Label && anyModified(v.Children) {
			var lb strings.Builder
			for _, c := range v.Children {
				if err := renderNode(&lb, c); err != nil {
					return err
				}
			}
			label = lb.String()
		}
		b.WriteString("[" + label + "](" + v.form.wrap(v.Ref.String()) + ")")
	case *Image:
		if !v.modified() {
			b.WriteString(v.raw)
			return nil
		}
		b.WriteString("![" + v.Alt + "](" + v.form.wrap(v.Ref.String()) + ")")
	case *Definition:
		if !v.modified() {
			b.WriteString(v.raw)
			return nil
		}
		b.WriteString("[" + v.Label + "]:" + v.form.wrap(v.Ref.String()))
	case *Macro:
		if !v.modified() {
			b.WriteString(v.raw)
			return nil
		}
		b.WriteString(renderMacro(v))
	default:
		return fmt.Errorf("unsupported node %T", n)
	}
	return nil
}

func renderMacro(m *Macro) string {
	var b strings.Builder
	b.WriteString("{{")
	b.WriteString(m.ID)
	for _, p := range m.Params {
		b.WriteByte(' ')
		b.WriteString(p.Name)
		b.WriteString(`="`)
		b.WriteString(escapeParam(p.Value))
		b.WriteByte('"')
	}
	if !m.HasContent {
		b.WriteString("/}}")
		return b.String()
	}
	b.WriteString("}}")
	b.WriteString(m.Content)
	b.WriteString("{{/")
	b.WriteString(m.ID)
	b.WriteString("}}")
	return b.String()
}

func escapeParam(v string) string {
	if !strings.ContainsAny(v, `"\`) {
		return v
	}
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}

type scanner struct {
	src  string
	code rangeIndex
	refs outline
}

func (s *scanner) parse() *Document {
	return &Document{Children: s.scan(0, len(s.src), false)}
}

// scan splits src[from:to]. Inside a link label only images are recognized.
func (s *scanner) scan(from, to int, label bool) []Node {
	var (
		out  []Node
		text strings.Builder
	)
	flush := func() {
		if text.Len() > 0 {
			out = append(out, &Text{Value: text.String()})
			text.Reset()
		}
	}
	for i := from; i < to; {
		if end := s.code.skip(i); end > i {
			end = min(end, to)
			text.WriteString(s.src[i:end])
			i = end
			continue
		}
		var (
			n    Node
			next int
		)
		rest := s.src[i:to]
		switch {
		case label && strings.HasPrefix(rest, "!["):
			n, next = s.image(i, to)
		case label:
		case strings.HasPrefix(rest, "{{") && !strings.HasPrefix(rest, "{{/"):
			n, next = s.macro(i)
		case strings.HasPrefix(rest, "!["):
			n, next = s.image(i, to)
		case rest[0] == '[':
			if n, next = s.definition(i); n == nil {
				n, next = s.link(i, to)
			}
		}
		if n == nil {
			text.WriteByte(s.src[i])
			i++
			continue
		}
		flush()
		out = append(out, n)
		i = next
	}
	flush()
	return out
}

// bracketed returns the index just past the "]" matching the "[" at open.
func bracketed(src string, open, to int) int {
	depth := 0
	for i := open; i < to; i++ {
		switch src[i] {
		case '\n':
			return -1
		case '\\':
			i++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// destination keeps the parts of a link target around the reference itself.
type destination struct {
	lead   string
	angled bool
	// suffix is the title and surrounding whitespace, verbatim.
	suffix string
}

func (d destination) wrap(ref string) string {
	if d.angled {
		ref = "<" + ref + ">"
	}
	return d.lead + ref + d.suffix
}

// splitDestination separates "<dest> title" or "dest title" into the reference and its form.
func splitDestination(raw string) (string, destination, bool) {
	trimmed := strings.TrimLeft(raw, " \t")
	d := destination{lead: raw[:len(raw)-len(trimmed)]}
	var ref string
	if strings.HasPrefix(trimmed, "<") {
		end := strings.IndexAny(trimmed, ">\n")
		if end < 0 || trimmed[end] != '>' {
			return "", d, false
		}
		ref, d.angled, d.suffix = trimmed[1:end], true, trimmed[end+1:]
	} else {
		end := strings.IndexAny(trimmed, " \t")
		if end < 0 {
			end = len(trimmed)
		}
		ref, d.suffix = trimmed[:end], trimmed[end:]
	}
	if strings.TrimSpace(ref) == "" {
		return "", d, false
	}
	return ref, d, true
}

// target parses "(dest)" at pos and returns dest, its form and the index past ")".
func target(src string, pos, to int) (string, destination, int) {
	if pos >= to || src[pos] != '(' {
		return "", destination{}, -1
	}
	end := strings.IndexAny(src[pos+1:to], ")\n")
	if end < 0 || src[pos+1+end] != ')' {
		return "", destination{}, -1
	}
	ref, form, ok := splitDestination(src[pos+1 : pos+1+end])
	if !ok {
		return "", destination{}, -1
	}
	return ref, form, pos + 1 + end + 1
}

func (s *scanner) link(i, to int) (Node, int) {
	closeIdx := bracketed(s.src, i, to)
	if closeIdx < 0 {
		return nil, 0
	}
	dest, form, next := target(s.src, closeIdx, to)
	if next < 0 {
		return nil, 0
	}
	l := &Link{
		Label:    s.src[i+1 : closeIdx-1],
		Ref:      ParseResource(dest, false),
		Children: s.scan(i+1, closeIdx-1, true),
		raw:      s.src[i:next],
		form:     form,
	}
	l.orig = linkState{Label: l.Label, Ref: l.Ref}
	return l, next
}

func (s *scanner) image(i, to int) (Node, int) {
	closeIdx := bracketed(s.src, i+1, to)
	if closeIdx < 0 {
		return nil, 0
	}
	dest, form, next := target(s.src, closeIdx, to)
	if next < 0 {
		return nil, 0
	}
	img := &Image{Alt: s.src[i+2 : closeIdx-1], Ref: ParseResource(dest, true), raw: s.src[i:next], form: form}
	img.orig = imageState{Alt: img.Alt, Ref: img.Ref}
	return img, next
}

// definition parses a "[label]: dest title" line that goldmark accepted as a
// reference definition. The node ends before the line break.
func (s *scanner) definition(i int) (Node, int) {
	if !lineStart(s.src, i) || strings.HasPrefix(s.src[i:], "[^") {
		return nil, 0
	}
	lineEnd := strings.IndexByte(s.src[i:], '\n')
	if lineEnd < 0 {
		lineEnd = len(s.src)
	} else {
		lineEnd += i
	}
	closeIdx := bracketed(s.src, i, lineEnd)
	if closeIdx < 0 || closeIdx >= lineEnd || s.src[closeIdx] != ':' {
		return nil, 0
	}
	label := s.src[i+1 : closeIdx-1]
	if !s.refs.defines(label) {
		return nil, 0
	}
	dest, form, ok := splitDestination(s.src[closeIdx+1 : lineEnd])
	if !ok {
		return nil, 0
	}
	d := &Definition{Label: label, Ref: ParseResource(dest, false), raw: s.src[i:lineEnd], form: form}
	d.orig = d.Ref
	return d, lineEnd
}

// lineStart reports whether only up to three spaces precede i on its line.
func lineStart(src string, i int) bool {
	indent := 0
	for j := i - 1; j >= 0 && src[j] != '\n'; j-- {
		if src[j] != ' ' || indent == 3 {
			return false
		}
		indent++
	}
	return true
}

func (s *scanner) macro(i int) (Node, int) {
	id, params, selfClosing, tagEnd, ok := parseOpenTag(s.src, i)
	if !ok {
		return nil, 0
	}
	m := &Macro{ID: id, Params: params}
	if selfClosing {
		m.raw = s.src[i:tagEnd]
		m.orig = macroState{id: id, params: cloneParams(params)}
		return m, tagEnd
	}
	contentEnd, end := findClose(s.src, id, tagEnd)
	if end < 0 {
		return nil, 0
	}
	m.Content = s.src[tagEnd:contentEnd]
	m.HasContent = true
	m.raw = s.src[i:end]
	m.orig = macroState{id: id, params: cloneParams(params), content: m.Content, hasContent: true}
	return m, end
}

func cloneParams(p []Param) []Param {
	if p == nil {
		return nil
	}
	out := make([]Param, len(p))
	copy(out, p)
	return out
}

// parseOpenTag reads "{{id k="v" ...}}" or "{{id .../}}" starting at i.
func parseOpenTag(src string, i int) (id string, params []Param, selfClosing bool, end int, ok bool) {
	pos := i + 2
	start := pos
	for pos < len(src) && isIDChar(src[pos], pos == start) {
		pos++
	}
	if pos == start {
		return "", nil, false, 0, false
	}
	id = src[start:pos]
	for {
		for pos < len(src) && (src[pos] == ' ' || src[pos] == '\t') {
			pos++
		}
		if strings.HasPrefix(src[pos:], "/}}") {
			return id, params, true, pos + 3, true
		}
		if strings.HasPrefix(src[pos:], "}}") {
			return id, params, false, pos + 2, true
		}
		nameStart := pos
		for pos < len(src) && isIDChar(src[pos], pos == nameStart) {
			pos++
		}
		if pos == nameStart || pos+1 >= len(src) || src[pos] != '=' || src[pos+1] != '"' {
			return "", nil, false, 0, false
		}
		name := src[nameStart:pos]
		pos += 2
		var val strings.Builder
		closed := false
		for pos < len(src) {
			c := src[pos]
			if c == '\\' && pos+1 < len(src) {
				val.WriteByte(src[pos+1])
				pos += 2
				continue
			}
			if c == '"' {
				closed = true
				pos++
				break
			}
			val.WriteByte(c)
			pos++
		}
		if !closed {
			return "", nil, false, 0, false
		}
		params = append(params, Param{Name: name, Value: val.String()})
	}
}

// findClose finds the "{{/id}}" matching an opened macro, counting nested macros with the same id.
func findClose(src, id string, from int) (contentEnd, end int) {
	closing := "{{/" + id + "}}"
	depth := 1
	for pos := from; pos < len(src); {
		next := strings.Index(src[pos:], "{{")
		if next < 0 {
			break
		}
		pos += next
		if strings.HasPrefix(src[pos:], closing) {
			depth--
			if depth == 0 {
				return pos, pos + len(closing)
			}
			pos += len(closing)
			continue
		}
		if nid, _, self, tagEnd, ok := parseOpenTag(src, pos); ok && nid == id {
			if !self {
				depth++
			}
			pos = tagEnd
			continue
		}
		pos += 2
	}
	return 0, -1
}

func isIDChar(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case first:
		return false
	case c >= '0' && c <= '9', c == '_', c == '-':
		return true
	}
	return false
}
