package richtext

import (
	"sort"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// span is a half-open byte range.
type span struct {
	start, end int
}

// outline is what the goldmark pass contributes to scanning: code ranges, in which
// links and macros are literal text, and the labels of reference definitions.
type outline struct {
	code        []span
	definitions map[string]bool
}

func (o outline) defines(label string) bool {
	return o.definitions[util.ToLinkReference([]byte(label))]
}

func analyze(src []byte) outline {
	ctx := parser.NewContext()
	root := goldmark.New().Parser().Parse(text.NewReader(src), parser.WithContext(ctx))

	// Reference definitions live in the parse context, not in the AST.
	defs := make(map[string]bool)
	for _, ref := range ctx.References() {
		defs[util.ToLinkReference(ref.Label())] = true
	}
	return outline{code: codeRanges(root), definitions: defs}
}

// codeRanges returns the byte ranges of code blocks and code spans.
func codeRanges(root gmast.Node) []span {
	var out []span
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.FencedCodeBlock, *gmast.CodeBlock:
			lines := n.Lines()
			if lines.Len() > 0 {
				out = append(out, span{start: lines.At(0).Start, end: lines.At(lines.Len() - 1).Stop})
			}
			return gmast.WalkSkipChildren, nil
		case *gmast.CodeSpan:
			start, end := -1, -1
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*gmast.Text); ok {
					if start < 0 {
						start = t.Segment.Start
					}
					end = t.Segment.Stop
				}
			}
			if start >= 0 && end > start {
				out = append(out, span{start: start, end: end})
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})

	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// rangeIndex answers "is this offset inside a code range" for increasing offsets.
type rangeIndex struct {
	ranges []span
	next   int
}

// skip returns the end of the range containing pos, or -1.
func (r *rangeIndex) skip(pos int) int {
	for r.next < len(r.ranges) && r.ranges[r.next].end <= pos {
		r.next++
	}
	if r.next < len(r.ranges) && r.ranges[r.next].start <= pos {
		return r.ranges[r.next].end
	}
	return -1
}
