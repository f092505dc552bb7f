package richtext

import (
	"fmt"
	"strings"
	"sync"
)

// Syntax converts between stored content and a Document.
type Syntax interface {
	ID() string
	Parse(content string) (*Document, error)
	Render(doc *Document) (string, error)
}

// PlainSyntaxID identifies unstructured text.
const PlainSyntaxID = "plain/1.0"

// PlainSyntax treats the whole content as one text node.
type PlainSyntax struct{}

func (PlainSyntax) ID() string { return PlainSyntaxID }

func (PlainSyntax) Parse(content string) (*Document, error) {
	if content == "" {
		return &Document{}, nil
	}
	return &Document{Children: []Node{&Text{Value: content}}}, nil
}

// Render writes text nodes verbatim; structured nodes fall back to their Markdown form.
func (PlainSyntax) Render(doc *Document) (string, error) {
	var b strings.Builder
	for _, n := range doc.Children {
		if err := renderNode(&b, n); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// Registry resolves syntax ids. The empty id maps to the default syntax.
type Registry struct {
	mu       sync.RWMutex
	syntaxes map[string]Syntax
	def      string
}

// NewRegistry creates a registry whose default is the first syntax given.
func NewRegistry(syntaxes ...Syntax) *Registry {
	r := &Registry{syntaxes: make(map[string]Syntax)}
	for _, s := range syntaxes {
		r.Register(s)
	}
	return r
}

// DefaultRegistry knows the Markdown+macros syntax (default) and plain text.
func DefaultRegistry() *Registry {
	return NewRegistry(MarkdownSyntax{}, PlainSyntax{})
}

// Register adds or replaces a syntax.
func (r *Registry) Register(s Syntax) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.def == "" {
		r.def = s.ID()
	}
	r.syntaxes[s.ID()] = s
}

// Get returns the syntax for id.
func (r *Registry) Get(id string) (Syntax, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == "" {
		id = r.def
	}
	s, ok := r.syntaxes[id]
	if !ok {
		return nil, fmt.Errorf("unknown syntax %q", id)
	}
	return s, nil
}

// DefaultID returns the id used for content without a syntax.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}
