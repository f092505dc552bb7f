package transform

import (
	"fmt"
	"maps"
	"sync"

	"git.home.luguber.info/inful/bookversions/internal/config"
)

// ContentKind tells whether a macro's content is rich text to transform or opaque.
type ContentKind string

const (
	ContentRichText ContentKind = "richtext"
	ContentOpaque   ContentKind = "opaque"
)

// ParamType is the reference type of a macro parameter.
type ParamType string

const (
	ParamDocument       ParamType = "document"
	ParamAttachment     ParamType = "attachment"
	ParamPage           ParamType = "page"
	ParamPageAttachment ParamType = "pageAttachment"
)

// Macro ids and parameters with special handling.
const (
	MacroVariant          = "variant"
	MacroInline           = "inline"
	MacroInclude          = "include"
	MacroIncludeLibrary   = "includeLibrary"
	MacroDocumentTree     = "documentTree"
	ParamVariantName      = "name"
	ParamIncludeRef       = "reference"
	ParamKeyReference     = "keyReference"
	ParamDocumentTreeRoot = "root"
)

// Descriptor describes how reference rewriting treats one macro.
type Descriptor struct {
	ID      string
	Content ContentKind
	Params  map[string]ParamType
}

// Builtins returns the descriptors known without configuration.
func Builtins() []Descriptor {
	return []Descriptor{
		{ID: MacroInclude, Content: ContentRichText, Params: map[string]ParamType{ParamIncludeRef: ParamDocument}},
		{ID: "display", Content: ContentRichText, Params: map[string]ParamType{ParamIncludeRef: ParamDocument}},
		{ID: MacroDocumentTree, Content: ContentRichText},
		{ID: MacroIncludeLibrary, Content: ContentRichText},
		{ID: MacroVariant, Content: ContentRichText},
		{ID: MacroInline, Content: ContentRichText},
		{ID: "code", Content: ContentOpaque},
		{ID: "html", Content: ContentOpaque},
		{ID: "raw", Content: ContentOpaque},
	}
}

// Registry holds macro descriptors by id. Unknown macros are rich text without
// reference parameters.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Descriptor
}

// NewRegistry creates a registry holding the builtins followed by extra descriptors;
// later entries override earlier ones.
func NewRegistry(extra ...Descriptor) *Registry {
	r := &Registry{byID: make(map[string]Descriptor)}
	for _, d := range Builtins() {
		r.Register(d)
	}
	for _, d := range extra {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d Descriptor) {
	if d.Content == "" {
		d.Content = ContentRichText
	}
	d.Params = maps.Clone(d.Params)
	r.mu.Lock()
	r.byID[d.ID] = d
	r.mu.Unlock()
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Describe returns the descriptor for id, falling back to a rich text macro.
func (r *Registry) Describe(id string) Descriptor {
	if d, ok := r.Lookup(id); ok {
		return d
	}
	return Descriptor{ID: id, Content: ContentRichText}
}

// DescriptorsFromConfig converts configured macro descriptors.
func DescriptorsFromConfig(cfgs []config.MacroConfig) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(cfgs))
	for _, c := range cfgs {
		d := Descriptor{ID: c.ID, Content: ContentKind(c.Content), Params: make(map[string]ParamType, len(c.Params))}
		switch d.Content {
		case "", ContentRichText, ContentOpaque:
		default:
			return nil, fmt.Errorf("macro %s: unknown content kind %q", c.ID, c.Content)
		}
		for name, typ := range c.Params {
			switch pt := ParamType(typ); pt {
			case ParamDocument, ParamAttachment, ParamPage, ParamPageAttachment:
				d.Params[name] = pt
			default:
				return nil, fmt.Errorf("macro %s: unknown parameter type %q for %s", c.ID, typ, name)
			}
		}
		out = append(out, d)
	}
	return out, nil
}
