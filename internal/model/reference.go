package model

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// WebHome is the name of the document holding a non-terminal page's content.
	WebHome = "WebHome"
	// WebPreferences is the per-space preferences document.
	WebPreferences = "WebPreferences"
	// DefaultLocale is the language assumed when nothing else is configured.
	DefaultLocale = "en"
)

// SpaceRef is an ordered list of nested space names, outermost first.
// Methods never mutate the receiver; derived references get their own backing array.
type SpaceRef []string

// String serializes the space as dot separated names with '.' and '\' escaped.
func (s SpaceRef) String() string {
	parts := make([]string, len(s))
	for i, name := range s {
		parts[i] = escapeName(name)
	}
	return strings.Join(parts, ".")
}

// IsZero reports whether the reference names no space.
func (s SpaceRef) IsZero() bool { return len(s) == 0 }

// Last returns the innermost space name.
func (s SpaceRef) Last() string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

// Parent returns the enclosing space, or nil for a top level space.
func (s SpaceRef) Parent() SpaceRef {
	if len(s) <= 1 {
		return nil
	}
	return slices.Clone(s[:len(s)-1])
}

// Child returns the nested space called name.
func (s SpaceRef) Child(name string) SpaceRef {
	out := make(SpaceRef, 0, len(s)+1)
	out = append(out, s...)
	return append(out, name)
}

// Home returns the WebHome document of the space.
func (s SpaceRef) Home() DocumentRef { return s.Doc(WebHome) }

// Doc returns the document called name directly inside the space.
func (s SpaceRef) Doc(name string) DocumentRef {
	return DocumentRef{Space: slices.Clone(s), Name: name}
}

// Equal compares two spaces name by name.
func (s SpaceRef) Equal(o SpaceRef) bool { return slices.Equal(s, o) }

// HasPrefix reports whether prefix is s or one of its ancestors.
func (s SpaceRef) HasPrefix(prefix SpaceRef) bool {
	if len(prefix) == 0 || len(prefix) > len(s) {
		return false
	}
	return slices.Equal(s[:len(prefix)], prefix)
}

// Ancestors returns s and its enclosing spaces, innermost first.
func (s SpaceRef) Ancestors() []SpaceRef {
	out := make([]SpaceRef, 0, len(s))
	for i := len(s); i > 0; i-- {
		out = append(out, slices.Clone(s[:i]))
	}
	return out
}

// Replace re-parents s from one space onto another when from is s or an ancestor of s.
func (s SpaceRef) Replace(from, to SpaceRef) (SpaceRef, bool) {
	if !s.HasPrefix(from) {
		return s, false
	}
	out := make(SpaceRef, 0, len(to)+len(s)-len(from))
	out = append(out, to...)
	return append(out, s[len(from):]...), true
}

// DocumentRef identifies a document by its space and name.
type DocumentRef struct {
	Space SpaceRef
	Name  string
}

// String serializes the reference as "Space.Sub.Name".
func (d DocumentRef) String() string {
	if len(d.Space) == 0 {
		return escapeName(d.Name)
	}
	return d.Space.String() + "." + escapeName(d.Name)
}

// IsZero reports whether the reference is empty.
func (d DocumentRef) IsZero() bool { return len(d.Space) == 0 && d.Name == "" }

// IsWebHome reports whether d is the home document of its space.
func (d DocumentRef) IsWebHome() bool { return d.Name == WebHome }

// PageName is the user facing page name: the space name for WebHome documents, the document name otherwise.
func (d DocumentRef) PageName() string {
	if d.IsWebHome() {
		return d.Space.Last()
	}
	return d.Name
}

// Equal compares two document references.
func (d DocumentRef) Equal(o DocumentRef) bool {
	return d.Name == o.Name && d.Space.Equal(o.Space)
}

// ParentHome returns the WebHome of the space enclosing d's space, or false at the root.
func (d DocumentRef) ParentHome() (DocumentRef, bool) {
	parent := d.Space.Parent()
	if parent == nil {
		return DocumentRef{}, false
	}
	return parent.Home(), true
}

// Sibling returns the document called name in d's space.
func (d DocumentRef) Sibling(name string) DocumentRef { return d.Space.Doc(name) }

// AttachmentRef identifies a file attached to a document.
type AttachmentRef struct {
	Doc  DocumentRef
	Name string
}

// String serializes the reference as "Space.Page@file".
func (a AttachmentRef) String() string {
	return a.Doc.String() + "@" + a.Name
}

// Equal compares two attachment references.
func (a AttachmentRef) Equal(o AttachmentRef) bool {
	return a.Name == o.Name && a.Doc.Equal(o.Doc)
}

// ReplaceParent re-parents ref from one space onto another. References outside from are returned unchanged.
func ReplaceParent(ref DocumentRef, from, to SpaceRef) DocumentRef {
	space, ok := ref.Space.Replace(from, to)
	if !ok {
		return ref
	}
	return DocumentRef{Space: space, Name: ref.Name}
}

// ParseSpaceRef parses a serialized space reference.
func ParseSpaceRef(s string) (SpaceRef, error) {
	names, err := splitEscaped(s, '.')
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("invalid space reference %q: empty name", s)
		}
	}
	return SpaceRef(names), nil
}

// ParseDocumentRef parses a serialized document reference. A single name is resolved
// in base's space; anything with a dot is absolute.
func ParseDocumentRef(s string, base DocumentRef) (DocumentRef, error) {
	names, err := splitEscaped(strings.TrimSpace(s), '.')
	if err != nil {
		return DocumentRef{}, err
	}
	for _, n := range names {
		if n == "" {
			return DocumentRef{}, fmt.Errorf("invalid document reference %q: empty name", s)
		}
	}
	switch len(names) {
	case 0:
		return DocumentRef{}, fmt.Errorf("invalid document reference %q", s)
	case 1:
		if base.Space.IsZero() {
			return DocumentRef{}, fmt.Errorf("relative document reference %q without base", s)
		}
		return base.Space.Doc(names[0]), nil
	default:
		return DocumentRef{Space: SpaceRef(names[:len(names)-1]), Name: names[len(names)-1]}, nil
	}
}

// MustDocumentRef parses an absolute document reference and panics on error. Intended for tests and constants.
func MustDocumentRef(s string) DocumentRef {
	ref, err := ParseDocumentRef(s, DocumentRef{})
	if err != nil {
		panic(err)
	}
	return ref
}

// ParsePageRef parses a slash separated page reference into the page's WebHome document.
// A single page name is a sibling of base's page.
func ParsePageRef(s string, base DocumentRef) (DocumentRef, error) {
	names, err := splitEscaped(strings.Trim(strings.TrimSpace(s), "/"), '/')
	if err != nil {
		return DocumentRef{}, err
	}
	if len(names) == 0 || slices.Contains(names, "") {
		return DocumentRef{}, fmt.Errorf("invalid page reference %q", s)
	}
	if len(names) > 1 {
		return SpaceRef(names).Home(), nil
	}
	parent := base.Space
	if base.IsWebHome() {
		parent = base.Space.Parent()
	}
	return parent.Child(names[0]).Home(), nil
}

// ParseAttachmentRef parses "Space.Page@file" or a bare file name attached to base.
func ParseAttachmentRef(s string, base DocumentRef) (AttachmentRef, error) {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at < 0 {
		if s == "" || base.IsZero() {
			return AttachmentRef{}, fmt.Errorf("invalid attachment reference %q", s)
		}
		return AttachmentRef{Doc: base, Name: s}, nil
	}
	name := s[at+1:]
	if name == "" {
		return AttachmentRef{}, fmt.Errorf("invalid attachment reference %q: empty file name", s)
	}
	if at == 0 {
		return AttachmentRef{Doc: base, Name: name}, nil
	}
	doc, err := ParseDocumentRef(s[:at], base)
	if err != nil {
		return AttachmentRef{}, err
	}
	return AttachmentRef{Doc: doc, Name: name}, nil
}

// ParsePageAttachmentRef parses "A/B/file" where the last segment is the file name.
func ParsePageAttachmentRef(s string, base DocumentRef) (AttachmentRef, error) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, "/")
	if idx < 0 {
		return ParseAttachmentRef(s, base)
	}
	page, err := ParsePageRef(s[:idx], base)
	if err != nil {
		return AttachmentRef{}, err
	}
	if s[idx+1:] == "" {
		return AttachmentRef{}, fmt.Errorf("invalid page attachment reference %q", s)
	}
	return AttachmentRef{Doc: page, Name: s[idx+1:]}, nil
}

func escapeName(name string) string {
	if !strings.ContainsAny(name, `.\`) {
		return name
	}
	var b strings.Builder
	for _, r := range name {
		if r == '.' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitEscaped(s string, sep byte) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var (
		out []string
		cur strings.Builder
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			if i+1 >= len(s) {
				return nil, fmt.Errorf("invalid reference %q: dangling escape", s)
			}
			i++
			cur.WriteByte(s[i])
		case c == sep:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(out, cur.String()), nil
}

// MarshalText serializes the reference for JSON and YAML encoders.
func (d DocumentRef) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText parses an absolute document reference.
func (d *DocumentRef) UnmarshalText(b []byte) error {
	ref, err := ParseDocumentRef(string(b), DocumentRef{})
	if err != nil {
		return err
	}
	*d = ref
	return nil
}

// MarshalText serializes the space reference.
func (s SpaceRef) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a space reference.
func (s *SpaceRef) UnmarshalText(b []byte) error {
	ref, err := ParseSpaceRef(string(b))
	if err != nil {
		return err
	}
	*s = ref
	return nil
}
