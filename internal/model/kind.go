package model

import "strings"

// Kind is the set of roles a document plays, derived from the records it carries.
type Kind uint16

const (
	KindBook Kind = 1 << iota
	KindLibrary
	KindPublished
	KindVersion
	KindVariant
	KindPage
	KindVersionedPage
	KindVersionedContent
	KindMarkedDeleted
	KindPublicationConfig
	KindMultilingual
)

var kindNames = []struct {
	kind Kind
	name string
}{
	{KindBook, "book"},
	{KindLibrary, "library"},
	{KindPublished, "published"},
	{KindVersion, "version"},
	{KindVariant, "variant"},
	{KindPage, "page"},
	{KindVersionedPage, "versioned-page"},
	{KindVersionedContent, "versioned-content"},
	{KindMarkedDeleted, "deleted"},
	{KindPublicationConfig, "publication-config"},
	{KindMultilingual, "multilingual"},
}

// KindOf inspects d's records once. A nil document has no kind.
func KindOf(d *Document) Kind {
	if d == nil {
		return 0
	}
	var k Kind
	for i := range d.Objects {
		switch d.Objects[i].Class {
		case ClassBook:
			k |= KindBook
		case ClassLibrary:
			k |= KindLibrary
		case ClassPublishedCollection:
			k |= KindPublished
		case ClassVersion:
			k |= KindVersion
		case ClassVariant:
			k |= KindVariant
		case ClassBookPage:
			k |= KindPage
			if !d.Objects[i].Bool(PropUnversioned) {
				k |= KindVersionedPage
			}
		case ClassVersionedContent:
			k |= KindVersionedContent
		case ClassDeletedContent:
			k |= KindMarkedDeleted
		case ClassPublicationConfiguration:
			k |= KindPublicationConfig
		case ClassMultilingual:
			k |= KindMultilingual
		}
	}
	return k
}

// Has reports whether every bit of o is set in k.
func (k Kind) Has(o Kind) bool { return o != 0 && k&o == o }

// Any reports whether at least one bit of o is set in k.
func (k Kind) Any(o Kind) bool { return k&o != 0 }

// IsCollection reports whether the document is a book or library root.
func (k Kind) IsCollection() bool { return k.Any(KindBook | KindLibrary) }

func (k Kind) String() string {
	if k == 0 {
		return "none"
	}
	var parts []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			parts = append(parts, kn.name)
		}
	}
	return strings.Join(parts, "|")
}
