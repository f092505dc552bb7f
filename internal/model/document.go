package model

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Document is a node of the hierarchical repository: rich-text content with an
// attached syntax plus typed records (objects) and attachments.
type Document struct {
	Ref         DocumentRef  `yaml:"-" json:"-"`
	Title       string       `yaml:"title,omitempty" json:"title,omitempty"`
	Syntax      string       `yaml:"syntax,omitempty" json:"syntax,omitempty"`
	Content     string       `yaml:"content,omitempty" json:"content,omitempty"`
	Hidden      bool         `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Objects     []Object     `yaml:"objects,omitempty" json:"objects,omitempty"`
	Attachments []Attachment `yaml:"attachments,omitempty" json:"attachments,omitempty"`
	Fingerprint string       `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`
	Author      string       `yaml:"author,omitempty" json:"author,omitempty"`
	Updated     time.Time    `yaml:"updated,omitempty" json:"updated,omitempty"`
}

// Object is a typed record attached to a document. List values are stored '|' separated.
type Object struct {
	Class string            `yaml:"class" json:"class"`
	Props map[string]string `yaml:"props,omitempty" json:"props,omitempty"`
}

// Attachment is a file attached to a document.
type Attachment struct {
	Name      string `yaml:"name" json:"name"`
	MediaType string `yaml:"media_type,omitempty" json:"media_type,omitempty"`
	Data      string `yaml:"data,omitempty" json:"data,omitempty"`
}

// NewDocument returns an empty document at ref.
func NewDocument(ref DocumentRef) *Document {
	return &Document{Ref: ref}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Ref = DocumentRef{Space: slices.Clone(d.Ref.Space), Name: d.Ref.Name}
	c.Objects = make([]Object, len(d.Objects))
	for i, o := range d.Objects {
		c.Objects[i] = Object{Class: o.Class, Props: maps.Clone(o.Props)}
	}
	c.Attachments = slices.Clone(d.Attachments)
	return &c
}

// Object returns the first record of class, or nil.
func (d *Document) Object(class string) *Object {
	if d == nil {
		return nil
	}
	for i := range d.Objects {
		if d.Objects[i].Class == class {
			return &d.Objects[i]
		}
	}
	return nil
}

// ObjectsOf returns every record of class in document order.
func (d *Document) ObjectsOf(class string) []*Object {
	if d == nil {
		return nil
	}
	var out []*Object
	for i := range d.Objects {
		if d.Objects[i].Class == class {
			out = append(out, &d.Objects[i])
		}
	}
	return out
}

// HasObject reports whether d carries at least one record of class.
func (d *Document) HasObject(class string) bool { return d.Object(class) != nil }

// AddObject appends a new record of class and returns it.
// The returned pointer is invalidated by the next AddObject or RemoveObjects call.
func (d *Document) AddObject(class string) *Object {
	d.Objects = append(d.Objects, Object{Class: class, Props: map[string]string{}})
	return &d.Objects[len(d.Objects)-1]
}

// EnsureObject returns the first record of class, creating it when missing.
func (d *Document) EnsureObject(class string) *Object {
	if o := d.Object(class); o != nil {
		return o
	}
	return d.AddObject(class)
}

// RemoveObjects drops every record of the given classes and returns how many were removed.
func (d *Document) RemoveObjects(classes ...string) int {
	kept := d.Objects[:0]
	removed := 0
	for _, o := range d.Objects {
		if slices.Contains(classes, o.Class) {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	d.Objects = kept
	return removed
}

// RemoveObjectsWhere drops records of class matching fn.
func (d *Document) RemoveObjectsWhere(class string, fn func(*Object) bool) int {
	kept := d.Objects[:0]
	removed := 0
	for i := range d.Objects {
		if d.Objects[i].Class == class && fn(&d.Objects[i]) {
			removed++
			continue
		}
		kept = append(kept, d.Objects[i])
	}
	d.Objects = kept
	return removed
}

// Classes returns the distinct record classes carried by d.
func (d *Document) Classes() []string {
	var out []string
	for _, o := range d.Objects {
		if !slices.Contains(out, o.Class) {
			out = append(out, o.Class)
		}
	}
	return out
}

// Attachment returns the attachment called name, or nil.
func (d *Document) Attachment(name string) *Attachment {
	for i := range d.Attachments {
		if d.Attachments[i].Name == name {
			return &d.Attachments[i]
		}
	}
	return nil
}

// String returns a property value, or "" when unset.
func (o *Object) String(prop string) string {
	if o == nil {
		return ""
	}
	return o.Props[prop]
}

// Bool interprets a property as a boolean ("1" or "true").
func (o *Object) Bool(prop string) bool {
	v := strings.TrimSpace(o.String(prop))
	if v == "1" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// List splits a '|' separated property, dropping empty entries.
func (o *Object) List(prop string) []string {
	v := o.String(prop)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, "|") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Set assigns a string property.
func (o *Object) Set(prop, value string) {
	if o.Props == nil {
		o.Props = map[string]string{}
	}
	o.Props[prop] = value
}

// SetBool stores a boolean as "1" or "0".
func (o *Object) SetBool(prop string, value bool) {
	if value {
		o.Set(prop, "1")
		return
	}
	o.Set(prop, "0")
}

// SetList stores a list property.
func (o *Object) SetList(prop string, values []string) {
	o.Set(prop, strings.Join(values, "|"))
}
