// Package translation reads and records the per-language translation state of pages.
//
// Translations live in the page content as contentTranslation macros, one per language:
//
//	{{contentTranslation language="fr" title="Bonjour" status="translated"}}...{{/contentTranslation}}
//
// The macros are the source of truth. SetLanguageData mirrors them into PageTranslation
// records so the store can answer queries without parsing content.
package translation

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
)

// MacroID identifies the translation block macro.
const MacroID = "contentTranslation"

// Status is the translation state of one language.
type Status string

const (
	NotTranslated Status = "notTranslated"
	InProgress    Status = "inProgress"
	Translated    Status = "translated"
	Outdated      Status = "outdated"
)

// ParseStatus normalises a status parameter. Unknown values are NotTranslated.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "translated":
		return Translated
	case "outdated":
		return Outdated
	case "inprogress", "in_progress", "in-progress":
		return InProgress
	default:
		return NotTranslated
	}
}

// Record is the translation state of a page in one language.
type Record struct {
	Title     string
	Status    Status
	IsDefault bool
	// HasTranslated stays true once any block for the language was translated.
	HasTranslated bool
}

// Data maps language codes to records.
type Data map[string]Record

// Languages returns the languages in sorted order.
func (d Data) Languages() []string {
	out := make([]string, 0, len(d))
	for lang := range d {
		out = append(out, lang)
	}
	slices.Sort(out)
	return out
}

// Lookup finds the record for lang, comparing canonical tags when there is no exact key.
func (d Data) Lookup(lang string) (Record, bool) {
	if r, ok := d[lang]; ok {
		return r, true
	}
	want, err := Canonicalize(lang)
	if err != nil {
		return Record{}, false
	}
	for key, r := range d {
		if c, err := Canonicalize(key); err == nil && c == want {
			return r, true
		}
	}
	return Record{}, false
}

// Default returns the first language, in sorted order, flagged as default.
func (d Data) Default() (string, bool) {
	for _, lang := range d.Languages() {
		if d[lang].IsDefault {
			return lang, true
		}
	}
	return "", false
}

// Canonicalize returns the canonical BCP 47 form of lang.
func Canonicalize(lang string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", lang, err)
	}
	return tag.String(), nil
}

// FromTree collects translation blocks from a parsed tree, descending into the rich
// content of other macros. A later block for the same language replaces the title,
// status and default flag of an earlier one; HasTranslated is sticky.
func FromTree(tree *richtext.Document, syntax richtext.Syntax) Data {
	data := make(Data)
	collect(tree, syntax, data)
	return data
}

func collect(tree *richtext.Document, syntax richtext.Syntax, data Data) {
	for _, m := range tree.Macros() {
		if m.ID != MacroID {
			if m.HasContent && syntax != nil {
				if nested, err := syntax.Parse(m.Content); err == nil {
					collect(nested, syntax, data)
				}
			}
			continue
		}
		lang := m.ParamValue(model.PropTranslationLanguage)
		if lang == "" {
			continue
		}
		status := ParseStatus(m.ParamValue(model.PropTranslationStatus))
		isDefault, _ := strconv.ParseBool(m.ParamValue(model.PropTranslationIsDefault))
		rec := Record{
			Title:         m.ParamValue(model.PropTranslationTitle),
			Status:        status,
			IsDefault:     isDefault,
			HasTranslated: data[lang].HasTranslated || status == Translated,
		}
		data[lang] = rec
	}
}

// LanguageData parses doc's content with its syntax and returns its translations.
func LanguageData(doc *model.Document, syntaxes *richtext.Registry) (Data, error) {
	if doc == nil {
		return Data{}, nil
	}
	syntax, err := syntaxes.Get(doc.Syntax)
	if err != nil {
		return nil, err
	}
	tree, err := syntax.Parse(doc.Content)
	if err != nil {
		return nil, err
	}
	return FromTree(tree, syntax), nil
}

// SetLanguageData writes one PageTranslation record per language of data onto doc and
// removes records for languages that are no longer present. Languages are stored in
// canonical form; two keys naming the same language or more than one default are
// rejected before doc is touched.
func SetLanguageData(doc *model.Document, data Data) error {
	if doc == nil || data == nil {
		return nil
	}
	canonical := make(map[string]Record, len(data))
	var defaults []string
	for _, lang := range data.Languages() {
		c, err := Canonicalize(lang)
		if err != nil {
			return errors.ValidationFailed(model.PropTranslationLanguage, err.Error())
		}
		if _, dup := canonical[c]; dup {
			return errors.ValidationFailed(model.PropTranslationLanguage,
				fmt.Sprintf("language %s is listed more than once", c))
		}
		rec := data[lang]
		if rec.IsDefault {
			defaults = append(defaults, c)
		}
		canonical[c] = rec
	}
	if len(defaults) > 1 {
		return errors.ValidationFailed(model.PropTranslationIsDefault,
			fmt.Sprintf("more than one default language: %s", strings.Join(defaults, ", ")))
	}

	written := make(map[string]bool, len(canonical))
	doc.RemoveObjectsWhere(model.ClassPageTranslation, func(o *model.Object) bool {
		lang, err := Canonicalize(o.String(model.PropTranslationLanguage))
		if err != nil {
			return true
		}
		rec, ok := canonical[lang]
		if !ok || written[lang] {
			return true
		}
		writeRecord(o, lang, rec)
		written[lang] = true
		return false
	})
	for _, lang := range slices.Sorted(maps.Keys(canonical)) {
		if !written[lang] {
			writeRecord(doc.AddObject(model.ClassPageTranslation), lang, canonical[lang])
		}
	}
	return nil
}

func writeRecord(o *model.Object, lang string, rec Record) {
	o.Set(model.PropTranslationLanguage, lang)
	o.Set(model.PropTranslationTitle, rec.Title)
	o.Set(model.PropTranslationStatus, string(rec.Status))
	o.SetBool(model.PropTranslationIsDefault, rec.IsDefault)
}

// Records reads the PageTranslation records previously written by SetLanguageData.
func Records(doc *model.Document) Data {
	data := make(Data)
	if doc == nil {
		return data
	}
	for _, obj := range doc.ObjectsOf(model.ClassPageTranslation) {
		lang := obj.String(model.PropTranslationLanguage)
		if lang == "" {
			continue
		}
		if _, seen := data[lang]; seen {
			continue
		}
		status := ParseStatus(obj.String(model.PropTranslationStatus))
		data[lang] = Record{
			Title:         obj.String(model.PropTranslationTitle),
			Status:        status,
			IsDefault:     obj.Bool(model.PropTranslationIsDefault),
			HasTranslated: status == Translated,
		}
	}
	return data
}

// DefaultLanguage returns the default translation language declared in doc's content.
func DefaultLanguage(doc *model.Document, syntaxes *richtext.Registry) (string, error) {
	data, err := LanguageData(doc, syntaxes)
	if err != nil {
		return "", err
	}
	lang, _ := data.Default()
	return lang, nil
}

// TranslatedTitle returns doc's title in lang, or in its default language when lang is
// empty. It falls back to the document title.
func TranslatedTitle(doc *model.Document, syntaxes *richtext.Registry, lang string) (string, error) {
	if doc == nil {
		return "", nil
	}
	data, err := LanguageData(doc, syntaxes)
	if err != nil {
		return "", err
	}
	if lang == "" {
		lang, _ = data.Default()
	}
	if rec, ok := data.Lookup(lang); ok && rec.Title != "" {
		return rec.Title, nil
	}
	return doc.Title, nil
}
