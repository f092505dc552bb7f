// Package eligibility decides whether a page takes part in a publication run.
package eligibility

import (
	"fmt"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
	"git.home.luguber.info/inful/bookversions/internal/translation"
)

// Reason explains why a page was excluded. The empty reason means included.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMarkedDeleted      Reason = "marked_deleted"
	ReasonNotComplete        Reason = "not_complete"
	ReasonVariantOnly        Reason = "variant_content_without_variant"
	ReasonOutsideVariant     Reason = "outside_variant"
	ReasonTranslationMissing Reason = "translation_missing"
	ReasonNeverTranslated    Reason = "not_translated"
)

// Variant is the variant selected for a run.
type Variant struct {
	Ref            model.DocumentRef
	ExcludeOutside bool
}

// Selected reports whether a variant was chosen.
func (v Variant) Selected() bool { return !v.Ref.IsZero() }

// Criteria holds the run settings that eligibility depends on.
type Criteria struct {
	OnlyComplete bool
	Variant      Variant
	Language     string
}

// Decision is the outcome for one page.
type Decision struct {
	Include bool
	Reason  Reason
	// Deleted is set whenever the page carries the deletion marker; its published
	// counterpart must then be removed.
	Deleted bool
	Status  model.PageStatus
}

// Message describes the decision for logs and previews.
func (d Decision) Message() string {
	switch d.Reason {
	case ReasonNone:
		return "page is published"
	case ReasonMarkedDeleted:
		return "page is marked as deleted"
	case ReasonNotComplete:
		if d.Status == "" {
			return "page has no status and only complete pages are published"
		}
		return fmt.Sprintf("page status is %s and only complete pages are published", d.Status)
	case ReasonVariantOnly:
		return "page belongs to variants and no variant is published"
	case ReasonOutsideVariant:
		return "page does not belong to the published variant"
	case ReasonTranslationMissing:
		return "page has no translation for the published language"
	case ReasonNeverTranslated:
		return "page translation for the published language was never completed"
	}
	return string(d.Reason)
}

// Filter evaluates eligibility rules against content documents.
type Filter struct {
	syntaxes *richtext.Registry
}

// NewFilter creates a Filter parsing content with syntaxes.
func NewFilter(syntaxes *richtext.Registry) *Filter {
	if syntaxes == nil {
		syntaxes = richtext.DefaultRegistry()
	}
	return &Filter{syntaxes: syntaxes}
}

// Decide applies the rules in order, the first exclusion winning: deletion marker,
// completeness, variant content without a variant, variant membership, translation.
// doc is the content that would be published: the resolved fork of a versioned page or
// the page itself.
func (f *Filter) Decide(doc *model.Document, c Criteria) (Decision, error) {
	d := Decision{
		Include: true,
		Deleted: doc.HasObject(model.ClassDeletedContent),
		Status:  model.PageStatus(doc.Object(model.ClassPageStatus).String(model.PropStatus)),
	}
	exclude := func(r Reason) (Decision, error) {
		d.Include = false
		d.Reason = r
		return d, nil
	}

	if d.Deleted {
		return exclude(ReasonMarkedDeleted)
	}
	if c.OnlyComplete && d.Status != model.StatusComplete {
		return exclude(ReasonNotComplete)
	}

	membership := doc.Object(model.ClassVariantsList).List(model.PropVariantsList)
	if !c.Variant.Selected() {
		if len(membership) > 0 {
			return exclude(ReasonVariantOnly)
		}
	} else if len(membership) > 0 && !isMember(membership, doc.Ref, c.Variant.Ref) {
		// Pages without any membership are never excluded here, whatever the
		// variant's ExcludeOutside flag says.
		return exclude(ReasonOutsideVariant)
	}

	if c.Language != "" {
		data, err := translation.LanguageData(doc, f.syntaxes)
		if err != nil {
			return d, err
		}
		rec, ok := data.Lookup(c.Language)
		if !ok {
			return exclude(ReasonTranslationMissing)
		}
		if !rec.HasTranslated {
			return exclude(ReasonNeverTranslated)
		}
	}
	return d, nil
}

func isMember(values []string, base, variant model.DocumentRef) bool {
	for _, v := range values {
		if collection.VariantMatches(v, base, variant) {
			return true
		}
	}
	return false
}
