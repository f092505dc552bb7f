package publication

import (
	"slices"

	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
	"git.home.luguber.info/inful/bookversions/internal/translation"
)

// mergeTranslation narrows doc to its translated block for lang. Without a published
// copy the block becomes the whole content; otherwise the published content is kept and
// its block for lang is replaced, or the block is appended. Content without a translated
// block for lang is left as is.
func (p *Publisher) mergeTranslation(doc, published *model.Document, lang string) error {
	syntax, err := p.syntaxes.Get(doc.Syntax)
	if err != nil {
		return err
	}
	tree, err := syntax.Parse(doc.Content)
	if err != nil {
		return err
	}
	master := findTranslated(tree, syntax, lang)
	if master == nil {
		return nil
	}
	block := richtext.NewMacro(master.ID, slices.Clone(master.Params), master.Content, master.HasContent)

	merged := &richtext.Document{Children: []richtext.Node{block}}
	if published != nil && published.Syntax == doc.Syntax {
		pubTree, err := syntax.Parse(published.Content)
		if err != nil {
			return err
		}
		if old := findTranslated(pubTree, nil, lang); old != nil {
			pubTree.Replace(old, block)
		} else {
			pubTree.Append(&richtext.Text{Value: "\n"}, block)
		}
		merged = pubTree
	}
	out, err := syntax.Render(merged)
	if err != nil {
		return err
	}
	doc.Content = out
	return nil
}

// findTranslated returns the first translated block for lang in document order. A nil
// syntax limits the search to the top level.
func findTranslated(tree *richtext.Document, syntax richtext.Syntax, lang string) *richtext.Macro {
	for _, m := range tree.Macros() {
		if m.ID == translation.MacroID {
			if sameLanguage(m.ParamValue(model.PropTranslationLanguage), lang) &&
				translation.ParseStatus(m.ParamValue(model.PropTranslationStatus)) == translation.Translated {
				return m
			}
			continue
		}
		if syntax == nil || !m.HasContent || m.Content == "" {
			continue
		}
		if nested, err := syntax.Parse(m.Content); err == nil {
			if found := findTranslated(nested, syntax, lang); found != nil {
				return found
			}
		}
	}
	return nil
}

func sameLanguage(a, b string) bool {
	if a == b {
		return true
	}
	ca, err := translation.Canonicalize(a)
	if err != nil {
		return false
	}
	cb, err := translation.Canonicalize(b)
	return err == nil && ca == cb
}
