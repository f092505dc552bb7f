// Package transform rewrites the references inside page content so that a published
// copy points at published locations instead of authoring ones.
package transform

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/library"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
	"git.home.luguber.info/inful/bookversions/internal/translation"
)

// Scope holds the inputs shared by every page of a run.
type Scope struct {
	Maps SpaceMaps
	// VersionName is the version selected for the run.
	VersionName string
	Variant     model.DocumentRef
	Libraries   *library.Table
}

// Engine applies reference rewriting to content trees.
type Engine struct {
	nav      *collection.Navigator
	syntaxes *richtext.Registry
	macros   *Registry
	logger   *slog.Logger
}

// NewEngine creates an Engine. Nil registries select the defaults.
func NewEngine(nav *collection.Navigator, syntaxes *richtext.Registry, macros *Registry) *Engine {
	if syntaxes == nil {
		syntaxes = richtext.DefaultRegistry()
	}
	if macros == nil {
		macros = NewRegistry()
	}
	return &Engine{nav: nav, syntaxes: syntaxes, macros: macros, logger: nav.Logger()}
}

// TransformDocument rewrites doc's content in place, parsing and rendering it with the
// document's syntax. origin is the document the content was read from. It reports
// whether the content changed.
func (e *Engine) TransformDocument(ctx context.Context, doc *model.Document, origin model.DocumentRef, scope *Scope) (bool, error) {
	syntax, err := e.syntaxes.Get(doc.Syntax)
	if err != nil {
		return false, err
	}
	tree, err := syntax.Parse(doc.Content)
	if err != nil {
		return false, err
	}
	changed, err := e.Transform(ctx, tree, syntax, origin, scope)
	if err != nil || !changed {
		return false, err
	}
	out, err := syntax.Render(tree)
	if err != nil {
		return false, err
	}
	doc.Content = out
	return true, nil
}

// Transform rewrites tree in place and reports whether anything changed. Macro content
// that is rich text is parsed with syntax, transformed recursively and rendered back.
func (e *Engine) Transform(ctx context.Context, tree *richtext.Document, syntax richtext.Syntax, origin model.DocumentRef, scope *Scope) (bool, error) {
	changed := false

	for _, m := range tree.Macros() {
		isVariant := m.ID == MacroVariant
		if isVariant && !e.variantSelected(m, origin, scope.Variant) {
			e.logger.Debug("Removing variant block", logfields.Page(origin.String()), slog.String("variants", m.ParamValue(ParamVariantName)))
			tree.Remove(m)
			changed = true
			continue
		}
		if !m.HasContent || m.Content == "" {
			if isVariant {
				tree.Remove(m)
				changed = true
			}
			continue
		}
		if e.macros.Describe(m.ID).Content == ContentOpaque {
			continue
		}
		sub, err := syntax.Parse(m.Content)
		if err != nil {
			return changed, err
		}
		subChanged, err := e.Transform(ctx, sub, syntax, origin, scope)
		if err != nil {
			return changed, err
		}
		if !subChanged && !isVariant {
			continue
		}
		content, err := syntax.Render(sub)
		if err != nil {
			return changed, err
		}
		m.Content = content
		if isVariant {
			m.ID = MacroInline
			m.Params = nil
		}
		changed = true
	}

	if e.transformTranslations(tree, origin) {
		changed = true
	}
	libChanged, err := e.transformLibraries(ctx, tree, origin, scope)
	if err != nil {
		return changed, err
	}
	refChanged, err := e.transformReferences(ctx, tree, origin, scope)
	if err != nil {
		return changed, err
	}
	return changed || libChanged || refChanged, nil
}

func (e *Engine) variantSelected(m *richtext.Macro, origin, variant model.DocumentRef) bool {
	if variant.IsZero() {
		return false
	}
	for _, name := range strings.Split(m.ParamValue(ParamVariantName), ",") {
		if collection.VariantMatches(name, origin, variant) {
			return true
		}
	}
	return false
}

// transformTranslations drops translation blocks whose status is set and is not translated.
func (e *Engine) transformTranslations(tree *richtext.Document, origin model.DocumentRef) bool {
	changed := false
	for _, m := range tree.MacrosByID(translation.MacroID) {
		status := m.ParamValue(model.PropTranslationStatus)
		if status == "" || translation.ParseStatus(status) == translation.Translated {
			continue
		}
		e.logger.Debug("Removing untranslated block", logfields.Page(origin.String()),
			logfields.Language(m.ParamValue(model.PropTranslationLanguage)), slog.String("status", status))
		tree.Remove(m)
		changed = true
	}
	return changed
}

// transformLibraries turns library inclusions into plain inclusions of the published
// library page. A versioned origin uses the library configuration of the version its
// content was inherited from.
func (e *Engine) transformLibraries(ctx context.Context, tree *richtext.Document, origin model.DocumentRef, scope *Scope) (bool, error) {
	includes := tree.MacrosByID(MacroIncludeLibrary)
	if len(includes) == 0 {
		return false, nil
	}
	versionName := scope.VersionName
	k, err := e.nav.Kind(ctx, origin)
	if err != nil {
		return false, err
	}
	if k.Has(model.KindVersionedContent) {
		versionName = origin.Name
	}

	changed := false
	for _, m := range includes {
		key := strings.TrimSpace(m.ParamValue(ParamKeyReference))
		if key == "" {
			e.logger.Debug("Library inclusion without key reference ignored", logfields.Page(origin.String()))
			continue
		}
		page, err := model.ParseDocumentRef(key, origin)
		if err != nil {
			e.logger.Warn("Malformed library key reference", logfields.Page(origin.String()), logfields.Error(err))
			continue
		}
		lib, ok, err := e.nav.Locate(ctx, page)
		if err != nil {
			return changed, err
		}
		binding, found := scope.Libraries.Lookup(versionName, lib)
		if !ok || !found || !binding.Resolved() {
			gap := errors.ResolutionGap(lib.String(), versionName, string(binding.Status))
			e.logger.Error("Library has not been published, inclusion left untouched",
				logfields.Page(origin.String()), logfields.Library(lib.String()), logfields.Error(gap))
			continue
		}
		published := model.ReplaceParent(page, lib.Space, binding.PublishedSpace.Space)
		tree.Replace(m, richtext.NewMacro(MacroInclude,
			[]richtext.Param{{Name: ParamIncludeRef, Value: published.String()}}, "", false))
		changed = true
	}
	return changed, nil
}

func (e *Engine) transformReferences(ctx context.Context, tree *richtext.Document, origin model.DocumentRef, scope *Scope) (bool, error) {
	changed := false
	for _, n := range tree.Nodes() {
		var (
			ok  bool
			err error
		)
		switch v := n.(type) {
		case *richtext.Link:
			v.Ref, ok, err = e.rewriteResource(ctx, v.Ref, origin, scope)
		case *richtext.Definition:
			v.Ref, ok, err = e.rewriteResource(ctx, v.Ref, origin, scope)
		case *richtext.Image:
			if v.Ref.Type == richtext.ResourceAttachment || v.Ref.Type == richtext.ResourcePageAttachment {
				v.Ref, ok, err = e.rewriteResource(ctx, v.Ref, origin, scope)
			}
		case *richtext.Macro:
			ok, err = e.rewriteParams(ctx, v, origin, scope)
		}
		if err != nil {
			return changed, err
		}
		changed = changed || ok
	}
	return changed, nil
}

func (e *Engine) rewriteResource(ctx context.Context, r richtext.Resource, origin model.DocumentRef, scope *Scope) (richtext.Resource, bool, error) {
	if strings.TrimSpace(r.Reference) == "" {
		return r, false, nil
	}
	switch r.Type {
	case richtext.ResourceDocument, richtext.ResourcePage:
		value, ok, err := e.rewriteDocument(ctx, r.Reference, r.Type == richtext.ResourcePage, origin, scope)
		if err != nil || !ok {
			return r, false, err
		}
		return richtext.Resource{Type: richtext.ResourceDocument, Reference: value, Typed: true}, true, nil
	case richtext.ResourceAttachment, richtext.ResourcePageAttachment:
		value, ok, err := e.rewriteAttachment(ctx, r.Reference, r.Type == richtext.ResourcePageAttachment, origin, scope)
		if err != nil || !ok {
			return r, false, err
		}
		return richtext.Resource{Type: richtext.ResourceAttachment, Reference: value, Typed: true}, true, nil
	}
	return r, false, nil
}

func (e *Engine) rewriteParams(ctx context.Context, m *richtext.Macro, origin model.DocumentRef, scope *Scope) (bool, error) {
	desc := e.macros.Describe(m.ID)
	changed := false
	names := make([]string, 0, len(desc.Params))
	for name := range desc.Params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		value := m.ParamValue(name)
		if strings.TrimSpace(value) == "" {
			continue
		}
		var (
			out string
			ok  bool
			err error
		)
		switch desc.Params[name] {
		case ParamDocument, ParamPage:
			out, ok, err = e.rewriteDocument(ctx, value, desc.Params[name] == ParamPage, origin, scope)
		case ParamAttachment, ParamPageAttachment:
			out, ok, err = e.rewriteAttachment(ctx, value, desc.Params[name] == ParamPageAttachment, origin, scope)
		}
		if err != nil {
			return changed, err
		}
		if ok {
			m.SetParam(name, out)
			changed = true
		}
	}
	if m.ID == MacroDocumentTree {
		ok, err := e.rewriteTreeRoot(ctx, m, origin, scope)
		if err != nil {
			return changed, err
		}
		changed = changed || ok
	}
	return changed, nil
}

// rewriteTreeRoot handles the "document:X" or "space:X" root of a page tree listing.
// The root is rewritten whenever its serialized equivalent differs.
func (e *Engine) rewriteTreeRoot(ctx context.Context, m *richtext.Macro, origin model.DocumentRef, scope *Scope) (bool, error) {
	root := m.ParamValue(ParamDocumentTreeRoot)
	kind, value, found := strings.Cut(root, ":")
	if root == "" || !found {
		return false, nil
	}
	var ref model.DocumentRef
	switch kind {
	case "document":
		r, err := model.ParseDocumentRef(value, origin)
		if err != nil {
			return false, nil
		}
		ref = r
	case "space":
		s, err := model.ParseSpaceRef(value)
		if err != nil {
			return false, nil
		}
		ref = s.Home()
	default:
		return false, nil
	}
	eq, err := e.equivalent(ctx, ref, scope)
	if err != nil {
		return false, err
	}
	serialized := "document:" + eq.String()
	if serialized == root {
		return false, nil
	}
	m.SetParam(ParamDocumentTreeRoot, serialized)
	return true, nil
}

func (e *Engine) rewriteDocument(ctx context.Context, value string, page bool, origin model.DocumentRef, scope *Scope) (string, bool, error) {
	parse := model.ParseDocumentRef
	if page {
		parse = model.ParsePageRef
	}
	ref, err := parse(value, origin)
	if err != nil {
		e.logger.Debug("Skipping unparsable reference", logfields.Page(origin.String()), slog.String("reference", value))
		return "", false, nil
	}
	eq, err := e.equivalent(ctx, ref, scope)
	if err != nil || eq.Equal(ref) {
		return "", false, err
	}
	return eq.String(), true, nil
}

func (e *Engine) rewriteAttachment(ctx context.Context, value string, page bool, origin model.DocumentRef, scope *Scope) (string, bool, error) {
	parse := model.ParseAttachmentRef
	if page {
		parse = model.ParsePageAttachmentRef
	}
	ref, err := parse(value, origin)
	if err != nil {
		e.logger.Debug("Skipping unparsable attachment reference", logfields.Page(origin.String()), slog.String("reference", value))
		return "", false, nil
	}
	eq, err := e.equivalent(ctx, ref.Doc, scope)
	if err != nil || eq.Equal(ref.Doc) {
		return "", false, err
	}
	return model.AttachmentRef{Doc: eq, Name: ref.Name}.String(), true, nil
}

// equivalent redirects a versioned content fork to its page, then applies the space maps.
func (e *Engine) equivalent(ctx context.Context, ref model.DocumentRef, scope *Scope) (model.DocumentRef, error) {
	k, err := e.nav.Kind(ctx, ref)
	if err != nil {
		return ref, err
	}
	if k.Has(model.KindVersionedContent) {
		ref = collection.PageOf(ref)
	}
	return scope.Maps.Equivalent(ref), nil
}

// Macros returns the engine's macro descriptor registry.
func (e *Engine) Macros() *Registry { return e.macros }
