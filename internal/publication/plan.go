package publication

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/eligibility"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/library"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/transform"
)

// Skip reasons that precede the eligibility rules.
const (
	ReasonNotPage   eligibility.Reason = "not_a_page"
	ReasonNoContent eligibility.Reason = "no_content"
)

// run is the read-only state shared by every page of one publication.
type run struct {
	cfg        *Configuration
	collection model.DocumentRef
	collTitle  string
	verTitle   string
	varTitle   string
	comment    string
	criteria   eligibility.Criteria
	libraries  *library.Table
	scope      *transform.Scope
	pages      []model.DocumentRef
}

// pagePlan is what a run does with one source page.
type pagePlan struct {
	Page      model.DocumentRef
	Content   *model.Document
	Published model.DocumentRef
	Decision  eligibility.Decision
}

func (pp pagePlan) included() bool { return pp.Content != nil && pp.Decision.Include }

// destinationInUse reports whether the destination holds anything besides its home
// and preferences documents.
func (p *Publisher) destinationInUse(ctx context.Context, target model.SpaceRef) ([]model.DocumentRef, bool, error) {
	refs, err := p.store.Query(ctx, repository.Query{Under: target})
	if err != nil {
		return nil, false, errors.StoreUnavailable("query destination", err)
	}
	for _, ref := range refs {
		if !ref.Space.Equal(target) || (ref.Name != model.WebHome && ref.Name != model.WebPreferences) {
			return refs, true, nil
		}
	}
	return refs, false, nil
}

// prepare resolves everything a run needs before the first page is written.
func (p *Publisher) prepare(ctx context.Context, cfg *Configuration) (*run, error) {
	ok, err := p.nav.Exists(ctx, cfg.Source)
	if err != nil {
		return nil, errors.StoreUnavailable("read source", err)
	}
	if !ok {
		return nil, errors.NotFound(cfg.Source.String()).WithContext("field", model.PropConfigSource)
	}
	coll, ok, err := p.nav.Locate(ctx, cfg.Source)
	if err != nil {
		return nil, errors.StoreUnavailable("locate collection", err)
	}
	if !ok {
		return nil, errors.ValidationFailed(model.PropConfigSource, "source is not inside a book or library")
	}

	r := &run{cfg: cfg, collection: coll}
	if r.collTitle, err = p.nav.Title(ctx, coll); err != nil {
		return nil, errors.StoreUnavailable("read collection", err)
	}
	version, err := p.nav.Document(ctx, cfg.Version)
	if err != nil {
		return nil, errors.StoreUnavailable("read version", err)
	}
	if !model.KindOf(version).Has(model.KindVersion) {
		return nil, errors.ValidationFailed(model.PropConfigVersion, "not a version: "+cfg.Version.String())
	}
	r.verTitle = titleOf(version)
	r.comment = fmt.Sprintf("Published from [%s], version [%s].", r.collTitle, r.verTitle)

	r.criteria = eligibility.Criteria{OnlyComplete: cfg.OnlyComplete, Language: cfg.Language}
	if !cfg.Variant.IsZero() {
		variant, err := p.nav.Document(ctx, cfg.Variant)
		if err != nil {
			return nil, errors.StoreUnavailable("read variant", err)
		}
		if !model.KindOf(variant).Has(model.KindVariant) {
			return nil, errors.ValidationFailed(model.PropConfigVariant, "not a variant: "+cfg.Variant.String())
		}
		r.varTitle = titleOf(variant)
		r.criteria.Variant = eligibility.Variant{
			Ref:            cfg.Variant,
			ExcludeOutside: variant.Object(model.ClassVariant).Bool(model.PropExcludePagesOutsideVariant),
		}
	}

	if r.libraries, err = p.libs.UsedPublishedWithInheritance(ctx, coll, cfg.Version); err != nil {
		return nil, errors.StoreUnavailable("resolve libraries", err)
	}
	for _, gap := range r.libraries.Gaps() {
		p.metrics.IncResolutionGap(string(gap.Status))
	}

	versionName := collection.VersionName(cfg.Version)
	r.scope = &transform.Scope{
		Maps: transform.NewSpaceMaps(transform.Run{
			Source:     cfg.Source,
			Collection: coll,
			Target:     cfg.Destination,
			Libraries:  r.libraries.Published(versionName),
		}),
		VersionName: versionName,
		Variant:     cfg.Variant,
		Libraries:   r.libraries,
	}

	if r.pages, err = p.nav.PageTree(ctx, cfg.Source); err != nil {
		return nil, errors.StoreUnavailable("list pages", err)
	}
	return r, nil
}

// planPage resolves the content a page would be published from, its published location
// and whether it is eligible.
func (p *Publisher) planPage(ctx context.Context, r *run, page model.DocumentRef) (pagePlan, error) {
	pp := pagePlan{Page: page, Published: publishedRef(page, r.cfg.Source, r.cfg.Destination)}
	doc, err := p.nav.Document(ctx, page)
	if err != nil {
		return pp, err
	}
	kind := model.KindOf(doc)
	if !kind.Has(model.KindPage) {
		pp.Decision = eligibility.Decision{Reason: ReasonNotPage}
		return pp, nil
	}

	contentRef := page
	if kind.Has(model.KindVersionedPage) {
		ref, ok, err := p.versions.ResolveContent(ctx, page, r.cfg.Version)
		if err != nil {
			return pp, err
		}
		if !ok {
			p.logger.Warn("No content for the published version or the versions it inherits from",
				logfields.Page(page.String()), logfields.Version(r.cfg.Version.String()))
			pp.Decision = eligibility.Decision{Reason: ReasonNoContent}
			return pp, nil
		}
		contentRef = ref
	}
	content, err := p.nav.Document(ctx, contentRef)
	if err != nil {
		return pp, err
	}
	if content == nil {
		pp.Decision = eligibility.Decision{Reason: ReasonNoContent}
		return pp, nil
	}
	pp.Content = content
	if pp.Decision, err = p.filter.Decide(content, r.criteria); err != nil {
		return pp, err
	}
	if !pp.Decision.Include {
		p.logger.Info("Page is not published", logfields.Page(page.String()),
			slog.String("content", contentRef.String()),
			logfields.Reason(pp.Decision.Message()))
	}
	return pp, nil
}

// publishedRef maps a source page to its location under the destination. Pages are
// placed relative to the publication source.
func publishedRef(page, source model.DocumentRef, target model.SpaceRef) model.DocumentRef {
	return model.ReplaceParent(page, source.Space, target)
}

func titleOf(doc *model.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	return doc.Ref.PageName()
}
