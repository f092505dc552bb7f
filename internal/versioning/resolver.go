// Package versioning resolves which version's content applies to a page by walking
// the preceding-version chain of a collection.
package versioning

import (
	"context"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// orphanChainBound caps chain walks for versions that live outside any collection.
const orphanChainBound = 1024

// Resolver walks preceding-version chains.
type Resolver struct {
	nav    *collection.Navigator
	logger *slog.Logger
}

// NewResolver creates a Resolver over nav.
func NewResolver(nav *collection.Navigator) *Resolver {
	return &Resolver{nav: nav, logger: nav.Logger()}
}

// PreviousVersion returns the version version inherits from. It reports false for
// root versions and, with a warning, for documents missing the version record.
func (r *Resolver) PreviousVersion(ctx context.Context, version model.DocumentRef) (model.DocumentRef, bool, error) {
	if version.IsZero() {
		return model.DocumentRef{}, false, nil
	}
	doc, err := r.nav.Document(ctx, version)
	if err != nil {
		return model.DocumentRef{}, false, err
	}
	obj := doc.Object(model.ClassVersion)
	if obj == nil {
		r.logger.Warn("Version is missing its version record", logfields.Version(version.String()))
		return model.DocumentRef{}, false, nil
	}
	value := strings.TrimSpace(obj.String(model.PropPrecedingVersion))
	if value == "" {
		return model.DocumentRef{}, false, nil
	}
	prev, err := model.ParseDocumentRef(value, version)
	if err != nil {
		r.logger.Warn("Ignoring malformed preceding version", logfields.Version(version.String()), logfields.Error(err))
		return model.DocumentRef{}, false, nil
	}
	return prev, true, nil
}

// Ascending returns version followed by its ancestors, root last. A chain that does not
// terminate within the collection's version count is a cycle: it is logged and an
// empty result is returned.
func (r *Resolver) Ascending(ctx context.Context, coll, version model.DocumentRef) ([]model.DocumentRef, error) {
	k, err := r.nav.Kind(ctx, version)
	if err != nil || !k.Has(model.KindVersion) {
		return nil, err
	}
	versions, err := r.nav.Versions(ctx, coll)
	if err != nil {
		return nil, err
	}
	bound := len(versions)

	result := []model.DocumentRef{version}
	current := version
	i := 0
	for i < bound+1 {
		prev, ok, err := r.PreviousVersion(ctx, current)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		result = append(result, prev)
		current = prev
		i++
	}
	if i > bound {
		cycle := errors.CycleDetected(version.String(), bound)
		r.logger.Error("Preceding version chain does not terminate", logfields.Collection(coll.String()),
			logfields.Version(version.String()), logfields.Error(cycle))
		return nil, nil
	}
	return result, nil
}

// ResolveContent returns the content fork of page that applies for version: the fork
// named after version when it exists, otherwise the nearest fork along the preceding
// versions. It reports false when no version on the chain has content.
func (r *Resolver) ResolveContent(ctx context.Context, page, version model.DocumentRef) (model.DocumentRef, bool, error) {
	if page.IsZero() || version.IsZero() {
		return model.DocumentRef{}, false, nil
	}
	fork := collection.ContentRef(page, version)
	ok, err := r.nav.Exists(ctx, fork)
	if err != nil || ok {
		return fork, ok, err
	}
	return r.precedingContent(ctx, page, version)
}

func (r *Resolver) precedingContent(ctx context.Context, page, version model.DocumentRef) (model.DocumentRef, bool, error) {
	bound, err := r.chainBound(ctx, version)
	if err != nil {
		return model.DocumentRef{}, false, err
	}
	current := version
	for hops := 0; ; hops++ {
		fork := collection.ContentRef(page, current)
		ok, err := r.nav.Exists(ctx, fork)
		if err != nil {
			return model.DocumentRef{}, false, err
		}
		if ok {
			return fork, true, nil
		}
		if hops >= bound {
			cycle := errors.CycleDetected(version.String(), bound)
			r.logger.Error("Preceding version chain does not terminate", logfields.Page(page.String()),
				logfields.Version(version.String()), logfields.Error(cycle))
			return model.DocumentRef{}, false, nil
		}
		prev, ok, err := r.PreviousVersion(ctx, current)
		if err != nil || !ok {
			return model.DocumentRef{}, false, err
		}
		current = prev
	}
}

// chainBound is the number of versions in version's collection.
func (r *Resolver) chainBound(ctx context.Context, version model.DocumentRef) (int, error) {
	coll, ok, err := r.nav.Locate(ctx, version)
	if err != nil {
		return 0, err
	}
	if !ok {
		return orphanChainBound, nil
	}
	versions, err := r.nav.Versions(ctx, coll)
	if err != nil {
		return 0, err
	}
	return len(versions), nil
}
