package publication

import (
	"context"
	"strings"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// copyPageOrder copies the pinned child pages of every preferences document under the
// source to the destination, keeping only entries whose page was published. Failures
// are logged and counted; pages already written stay.
func (p *Publisher) copyPageOrder(ctx context.Context, r *run) int {
	refs, err := p.store.Query(ctx, repository.Query{Under: r.cfg.Source.Space, Name: model.WebPreferences})
	if err != nil {
		p.logger.Error("Failed to list preferences for page order", logfields.Error(err))
		return 1
	}
	failures := 0
	for _, ref := range refs {
		if err := p.copyPreferences(ctx, r, ref); err != nil {
			p.logger.Warn("Failed to copy page order", logfields.Page(ref.String()), logfields.Error(err))
			failures++
		}
	}
	return failures
}

func (p *Publisher) copyPreferences(ctx context.Context, r *run, ref model.DocumentRef) error {
	src, err := p.nav.Document(ctx, ref)
	if err != nil || src == nil {
		return err
	}
	target := publishedRef(ref, r.cfg.Source, r.cfg.Destination)
	doc, err := p.nav.Document(ctx, target)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = model.NewDocument(target)
		doc.Hidden = true
		doc.AddObject(model.ClassPreferences)
	} else {
		doc = doc.Clone()
	}

	if pinned := src.Object(model.ClassPinnedChildPages); pinned != nil {
		var kept []string
		for _, entry := range pinned.List(model.PropPinnedChildPages) {
			name := strings.TrimSuffix(entry, "/")
			if name == "" {
				continue
			}
			ok, err := p.nav.Exists(ctx, target.Space.Child(name).Home())
			if err != nil {
				return err
			}
			if ok {
				kept = append(kept, entry)
			}
		}
		doc.EnsureObject(model.ClassPinnedChildPages).SetList(model.PropPinnedChildPages, kept)
	}
	if err := p.store.Save(ctx, doc, r.comment); err != nil {
		return errors.WriteFailed(target.String(), err)
	}
	return nil
}
