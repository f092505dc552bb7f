package publication

import (
	"context"
	"fmt"
	"slices"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// recordPublication writes the run's metadata: the Publication record on the source
// collection, then the PublishedCollection record on the destination home.
func (p *Publisher) recordPublication(ctx context.Context, r *run) error {
	if err := p.recordMaster(ctx, r); err != nil {
		return err
	}
	return p.recordDestination(ctx, r)
}

func (p *Publisher) recordMaster(ctx context.Context, r *run) error {
	doc, err := p.nav.Document(ctx, r.collection)
	if err != nil {
		return errors.StoreUnavailable("read collection", err)
	}
	if doc == nil {
		return errors.NotFound(r.collection.String())
	}
	doc = doc.Clone()
	id := r.cfg.PublicationID()
	source := r.cfg.Source.String()

	var rec *model.Object
	for _, obj := range doc.ObjectsOf(model.ClassPublication) {
		if obj.String(model.PropPublicationID) == id && obj.String(model.PropPublicationSource) == source {
			rec = obj
			break
		}
	}
	if rec == nil {
		rec = doc.AddObject(model.ClassPublication)
		rec.Set(model.PropPublicationID, id)
		rec.Set(model.PropPublicationSource, source)
	}
	rec.Set(model.PropPublicationPublishedSpace, r.cfg.Destination.Home().String())

	comment := fmt.Sprintf("Publication of space [%s], version [%s].", source, r.verTitle)
	if r.varTitle != "" {
		comment = fmt.Sprintf("Publication of space [%s], version [%s], variant [%s].", source, r.verTitle, r.varTitle)
	}
	p.logger.Debug("Recording publication on collection", logfields.Collection(r.collection.String()),
		logfields.Space(r.cfg.Destination.String()))
	if err := p.store.Save(ctx, doc, comment); err != nil {
		return errors.WriteFailed(r.collection.String(), err)
	}
	return nil
}

func (p *Publisher) recordDestination(ctx context.Context, r *run) error {
	home := r.cfg.Destination.Home()
	doc, err := p.nav.Document(ctx, home)
	if err != nil {
		return errors.StoreUnavailable("read destination", err)
	}
	if doc == nil {
		doc = model.NewDocument(home)
		doc.Title = r.collTitle
	} else {
		doc = doc.Clone()
	}

	rec := doc.EnsureObject(model.ClassPublishedCollection)
	rec.Set(model.PropPublishedMasterName, r.collTitle)
	rec.Set(model.PropPublishedBookVersionName, r.verTitle)
	rec.Set(model.PropPublishedVariantName, r.varTitle)

	languages := rec.List(model.PropPublishedLanguages)
	if r.cfg.Language != "" {
		if !slices.Contains(languages, r.cfg.Language) {
			languages = append(languages, r.cfg.Language)
		}
	} else {
		configured, err := p.nav.ConfiguredLanguages(ctx, r.collection)
		if err != nil {
			return errors.StoreUnavailable("read languages", err)
		}
		languages = configured
	}
	rec.SetList(model.PropPublishedLanguages, languages)

	if r.cfg.Title != "" {
		doc.Title = r.cfg.Title
	}
	if err := p.store.Save(ctx, doc, r.comment); err != nil {
		return errors.WriteFailed(home.String(), err)
	}
	return nil
}
