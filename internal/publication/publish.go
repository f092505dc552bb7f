package publication

import (
	"context"
	stderrors "errors"
	"log/slog"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/events"
	"git.home.luguber.info/inful/bookversions/internal/frontmatterops"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/metrics"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// Publish runs the publication configured on req.Configuration. Configuration and
// preparation problems abort the run before anything is written. Once pages are being
// copied, a page that cannot be written is recorded in the result and the run goes on.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	start := p.now()
	ctx = repository.WithAuthor(ctx, req.User)
	log := p.logger.With(logfields.Config(req.Configuration.String()), logfields.JobID(req.JobID))

	cfg, err := LoadConfiguration(ctx, p.nav, req.Configuration)
	if err != nil {
		log.Error("Invalid publication configuration", logfields.Error(err))
		return nil, err
	}
	result := &Result{Configuration: cfg.Ref, Destination: cfg.Destination}
	log = log.With(logfields.Space(cfg.Destination.String()))
	log.Info("Starting publication", logfields.Page(cfg.Source.String()),
		logfields.Version(cfg.Version.String()), logfields.Variant(cfg.Variant.String()),
		logfields.Language(cfg.Language), slog.String("behaviour", string(cfg.Behaviour)))
	p.emit(ctx, events.New(events.PublicationStarted, req.JobID, cfg.Ref.String(), map[string]any{
		"destination": cfg.Destination.String(),
		"version":     cfg.Version.String(),
	}))

	existing, inUse, err := p.destinationInUse(ctx, cfg.Destination)
	if err != nil {
		return nil, err
	}
	if inUse && cfg.Behaviour == BehaviourCancel {
		log.Info("Publication cancelled because the destination space is not empty")
		result.Cancelled = true
		result.Duration = p.now().Sub(start)
		p.emit(ctx, events.New(events.PublicationCompleted, req.JobID, cfg.Ref.String(), map[string]any{"cancelled": true}))
		return result, nil
	}

	r, err := p.prepare(ctx, cfg)
	if err != nil {
		log.Error("Failed to prepare publication", logfields.Error(err))
		return nil, err
	}

	if cfg.Behaviour == BehaviourRepublish && len(existing) > 0 {
		log.Info("Clearing destination space", slog.Int("documents", len(existing)))
		for _, ref := range existing {
			if err := p.store.Delete(ctx, ref); err != nil && !stderrors.Is(err, repository.ErrNotFound) {
				return result, errors.WriteFailed(ref.String(), err)
			}
			result.Cleared++
		}
	}

	var removals []model.DocumentRef
	total := len(r.pages)
	for i, page := range r.pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if req.Progress != nil {
			req.Progress(i+1, total, page)
		}
		plan, err := p.planPage(ctx, r, page)
		if err != nil {
			p.pageFailed(ctx, log, req, result, page, err)
			continue
		}
		if !plan.included() {
			if plan.Decision.Reason == ReasonNotPage {
				log.Debug("Skipping document that is not a page", logfields.Page(page.String()))
				continue
			}
			if plan.Decision.Deleted {
				removals = append(removals, plan.Published)
			}
			result.Skipped++
			p.metrics.IncPageOutcome(metrics.PageSkipped)
			continue
		}

		written, err := p.publishPage(ctx, r, plan)
		if err != nil {
			p.pageFailed(ctx, log, req, result, page, err)
			continue
		}
		if !written {
			result.Unchanged++
			p.metrics.IncPageOutcome(metrics.PageUnchanged)
			continue
		}
		result.Published++
		p.metrics.IncPageOutcome(metrics.PagePublished)
		p.emit(ctx, events.New(events.PagePublished, req.JobID, plan.Published.String(), map[string]any{
			"source":  plan.Content.Ref.String(),
			"comment": r.comment,
		}))
	}

	if cfg.Behaviour == BehaviourUpdate {
		for _, ref := range removals {
			removed, err := p.removePublished(ctx, ref)
			if err != nil {
				p.pageFailed(ctx, log, req, result, ref, err)
				continue
			}
			if removed {
				log.Info("Removed published page of deleted content", logfields.Page(ref.String()))
				result.Removed++
				p.metrics.IncPageOutcome(metrics.PageRemoved)
			}
		}
	}

	if cfg.PageOrder {
		result.PageOrderErrors = p.copyPageOrder(ctx, r)
	}

	if err := p.recordPublication(ctx, r); err != nil {
		log.Error("Failed to record publication metadata", logfields.Error(err))
		return result, err
	}

	if p.archiver != nil {
		snap := Snapshot{
			Configuration: cfg.Ref,
			Destination:   cfg.Destination,
			VersionName:   r.scope.VersionName,
			Language:      cfg.Language,
			User:          req.User,
		}
		if !cfg.Variant.IsZero() {
			snap.VariantName = cfg.Variant.PageName()
		}
		if err := p.archiver.Archive(ctx, snap); err != nil {
			log.Warn("Failed to archive published space", logfields.Error(err))
		}
	}

	result.Duration = p.now().Sub(start)
	p.metrics.ObservePublicationDuration(result.Duration)
	p.emit(ctx, events.New(events.PublicationCompleted, req.JobID, cfg.Ref.String(), map[string]any{
		"published": result.Published,
		"unchanged": result.Unchanged,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"removed":   result.Removed,
	}))
	log.Info("Publication finished",
		slog.Int("published", result.Published),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Int("removed", result.Removed),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

// publishPage writes the published copy of one eligible page. It reports false when the
// existing copy already matches.
func (p *Publisher) publishPage(ctx context.Context, r *run, plan pagePlan) (bool, error) {
	published, err := p.nav.Document(ctx, plan.Published)
	if err != nil {
		return false, err
	}

	next := plan.Content.Clone()
	next.Ref = plan.Published
	next.RemoveObjects(model.ExcludedFromPublication...)
	next.Hidden = false
	next.Fingerprint = ""

	if r.cfg.Language != "" {
		if err := p.mergeTranslation(next, published, r.cfg.Language); err != nil {
			return false, err
		}
	}
	if _, err := p.engine.TransformDocument(ctx, next, plan.Content.Ref, r.scope); err != nil {
		return false, err
	}

	fingerprint, _, err := frontmatterops.UpsertFingerprint(next)
	if err != nil {
		return false, err
	}
	if published != nil {
		current, err := frontmatterops.ComputeFingerprint(published)
		if err == nil && current == fingerprint {
			p.logger.Debug("Published page is up to date", logfields.Page(plan.Published.String()))
			return false, nil
		}
	}

	p.logger.Debug("Copying page", slog.String("from", plan.Content.Ref.String()), slog.String("to", plan.Published.String()))
	if err := p.store.Save(ctx, next, r.comment); err != nil {
		return false, errors.WriteFailed(plan.Published.String(), err)
	}
	return true, nil
}

func (p *Publisher) removePublished(ctx context.Context, ref model.DocumentRef) (bool, error) {
	err := p.store.Delete(ctx, ref)
	if stderrors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.WriteFailed(ref.String(), err)
	}
	return true, nil
}

func (p *Publisher) pageFailed(ctx context.Context, log *slog.Logger, req Request, result *Result, page model.DocumentRef, err error) {
	log.Error("Failed to publish page", logfields.Page(page.String()), logfields.Error(err))
	result.Failed++
	result.Failures = append(result.Failures, PageFailure{Page: page, Error: err.Error()})
	p.metrics.IncPageOutcome(metrics.PageFailed)
	p.emit(ctx, events.New(events.PageFailed, req.JobID, page.String(), map[string]any{"error": err.Error()}))
}
