// Package jobs runs publications, version content removal and page status changes as
// asynchronous jobs.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/events"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/publication"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// Service is the job surface: every operation returns a job id at once and does its
// work on the queue.
type Service struct {
	queue     *Queue
	store     repository.Store
	publisher *publication.Publisher
	nav       *collection.Navigator
	authz     auth.Authorizer
	events    events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	// idMu serializes id allocation with submission.
	idMu sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAuthorizer sets the rights check. The default allows everything.
func WithAuthorizer(a auth.Authorizer) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.authz = a
		}
	}
}

// WithEventPublisher emits removal and status events on ep.
func WithEventPublisher(ep events.Publisher) ServiceOption {
	return func(s *Service) {
		if ep != nil {
			s.events = ep
		}
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceClock overrides the time source used for job ids.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service submitting work to queue.
func NewService(store repository.Store, queue *Queue, publisher *publication.Publisher, opts ...ServiceOption) *Service {
	s := &Service{
		queue:     queue,
		store:     store,
		publisher: publisher,
		nav:       publisher.Navigator(),
		authz:     auth.AllowAll{},
		events:    events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Queue returns the queue jobs are submitted to.
func (s *Service) Queue() *Queue { return s.queue }

// Snapshot returns the current state of a job.
func (s *Service) Snapshot(id string) (*Job, bool) { return s.queue.Snapshot(id) }

// Wait blocks until job id is done.
func (s *Service) Wait(ctx context.Context, id string) (*Job, error) { return s.queue.Wait(ctx, id) }

// Publish queues the publication configured on configRef on behalf of user.
func (s *Service) Publish(_ context.Context, configRef model.DocumentRef, user string) (string, error) {
	if configRef.IsZero() {
		return "", errors.ConfigRequired("configuration")
	}
	return s.submit(PrefixPublication, configRef.PageName(), TypePublish, user, configRef.String(), func(id string) Runner {
		return func(ctx context.Context, progress ProgressFunc) (any, error) {
			res, err := s.publish(ctx, id, configRef, user, progress)
			if err != nil {
				s.emit(context.WithoutCancel(ctx), events.New(events.PublicationFailed, id, configRef.String(),
					map[string]any{"error": err.Error()}))
				return nil, err
			}
			return res, nil
		}
	})
}

// submit queues a job under NewID(prefix, discriminant, now). While that id is taken
// the timestamp moves forward one millisecond.
func (s *Service) submit(prefix, discriminant string, typ Type, user, subject string, runner func(id string) Runner) (string, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	at := s.now()
	id := NewID(prefix, discriminant, at)
	for {
		if _, taken := s.queue.Snapshot(id); !taken {
			break
		}
		at = at.Add(time.Millisecond)
		id = NewID(prefix, discriminant, at)
	}
	if _, err := s.queue.Submit(id, typ, user, subject, runner(id)); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) publish(ctx context.Context, id string, configRef model.DocumentRef, user string, progress ProgressFunc) (*publication.Result, error) {
	cfg, err := publication.LoadConfiguration(ctx, s.nav, configRef)
	if err != nil {
		return nil, err
	}
	collectionRef, ok, err := s.nav.Locate(ctx, cfg.Source)
	if err != nil {
		return nil, errors.StoreUnavailable("locate", err)
	}
	if !ok {
		collectionRef = cfg.Source
	}
	for _, target := range []model.DocumentRef{collectionRef, cfg.Destination.Home()} {
		if err := s.authz.Check(ctx, user, auth.RightPublish, target); err != nil {
			s.logger.Error("User is missing the publish right",
				logfields.JobID(id), logfields.User(user), logfields.Space(target.Space.String()))
			return nil, err
		}
	}
	return s.publisher.Publish(ctx, publication.Request{
		Configuration: configRef,
		User:          user,
		JobID:         id,
		Progress: func(step, total int, page model.DocumentRef) {
			progress(step, total, page.String())
		},
	})
}

// Preview describes what publishing configRef would do. It runs synchronously and
// needs the view right on the configuration.
func (s *Service) Preview(ctx context.Context, configRef model.DocumentRef, user string) ([]publication.Line, error) {
	if err := s.authz.Check(ctx, user, auth.RightView, configRef); err != nil {
		return nil, err
	}
	return s.publisher.Preview(ctx, configRef)
}

// RemoveVersionContent queues the removal of every content fork of version.
func (s *Service) RemoveVersionContent(_ context.Context, version model.DocumentRef, user string) (string, error) {
	if version.IsZero() {
		return "", errors.ValidationFailed("version", "version reference is required")
	}
	return s.submit(PrefixVersionRemove, collection.VersionName(version), TypeRemoveVersionContent, user, version.String(), func(id string) Runner {
		return func(ctx context.Context, progress ProgressFunc) (any, error) {
			res, err := s.removeVersionContent(ctx, id, version, user, progress)
			if err != nil {
				return nil, err
			}
			return res, nil
		}
	})
}

// SetPagesStatus queues a batch status change.
func (s *Service) SetPagesStatus(_ context.Context, req StatusRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	discriminant := req.User
	if discriminant == "" {
		discriminant = uuid.NewString()
	}
	return s.submit(PrefixSetPageStatus, discriminant, TypeSetPagesStatus, req.User, string(req.Status), func(id string) Runner {
		return func(ctx context.Context, progress ProgressFunc) (any, error) {
			res, err := s.setPagesStatus(ctx, id, req, progress)
			if err != nil {
				return nil, err
			}
			return res, nil
		}
	})
}

func (s *Service) emit(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish event", slog.String("type", string(evt.Type)), logfields.Error(err))
	}
}
