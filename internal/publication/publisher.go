package publication

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/eligibility"
	"git.home.luguber.info/inful/bookversions/internal/events"
	"git.home.luguber.info/inful/bookversions/internal/library"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/metrics"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
	"git.home.luguber.info/inful/bookversions/internal/transform"
	"git.home.luguber.info/inful/bookversions/internal/versioning"
)

// Snapshot describes a finished run for archiving.
type Snapshot struct {
	Configuration model.DocumentRef
	Destination   model.SpaceRef
	VersionName   string
	VariantName   string
	Language      string
	User          string
}

// Archiver records the destination of a finished run outside the store.
type Archiver interface {
	Archive(ctx context.Context, snap Snapshot) error
}

// Publisher runs publications against one store.
type Publisher struct {
	store    repository.Store
	nav      *collection.Navigator
	versions *versioning.Resolver
	libs     *library.Resolver
	filter   *eligibility.Filter
	syntaxes *richtext.Registry
	macros   *transform.Registry
	engine   *transform.Engine

	metrics  metrics.Recorder
	events   events.Publisher
	archiver Archiver
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMetrics records run and page outcomes on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Publisher) {
		if r != nil {
			p.metrics = r
		}
	}
}

// WithEvents emits lifecycle events on ep.
func WithEvents(ep events.Publisher) Option {
	return func(p *Publisher) {
		if ep != nil {
			p.events = ep
		}
	}
}

// WithArchiver snapshots the destination after every completed run.
func WithArchiver(a Archiver) Option {
	return func(p *Publisher) { p.archiver = a }
}

// WithSyntaxes sets the content syntaxes. The default handles markdown with macros.
func WithSyntaxes(reg *richtext.Registry) Option {
	return func(p *Publisher) {
		if reg != nil {
			p.syntaxes = reg
		}
	}
}

// WithMacros sets the macro descriptors used when rewriting macro parameters.
func WithMacros(reg *transform.Registry) Option {
	return func(p *Publisher) {
		if reg != nil {
			p.macros = reg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// New creates a Publisher over store.
func New(store repository.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		syntaxes: richtext.DefaultRegistry(),
		macros:   transform.NewRegistry(),
		metrics:  metrics.NoopRecorder{},
		events:   events.NoopPublisher{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.nav = collection.NewNavigator(store, p.logger)
	p.versions = versioning.NewResolver(p.nav)
	p.libs = library.NewResolver(p.nav, p.versions)
	p.filter = eligibility.NewFilter(p.syntaxes)
	p.engine = transform.NewEngine(p.nav, p.syntaxes, p.macros)
	return p
}

// readOnly returns a copy of p that memoizes reads and reports nothing, for runs that
// write nothing.
func (p *Publisher) readOnly() *Publisher {
	c := *p
	c.nav = p.nav.Cached()
	c.versions = versioning.NewResolver(c.nav)
	c.libs = library.NewResolver(c.nav, c.versions)
	c.engine = transform.NewEngine(c.nav, c.syntaxes, c.macros)
	c.metrics = metrics.NoopRecorder{}
	c.events = events.NoopPublisher{}
	c.archiver = nil
	return &c
}

// Navigator returns the navigator the publisher reads collections with.
func (p *Publisher) Navigator() *collection.Navigator { return p.nav }

func (p *Publisher) emit(ctx context.Context, evt events.Event) {
	if err := p.events.Publish(ctx, evt); err != nil {
		p.logger.Warn("Failed to publish event", slog.String("type", string(evt.Type)), logfields.Error(err))
	}
}
