// Package lifecycle keeps collections consistent when versions and pages are created,
// renamed or deleted.
package lifecycle

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/library"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
	"git.home.luguber.info/inful/bookversions/internal/versioning"
)

// ContentRemover starts the removal of a version's content and returns the job id.
type ContentRemover interface {
	RemoveVersionContent(ctx context.Context, version model.DocumentRef, user string) (string, error)
}

// Hooks reacts to changes of collection documents.
type Hooks struct {
	store    repository.Store
	nav      *collection.Navigator
	versions *versioning.Resolver
	libs     *library.Resolver
	syntaxes *richtext.Registry
	authz    auth.Authorizer
	remover  ContentRemover
	logger   *slog.Logger
}

// Option configures Hooks.
type Option func(*Hooks)

// WithAuthorizer sets the rights check. The default allows everything.
func WithAuthorizer(a auth.Authorizer) Option {
	return func(h *Hooks) {
		if a != nil {
			h.authz = a
		}
	}
}

// WithRemover sets what removes a deleted version's content. Without one, VersionDeleted
// only repairs the version chain.
func WithRemover(r ContentRemover) Option {
	return func(h *Hooks) { h.remover = r }
}

// WithSyntaxes sets the content syntaxes used to read translations.
func WithSyntaxes(reg *richtext.Registry) Option {
	return func(h *Hooks) {
		if reg != nil {
			h.syntaxes = reg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hooks) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates Hooks over store.
func New(store repository.Store, opts ...Option) *Hooks {
	h := &Hooks{
		store:    store,
		syntaxes: richtext.DefaultRegistry(),
		authz:    auth.AllowAll{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.nav = collection.NewNavigator(store, h.logger)
	h.versions = versioning.NewResolver(h.nav)
	h.libs = library.NewResolver(h.nav, h.versions)
	return h
}
