// Package auth decides whether a user may view, edit, delete or publish a document.
package auth

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Everyone is the user key whose grants apply to all users.
const Everyone = "*"

// Authorizer checks rights. Check returns nil when allowed and a permission error otherwise.
type Authorizer interface {
	Check(ctx context.Context, user string, right Right, ref model.DocumentRef) error
}

// AllowAll grants every right to every user. It is used when authorization is disabled.
type AllowAll struct{}

func (AllowAll) Check(context.Context, string, Right, model.DocumentRef) error { return nil }

type grant struct {
	space  model.SpaceRef // empty matches everything
	rights map[Right]bool
}

func (g grant) allows(right Right, ref model.DocumentRef) bool {
	return g.rights[right] && (g.space.IsZero() || ref.Space.HasPrefix(g.space))
}

// ACL grants rights per user on space prefixes.
type ACL struct {
	registry    *RightRegistry
	defaultUser string
	grants      map[string][]grant
}

// NewACL builds an ACL from the auth configuration. Rights must be known to registry.
func NewACL(cfg config.AuthConfig, registry *RightRegistry) (*ACL, error) {
	if registry == nil {
		registry = DefaultRegistry
	}
	acl := &ACL{
		registry:    registry,
		defaultUser: cfg.DefaultUser,
		grants:      make(map[string][]grant, len(cfg.Users)),
	}
	for user, grants := range cfg.Users {
		for _, g := range grants {
			parsed, err := parseGrant(g, registry)
			if err != nil {
				return nil, errors.ValidationFailed("auth.users."+user, err.Error())
			}
			acl.grants[user] = append(acl.grants[user], parsed)
		}
	}
	return acl, nil
}

func parseGrant(g config.Grant, registry *RightRegistry) (grant, error) {
	out := grant{rights: make(map[Right]bool, len(g.Rights))}
	if s := strings.TrimSpace(g.Space); s != "" && s != "*" {
		space, err := model.ParseSpaceRef(s)
		if err != nil {
			return grant{}, fmt.Errorf("space %q: %w", g.Space, err)
		}
		out.space = space
	}
	for _, r := range g.Rights {
		right := Right(strings.TrimSpace(r))
		if !registry.Known(right) {
			return grant{}, fmt.Errorf("unknown right %q", r)
		}
		out.rights[right] = true
	}
	return out, nil
}

// Check allows the request when any grant of user, or of Everyone, covers ref.
// An empty user stands for the configured default user.
func (a *ACL) Check(_ context.Context, user string, right Right, ref model.DocumentRef) error {
	if !a.registry.Known(right) {
		return errors.ValidationFailed("right", fmt.Sprintf("unknown right %q", right))
	}
	if user == "" {
		user = a.defaultUser
	}
	for _, key := range []string{user, Everyone} {
		for _, g := range a.grants[key] {
			if g.allows(right, ref) {
				return nil
			}
		}
	}
	return errors.PermissionDenied(user, string(right), ref.String())
}

// FromConfig returns the authorizer for cfg: AllowAll when disabled, an ACL otherwise.
func FromConfig(cfg config.AuthConfig) (Authorizer, error) {
	if !cfg.Enabled {
		return AllowAll{}, nil
	}
	return NewACL(cfg, DefaultRegistry)
}
