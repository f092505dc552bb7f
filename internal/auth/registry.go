package auth

import (
	"slices"
	"sync"
)

// Right names an action a user may perform on a document.
type Right string

const (
	RightView    Right = "view"
	RightEdit    Right = "edit"
	RightDelete  Right = "delete"
	RightPublish Right = "publish"
)

// RightRegistry tracks the rights known to the process. Rights are never removed.
type RightRegistry struct {
	mu     sync.RWMutex
	rights map[Right]struct{}
}

// NewRightRegistry creates a registry holding the standard rights.
func NewRightRegistry() *RightRegistry {
	r := &RightRegistry{rights: make(map[Right]struct{})}
	for _, right := range []Right{RightView, RightEdit, RightDelete, RightPublish} {
		r.Register(right)
	}
	return r
}

// Register adds right and reports whether it was new. Registering a known right is a no-op.
func (r *RightRegistry) Register(right Right) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rights[right]; ok {
		return false
	}
	r.rights[right] = struct{}{}
	return true
}

// Known reports whether right has been registered.
func (r *RightRegistry) Known(right Right) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rights[right]
	return ok
}

// Rights returns the registered rights sorted by name.
func (r *RightRegistry) Rights() []Right {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Right, 0, len(r.rights))
	for right := range r.rights {
		out = append(out, right)
	}
	slices.Sort(out)
	return out
}

// DefaultRegistry is a package-level registry for convenience.
var DefaultRegistry = NewRightRegistry()

// Register adds right to the default registry.
func Register(right Right) bool {
	return DefaultRegistry.Register(right)
}
