package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// Constructor creates a fresh adapter instance for one broadcast run.
// Per-run instances keep session caches (e.g. one SMTP connection per mail
// host) scoped to a single broadcast.
type Constructor func() Platform

// Registry maps platform names to adapter constructors.
//
// It is built once at startup and passed by reference into the dispatcher;
// there is no package-level registry map. Register-then-resolve is the only
// supported order: registration is expected to finish before the first
// Resolve.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Constructor{}}
}

// Register adds a platform variant. Names are case-insensitive; a duplicate
// name overwrites the previous entry.
func (r *Registry) Register(name string, c Constructor) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || c == nil {
		return
	}
	r.mu.Lock()
	r.byName[name] = c
	r.mu.Unlock()
}

// Resolve returns the constructor registered under name.
func (r *Registry) Resolve(name string) (Constructor, error) {
	r.mu.RLock()
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
	}
	return c, nil
}

// Names returns the registered platform names, sorted. Used for CLI help
// and error messages.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
