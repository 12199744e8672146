package resolver

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/util"
)

// Registry dispatches each server to the resolver of its hoster family
type Registry struct {
	mu       sync.RWMutex
	families map[string]Resolver
	fallback Resolver
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]Resolver)}
}

// Register binds a family name to a resolver. Names are case-insensitive.
func (r *Registry) Register(family string, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[strings.ToLower(strings.TrimSpace(family))] = res
}

// SetFallback sets the resolver used for unknown families
func (r *Registry) SetFallback(res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = res
}

// Lookup returns the resolver for a server, trying Family then Name
func (r *Registry) Lookup(server models.ServerDescriptor) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if res, ok := r.families[server.FamilyKey()]; ok {
		return res, true
	}
	if name := strings.ToLower(strings.TrimSpace(server.Name)); name != "" {
		if res, ok := r.families[name]; ok {
			return res, true
		}
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Families returns the registered family names in sorted order
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve implements Resolver
func (r *Registry) Resolve(ctx context.Context, server models.ServerDescriptor) (models.RawMediaReference, error) {
	res, ok := r.Lookup(server)
	if !ok {
		return models.RawMediaReference{}, notFound(server.Name, "no resolver for hoster family %q", server.FamilyKey())
	}
	util.Debug("Resolving server", "server", server.Name, "family", server.FamilyKey())
	return res.Resolve(ctx, server)
}
