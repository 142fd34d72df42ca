package resource

import (
	"github.com/hpungsan/kino/internal/errors"
)

// Registry is an ordered set of resources indexed by id.
// Version increases on every mutation so that derived indexes (autolinkers)
// can tell when they are stale.
type Registry struct {
	items   []Resource
	index   map[string]int
	version uint64
}

// NewRegistry builds a registry from rs, keeping their order.
// Later duplicates of an id are dropped.
func NewRegistry(rs ...Resource) *Registry {
	reg := &Registry{index: make(map[string]int, len(rs))}
	for _, r := range rs {
		if _, dup := reg.index[r.ID]; dup || r.ID == "" {
			continue
		}
		reg.index[r.ID] = len(reg.items)
		reg.items = append(reg.items, r.Clone())
	}
	return reg
}

// Len returns the number of resources.
func (g *Registry) Len() int {
	if g == nil {
		return 0
	}
	return len(g.items)
}

// Version returns the mutation counter.
func (g *Registry) Version() uint64 {
	if g == nil {
		return 0
	}
	return g.version
}

// Get looks up a resource by id.
func (g *Registry) Get(id string) (Resource, bool) {
	if g == nil {
		return Resource{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Resource{}, false
	}
	return g.items[i].Clone(), true
}

// All returns a copy of every resource in registry order.
func (g *Registry) All() []Resource {
	if g == nil {
		return nil
	}
	out := make([]Resource, len(g.items))
	for i, r := range g.items {
		out[i] = r.Clone()
	}
	return out
}

// Add appends r. The id must be non-empty and unused.
func (g *Registry) Add(r Resource) error {
	if r.ID == "" {
		return errors.NewInvalidRequest("resource id is required")
	}
	if !r.Type.Valid() {
		return errors.NewInvalidRequest("invalid resource type: " + string(r.Type))
	}
	if _, exists := g.index[r.ID]; exists {
		return errors.NewConflict("resource already exists: " + r.ID)
	}
	g.index[r.ID] = len(g.items)
	g.items = append(g.items, r.Clone())
	g.version++
	return nil
}

// Update replaces the resource with the same id.
func (g *Registry) Update(r Resource) error {
	i, ok := g.index[r.ID]
	if !ok {
		return errors.NewNotFound("resource", r.ID)
	}
	if !r.Type.Valid() {
		return errors.NewInvalidRequest("invalid resource type: " + string(r.Type))
	}
	g.items[i] = r.Clone()
	g.version++
	return nil
}

// Delete removes a resource. Chips that reference it are left in place.
func (g *Registry) Delete(id string) error {
	i, ok := g.index[id]
	if !ok {
		return errors.NewNotFound("resource", id)
	}
	g.items = append(g.items[:i], g.items[i+1:]...)
	delete(g.index, id)
	for j := i; j < len(g.items); j++ {
		g.index[g.items[j].ID] = j
	}
	g.version++
	return nil
}

// SetDescription replaces a resource's description markup.
func (g *Registry) SetDescription(id, markup string) error {
	i, ok := g.index[id]
	if !ok {
		return errors.NewNotFound("resource", id)
	}
	g.items[i].Description = markup
	g.version++
	return nil
}

// Clone returns an independent copy.
func (g *Registry) Clone() *Registry {
	if g == nil {
		return NewRegistry()
	}
	c := NewRegistry(g.items...)
	c.version = g.version
	return c
}
