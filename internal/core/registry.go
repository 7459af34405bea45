package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

// Handler imports one entity type's sheet from a workbook.
type Handler interface {
	Entity() EntityType
	Layout() Layout
	Process(ctx context.Context, wb *sheet.Workbook, opts Options) (Outcome, error)
}

// Registry maps each entity type to its handler. It is built once at
// startup and read-only afterwards.
type Registry struct {
	handlers map[EntityType]Handler
}

// NewRegistry validates the map: every key must be a known entity type,
// match its handler, and every entity type must be covered.
func NewRegistry(handlers map[EntityType]Handler) (*Registry, error) {
	m := make(map[EntityType]Handler, len(handlers))
	for t, h := range handlers {
		if !t.Valid() {
			return nil, fmt.Errorf("registry: %w: %q", ErrUnknownEntityType, t)
		}
		if h == nil {
			return nil, fmt.Errorf("registry: nil handler for %s", t)
		}
		if h.Entity() != t {
			return nil, fmt.Errorf("registry: handler for %s is registered under %s", h.Entity(), t)
		}
		m[t] = h
	}
	for _, t := range entityTypes {
		if _, ok := m[t]; !ok {
			return nil, fmt.Errorf("registry: no handler for %s", t)
		}
	}
	return &Registry{handlers: m}, nil
}

// MustRegistry is NewRegistry for wiring code; it panics on a bad map.
func MustRegistry(handlers map[EntityType]Handler) *Registry {
	r, err := NewRegistry(handlers)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the handler for t, or ErrUnknownEntityType.
func (r *Registry) Lookup(t EntityType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
	}
	return h, nil
}

// Layouts describes every registered sheet, sorted by entity type.
func (r *Registry) Layouts() []Layout {
	out := make([]Layout, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h.Layout())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}
