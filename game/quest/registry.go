package quest

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownTemplate is returned when no template has the requested id.
	ErrUnknownTemplate = errors.New("quest: unknown template")
	// ErrDuplicateTemplate is returned by Register for an id already present.
	ErrDuplicateTemplate = errors.New("quest: duplicate template")
)

// Registry holds every loaded template by id.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register validates and adds t.
func (r *Registry) Register(t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.ID)
	}
	r.templates[t.ID] = t
	return nil
}

// Replace swaps the whole template set, e.g. after a reload. Nothing is
// changed when any template is invalid.
func (r *Registry) Replace(templates []*Template) error {
	next := make(map[string]*Template, len(templates))
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, exists := next[t.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.ID)
		}
		next[t.ID] = t
	}
	r.mu.Lock()
	r.templates = next
	r.mu.Unlock()
	return nil
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

// All returns every template ordered by id.
func (r *Registry) All() []*Template {
	r.mu.RLock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
