package widgets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Registry maps field kinds to widgets. Named entries let a UI schema pick a
// widget that is not one of the built-in kinds (ui:widget "textarea").
type Registry struct {
	mu     sync.RWMutex
	byKind map[schema.Kind]Widget
	byName map[string]Widget
}

// NewRegistry constructs a registry with the built-in widgets registered.
func NewRegistry() *Registry {
	reg := &Registry{
		byKind: make(map[schema.Kind]Widget),
		byName: make(map[string]Widget),
	}
	reg.registerBuiltins()
	return reg
}

// Register installs w as the default widget for its kind.
func (r *Registry) Register(w Widget) {
	if r == nil || w == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[w.Kind()] = w
}

// RegisterNamed installs w under a ui:widget name. The latest registration
// wins.
func (r *Registry) RegisterNamed(name string, w Widget) {
	if r == nil || w == nil {
		return
	}
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[trimmed] = w
}

// Lookup returns the widget registered for kind.
func (r *Registry) Lookup(kind schema.Kind) (Widget, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byKind[kind]
	return w, ok
}

// Resolve picks the widget for a schema node. A named ui:widget is honoured
// first, then the node's kind.
func (r *Registry) Resolve(s *schema.Schema, ui schema.UISchema) (Widget, error) {
	if r == nil {
		return nil, fmt.Errorf("widgets: registry is nil")
	}
	kind := s.Kind(ui)
	if name := strings.ToLower(ui.Widget()); name != "" && kind != schema.KindObject && kind != schema.KindArray {
		r.mu.RLock()
		w, ok := r.byName[name]
		r.mu.RUnlock()
		if ok {
			return w, nil
		}
	}
	if w, ok := r.Lookup(kind); ok {
		return w, nil
	}
	return nil, fmt.Errorf("widgets: no widget registered for kind %q", kind)
}

// Names lists the registered ui:widget names and kinds in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byKind)+len(r.byName))
	for kind := range r.byKind {
		names = append(names, string(kind))
	}
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) registerBuiltins() {
	for _, w := range []Widget{Text{}, Password{}, Number{}, Select{}, Radio{}, Checkbox{}, Array{}} {
		r.byKind[w.Kind()] = w
	}
	r.byName["textarea"] = TextArea{}
}
