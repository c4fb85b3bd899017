// Package catalog holds the connector definitions the console can configure:
// one configuration schema and UI schema per (kind, type) pair.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/visibility"
)

// ErrUnknownConnector is returned when no connector matches a lookup.
var ErrUnknownConnector = errors.New("catalog: unknown connector")

// Connector describes one source or destination type.
type Connector struct {
	Type        string               `json:"type"`
	Kind        domain.ConnectorKind `json:"kind"`
	Version     string               `json:"version,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
	Icon        string               `json:"icon,omitempty"`
	Schema      *schema.Schema       `json:"schema"`
	UI          schema.UISchema      `json:"ui,omitempty"`
}

// Label is the display name.
func (c Connector) Label() string {
	if c.Title != "" {
		return c.Title
	}
	return schema.Humanize(c.Type)
}

// Defaults returns the initial form data for a new configuration.
func (c Connector) Defaults() map[string]any {
	return c.Schema.Defaults()
}

func (c Connector) check() error {
	if strings.TrimSpace(c.Type) == "" {
		return errors.New("catalog: connector type is required")
	}
	if c.Kind != domain.KindSource && c.Kind != domain.KindDestination {
		return fmt.Errorf("catalog: connector %q has unknown kind %q", c.Type, c.Kind)
	}
	if c.Schema == nil {
		return fmt.Errorf("catalog: connector %s/%s has no schema", c.Kind, c.Type)
	}
	if err := c.Schema.Check(); err != nil {
		return fmt.Errorf("catalog: connector %s/%s: %w", c.Kind, c.Type, err)
	}
	if err := visibility.Check(c.Schema, c.UI); err != nil {
		return fmt.Errorf("catalog: connector %s/%s: ui:visibleIf: %w", c.Kind, c.Type, err)
	}
	return nil
}

type key struct {
	kind domain.ConnectorKind
	typ  string
}

func keyOf(kind domain.ConnectorKind, typ string) key {
	return key{kind: kind, typ: strings.ToLower(strings.TrimSpace(typ))}
}

// Catalog is an immutable set of connectors.
type Catalog struct {
	byKey map[key]Connector
}

// New validates connectors and indexes them. Duplicate (kind, type) pairs are
// rejected.
func New(connectors ...Connector) (*Catalog, error) {
	c := &Catalog{byKey: make(map[key]Connector, len(connectors))}
	for _, conn := range connectors {
		if err := conn.check(); err != nil {
			return nil, err
		}
		k := keyOf(conn.Kind, conn.Type)
		if _, dup := c.byKey[k]; dup {
			return nil, fmt.Errorf("catalog: duplicate connector %s/%s", conn.Kind, conn.Type)
		}
		conn.Type = k.typ
		c.byKey[k] = conn
	}
	return c, nil
}

// Merge returns a catalog with base's connectors replaced or extended by
// overrides.
func Merge(base *Catalog, overrides ...Connector) (*Catalog, error) {
	extra, err := New(overrides...)
	if err != nil {
		return nil, err
	}
	out := &Catalog{byKey: make(map[key]Connector, base.Len()+extra.Len())}
	if base != nil {
		for k, conn := range base.byKey {
			out.byKey[k] = conn
		}
	}
	for k, conn := range extra.byKey {
		out.byKey[k] = conn
	}
	return out, nil
}

// Len is the number of connectors.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byKey)
}

// Lookup finds the connector for kind and type.
func (c *Catalog) Lookup(kind domain.ConnectorKind, typ string) (Connector, error) {
	if c != nil {
		if conn, ok := c.byKey[keyOf(kind, typ)]; ok {
			return conn, nil
		}
	}
	return Connector{}, fmt.Errorf("%w: %s/%s", ErrUnknownConnector, kind, typ)
}

// List returns the connectors of kind sorted by label.
func (c *Catalog) List(kind domain.ConnectorKind) []Connector {
	if c == nil {
		return nil
	}
	out := make([]Connector, 0, len(c.byKey))
	for k, conn := range c.byKey {
		if k.kind == kind {
			out = append(out, conn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Label()), strings.ToLower(out[j].Label())
		if li != lj {
			return li < lj
		}
		return out[i].Type < out[j].Type
	})
	return out
}
