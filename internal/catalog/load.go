package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/pkg/schema"
)

//go:embed connectors/*.yaml
var builtin embed.FS

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the built-in connectors. It panics if the embedded
// definitions are invalid.
func Default() *Catalog {
	defaultOnce.Do(func() {
		var connectors []Connector
		connectors, defaultErr = LoadFS(builtin, "connectors")
		if defaultErr == nil {
			defaultCatalog, defaultErr = New(connectors...)
		}
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

// LoadDir reads every .json, .yaml and .yml file in dir.
func LoadDir(dir string) ([]Connector, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog: %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS reads connector files from dir in fsys in lexical order.
// Duplicate (kind, type) pairs across files are an error.
func LoadFS(fsys fs.FS, dir string) ([]Connector, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isConnectorFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	seen := make(map[key]string, len(names))
	out := make([]Connector, 0, len(names))
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", name, err)
		}
		conn, err := Parse(name, raw)
		if err != nil {
			return nil, err
		}
		k := keyOf(conn.Kind, conn.Type)
		if prev, dup := seen[k]; dup {
			return nil, fmt.Errorf("catalog: %s redefines %s/%s from %s", name, conn.Kind, conn.Type, prev)
		}
		seen[k] = name
		out = append(out, conn)
	}
	return out, nil
}

func isConnectorFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return !strings.HasPrefix(name, ".")
	}
	return false
}

// Parse decodes one connector definition. YAML documents are normalised
// through JSON so numbers decode the same way in both formats.
func Parse(name string, raw []byte) (Connector, error) {
	var conn Connector
	if strings.EqualFold(path.Ext(name), ".json") {
		if err := json.Unmarshal(raw, &conn); err != nil {
			return Connector{}, fmt.Errorf("catalog: parse %s: %w", name, err)
		}
	} else {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return Connector{}, fmt.Errorf("catalog: parse %s: %w", name, err)
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return Connector{}, fmt.Errorf("catalog: parse %s: %w", name, err)
		}
		if err := json.Unmarshal(encoded, &conn); err != nil {
			return Connector{}, fmt.Errorf("catalog: parse %s: %w", name, err)
		}
	}
	kind, ok := domain.ParseConnectorKind(string(conn.Kind))
	if !ok {
		return Connector{}, fmt.Errorf("catalog: %s: unknown kind %q", name, conn.Kind)
	}
	conn.Kind = kind
	if err := conn.check(); err != nil {
		return Connector{}, fmt.Errorf("%w (%s)", err, name)
	}
	return conn, nil
}

const connectorExtension = "x-connector"

type connectorMeta struct {
	Type        string          `json:"type"`
	Kind        string          `json:"kind"`
	Version     string          `json:"version"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	UI          schema.UISchema `json:"ui"`
}

// LoadOpenAPI turns the components.schemas entries of an OpenAPI document
// that carry an x-connector extension into connectors. Entries without the
// extension are ignored.
func LoadOpenAPI(ctx context.Context, raw []byte) ([]Connector, error) {
	components, err := schema.LoadOpenAPIComponents(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	var out []Connector
	for _, component := range components {
		ext, ok := component.Extensions[connectorExtension]
		if !ok {
			continue
		}
		encoded, err := json.Marshal(ext)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", component.Name, err)
		}
		var meta connectorMeta
		if err := json.Unmarshal(encoded, &meta); err != nil {
			return nil, fmt.Errorf("catalog: %s: malformed %s: %w", component.Name, connectorExtension, err)
		}
		kind, ok := domain.ParseConnectorKind(meta.Kind)
		if !ok {
			return nil, fmt.Errorf("catalog: %s: unknown kind %q", component.Name, meta.Kind)
		}
		conn := Connector{
			Type:        firstNonEmpty(meta.Type, component.Name),
			Kind:        kind,
			Version:     meta.Version,
			Title:       firstNonEmpty(meta.Title, component.Schema.Title),
			Description: firstNonEmpty(meta.Description, component.Schema.Description),
			Icon:        meta.Icon,
			Schema:      component.Schema,
			UI:          meta.UI,
		}
		if err := conn.check(); err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
