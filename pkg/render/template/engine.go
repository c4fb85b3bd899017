package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

const extension = ".html"

// Filter is a template filter working on plain Go values.
type Filter func(input any, param any) (any, error)

// Option configures the engine before construction.
type Option func(*Engine)

// WithBaseDir loads templates from a directory on disk ahead of any fs.FS,
// so an operator can override single pages without rebuilding.
func WithBaseDir(dir string) Option {
	return func(e *Engine) {
		if dir = strings.TrimSpace(dir); dir != "" {
			e.dir = dir
		}
	}
}

// WithFS loads templates from files, usually an embed.FS.
func WithFS(files fs.FS) Option {
	return func(e *Engine) { e.files = files }
}

// WithGlobalData seeds values every template can read.
func WithGlobalData(data map[string]any) Option {
	return func(e *Engine) {
		for key, value := range data {
			e.seed[strings.TrimSpace(key)] = value
		}
	}
}

// Engine renders console pages and form group templates with pongo2. Parsed
// templates are cached by file name or by inline content.
type Engine struct {
	dir   string
	files fs.FS
	seed  map[string]any

	set *pongo2.TemplateSet

	mu     sync.RWMutex
	parsed map[string]*pongo2.Template
}

var _ Renderer = (*Engine)(nil)

// New builds an Engine. Without WithBaseDir or WithFS only inline templates
// render.
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		seed:   map[string]any{},
		parsed: map[string]*pongo2.Template{},
	}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}

	loaders := make([]pongo2.TemplateLoader, 0, 2)
	if e.dir != "" {
		local, err := pongo2.NewLocalFileSystemLoader(e.dir)
		if err != nil {
			return nil, fmt.Errorf("template: base dir %s: %w", e.dir, err)
		}
		loaders = append(loaders, local)
	}
	if e.files != nil {
		loaders = append(loaders, pongo2.NewFSLoader(e.files))
	}
	if len(loaders) == 0 {
		loaders = append(loaders, pongo2.NewFSLoader(noFiles{}))
	}
	e.set = pongo2.NewSet("syncconsole", loaders...)

	builtinFilters()
	if err := e.GlobalContext(e.seed); err != nil {
		return nil, fmt.Errorf("template: global data: %w", err)
	}
	return e, nil
}

// Render picks RenderString for content holding template tags and
// RenderTemplate for anything else.
func (e *Engine) Render(name string, data any, out ...io.Writer) (string, error) {
	if strings.Contains(name, "{{") || strings.Contains(name, "{%") {
		return e.RenderString(name, data, out...)
	}
	return e.RenderTemplate(name, data, out...)
}

// RenderTemplate executes a named template. The .html suffix is optional.
func (e *Engine) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("template: engine is nil")
	}
	if !strings.HasSuffix(name, extension) {
		name += extension
	}
	tpl, err := e.lookup("file:"+name, func() (*pongo2.Template, error) {
		return e.set.FromFile(name)
	})
	if err != nil {
		return "", fmt.Errorf("template: load %q: %w", name, err)
	}
	return e.execute(tpl, name, data, out)
}

// RenderString executes inline template content.
func (e *Engine) RenderString(content string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("template: engine is nil")
	}
	tpl, err := e.lookup("inline:"+content, func() (*pongo2.Template, error) {
		return e.set.FromString(content)
	})
	if err != nil {
		return "", fmt.Errorf("template: parse inline template: %w", err)
	}
	return e.execute(tpl, "inline", data, out)
}

func (e *Engine) lookup(key string, parse func() (*pongo2.Template, error)) (*pongo2.Template, error) {
	e.mu.RLock()
	tpl, ok := e.parsed[key]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tpl, ok := e.parsed[key]; ok {
		return tpl, nil
	}
	tpl, err := parse()
	if err != nil {
		return nil, err
	}
	e.parsed[key] = tpl
	return tpl, nil
}

func (e *Engine) execute(tpl *pongo2.Template, name string, data any, out []io.Writer) (string, error) {
	ctx, err := toContext(data)
	if err != nil {
		return "", fmt.Errorf("template: %s data: %w", name, err)
	}

	var buf bytes.Buffer
	e.mu.RLock()
	err = tpl.ExecuteWriter(ctx, &buf)
	e.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("template: execute %q: %w", name, err)
	}

	for _, w := range out {
		if _, err := w.Write(buf.Bytes()); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// RegisterFilter adds fn as a pongo2 filter. Filters are process wide, so a
// name can only be registered once.
func (e *Engine) RegisterFilter(name string, fn Filter) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return errors.New("template: filter name and function required")
	}
	if pongo2.FilterExists(name) {
		return fmt.Errorf("template: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, func(in, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var arg any
		if param != nil {
			arg = param.Interface()
		}
		result, err := fn(in.Interface(), arg)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	})
}

// GlobalContext merges data into the values every template sees. Later calls
// win per key.
func (e *Engine) GlobalContext(data any) error {
	if e == nil || e.set == nil {
		return errors.New("template: engine is nil")
	}
	ctx, err := toContext(data)
	if err != nil {
		return err
	}
	if len(ctx) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set.Globals == nil {
		e.set.Globals = pongo2.Context{}
	}
	e.set.Globals.Update(ctx)
	return nil
}

type noFiles struct{}

func (noFiles) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// toContext turns view data into a pongo2 context. Structs are reduced to
// their JSON shape so pages use the same field names as the API.
func toContext(data any) (pongo2.Context, error) {
	plain, err := plainValue(data)
	if err != nil {
		return nil, err
	}
	switch v := plain.(type) {
	case nil:
		return pongo2.Context{}, nil
	case map[string]any:
		ctx := make(pongo2.Context, len(v))
		for key, value := range v {
			if key = strings.TrimSpace(key); key != "" {
				ctx[key] = value
			}
		}
		return ctx, nil
	default:
		return nil, fmt.Errorf("template: view data must be an object, got %T", data)
	}
}

func plainValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int, int64, float64:
		return v, nil
	case pongo2.Context:
		return plainValue(map[string]any(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			converted, err := plainValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			converted, err := plainValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}
	if reflect.ValueOf(value).Kind() == reflect.Func {
		return value, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func builtinFilters() {
	builtin := map[string]pongo2.FilterFunction{
		"trim": func(in, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
			return pongo2.AsValue(strings.TrimSpace(in.String())), nil
		},
		"humanize": func(in, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
			return pongo2.AsValue(schema.Humanize(in.String())), nil
		},
		"tojson": func(in, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
			payload, err := json.MarshalIndent(in.Interface(), "", "  ")
			if err != nil {
				return nil, &pongo2.Error{Sender: "filter:tojson", OrigError: err}
			}
			return pongo2.AsValue(string(payload)), nil
		},
	}
	for name, fn := range builtin {
		if !pongo2.FilterExists(name) {
			_ = pongo2.RegisterFilter(name, fn)
		}
	}
}
