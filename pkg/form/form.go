// Package form binds a schema, its UI schema, form data, the widget set and
// the validator into one server-rendered form.
//
// Rendering is pure: the same Form always produces the same markup. Field
// identifiers derive from the form id and the field path so they stay stable
// across re-renders.
package form

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-syncconsole/pkg/render/template"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/validation"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

const (
	// FormIDField carries the form id in submissions so handlers can route
	// live changes to the adapter that owns the form.
	FormIDField = "__form"

	defaultGroupClass = "grid grid-cols-2 gap-4"
	defaultRootGrid   = "grid gap-4"
	defaultSubmit     = "Submit"
)

// Form is everything needed to render one form.
type Form struct {
	ID          string
	Title       string
	Description string
	Action      string
	Method      string
	SubmitLabel string
	// HideSubmit removes the submit button; callers drive submission from
	// page level controls instead. A form without Action behaves the same.
	HideSubmit bool
	Schema     *schema.Schema
	UI         schema.UISchema
	Data       map[string]any
	// Errors are shown inline, keyed by dotted path. When nil and Validate
	// is set, errors are computed with validation.Live.
	Errors   map[string][]string
	Validate bool
	Hidden   map[string]string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWidgets replaces the widget registry.
func WithWidgets(reg *widgets.Registry) Option {
	return func(r *Renderer) {
		if reg != nil {
			r.widgets = reg
		}
	}
}

// WithTemplates enables ui:groupTemplate overrides.
func WithTemplates(tpl template.Renderer) Option {
	return func(r *Renderer) {
		r.templates = tpl
	}
}

// WithTheme applies a go-theme renderer configuration: CSS variables on the
// form element and partials usable as group templates.
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(r *Renderer) {
		r.theme = cfg
	}
}

// Renderer renders forms and applies changes to form data.
type Renderer struct {
	widgets   *widgets.Registry
	templates template.Renderer
	theme     *theme.RendererConfig
}

// New constructs a Renderer with the built-in widgets.
func New(opts ...Option) *Renderer {
	r := &Renderer{widgets: widgets.NewRegistry()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Widgets exposes the registry used by the renderer.
func (r *Renderer) Widgets() *widgets.Registry {
	return r.widgets
}

// Render produces the HTML for f.
func (r *Renderer) Render(ctx context.Context, f Form) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Schema == nil {
		return nil, fmt.Errorf("form: schema is required")
	}
	errs := f.Errors
	if errs == nil && f.Validate {
		errs = validation.Live(f.Data, f.Schema)
	}

	var buf bytes.Buffer
	buf.WriteString(`<form`)
	writeAttr(&buf, "id", f.ID)
	writeAttr(&buf, "class", joinClass("syncconsole-form", f.UI.ClassNames()))
	writeAttr(&buf, "method", strings.ToLower(defaultString(f.Method, "post")))
	if f.Action != "" {
		writeAttr(&buf, "action", f.Action)
	}
	r.writeThemeAttrs(&buf)
	buf.WriteString(" novalidate>\n")

	writeHidden(&buf, FormIDField, f.ID)
	keys := make([]string, 0, len(f.Hidden))
	for key := range f.Hidden {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		writeHidden(&buf, key, f.Hidden[key])
	}

	if title := strings.TrimSpace(f.Title); title != "" {
		buf.WriteString(`<h2 class="text-lg font-semibold text-gray-900">`)
		buf.WriteString(escape(title))
		buf.WriteString("</h2>\n")
	}
	if desc := describe(f.Description); desc != "" {
		buf.WriteString(`<p class="text-sm text-gray-500">`)
		buf.WriteString(desc)
		buf.WriteString("</p>\n")
	}

	state := &renderState{form: f, errors: errs}
	buf.WriteString(`<div`)
	writeAttr(&buf, "class", defaultString(f.UI.Grid(), defaultRootGrid))
	buf.WriteString(">\n")
	if err := r.renderProperties(&buf, state, "", f.Schema, f.UI, f.Data); err != nil {
		return nil, err
	}
	buf.WriteString("</div>\n")

	if !f.HideSubmit && f.Action != "" {
		buf.WriteString(`<div class="flex justify-end">` + "\n")
		buf.WriteString(`  <button type="submit" class="rounded-md bg-blue-600 px-4 py-2 text-sm font-medium text-white">`)
		buf.WriteString(escape(defaultString(f.SubmitLabel, defaultSubmit)))
		buf.WriteString("</button>\n</div>\n")
	}
	buf.WriteString("</form>\n")
	return buf.Bytes(), nil
}

// FieldID joins the form id and the field path segments with "_". Dots in a
// dotted path are treated as separators.
func FieldID(formID string, path ...string) string {
	parts := make([]string, 0, len(path)+1)
	if formID = strings.TrimSpace(formID); formID != "" {
		parts = append(parts, formID)
	}
	for _, segment := range path {
		for _, piece := range strings.Split(segment, ".") {
			if piece = strings.TrimSpace(piece); piece != "" {
				parts = append(parts, piece)
			}
		}
	}
	return strings.Join(parts, "_")
}

func (r *Renderer) writeThemeAttrs(buf *bytes.Buffer) {
	if r.theme == nil {
		return
	}
	if r.theme.Theme != "" {
		writeAttr(buf, "data-theme", r.theme.Theme)
	}
	if r.theme.Variant != "" {
		writeAttr(buf, "data-theme-variant", r.theme.Variant)
	}
	if style := cssVarsStyle(r.theme.CSSVars); style != "" {
		writeAttr(buf, "style", style)
	}
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimSpace(key)
		if !strings.HasPrefix(name, "--") {
			name = "--" + name
		}
		parts = append(parts, name+": "+vars[key])
	}
	return strings.Join(parts, "; ")
}
