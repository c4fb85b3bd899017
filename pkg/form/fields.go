package form

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/sanitize"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/visibility"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

type renderState struct {
	form   Form
	errors map[string][]string
}

func (s *renderState) id(path string) string {
	return FieldID(s.form.ID, path)
}

func (r *Renderer) renderProperties(buf *bytes.Buffer, st *renderState, prefix string, s *schema.Schema, ui schema.UISchema, data map[string]any) error {
	for _, key := range s.OrderedKeys() {
		prop := s.Properties[key]
		var value any
		if data != nil {
			value = data[key]
		}
		field := fieldInfo{
			path:     joinPath(prefix, key),
			label:    ui.Field(key).String(schema.UITitle, s.Label(key)),
			required: s.IsRequired(key),
			schema:   prop,
			ui:       ui.Field(key),
			value:    value,
			rule:     ui.Field(key).VisibleIf(),
			scope:    data,
		}
		if err := r.renderField(buf, st, field); err != nil {
			return err
		}
	}
	return nil
}

type fieldInfo struct {
	path     string
	label    string
	required bool
	schema   *schema.Schema
	ui       schema.UISchema
	value    any
	// rule is the field's ui:visibleIf expression, evaluated against scope,
	// the data of the enclosing object.
	rule  string
	scope map[string]any
}

func (r *Renderer) renderField(buf *bytes.Buffer, st *renderState, f fieldInfo) error {
	kind := f.schema.Kind(f.ui)
	if kind == schema.KindObject {
		return r.renderGroup(buf, st, f)
	}

	w, err := r.widgets.Resolve(f.schema, f.ui)
	if err != nil {
		return fmt.Errorf("form: field %q: %w", f.path, err)
	}

	props := widgets.Props{
		ID:       st.id(f.path),
		Name:     f.path,
		Label:    f.label,
		Value:    f.value,
		Required: f.required,
		Schema:   f.schema,
		UI:       f.ui,
		Errors:   st.errors[f.path],
	}
	if kind == schema.KindArray {
		props.RenderItem = r.itemRenderer(st, f)
	}

	var control bytes.Buffer
	if err := w.Render(&control, props); err != nil {
		return fmt.Errorf("form: render %s field %q: %w", kind, f.path, err)
	}

	buf.WriteString(`<div class="grid gap-2"`)
	writeAttr(buf, "data-field", f.path)
	writeAttr(buf, "data-kind", string(kind))
	writeVisibility(buf, f)
	buf.WriteString(">\n")

	if kind != schema.KindArray && f.ui.ShowLabel() && strings.TrimSpace(f.label) != "" {
		buf.WriteString(`  <label class="flex items-center gap-2 text-sm font-medium text-gray-900"`)
		writeAttr(buf, "for", props.ID)
		buf.WriteString(">")
		if icon := sanitize.Icon(f.ui.Icon()); icon != "" {
			buf.WriteString(icon)
		}
		buf.WriteString(escape(f.label))
		if f.required {
			buf.WriteString(` *`)
		}
		buf.WriteString("</label>\n")
	}

	writeIndented(buf, control.String())

	if kind != schema.KindArray {
		if desc := describe(f.schema.Description); desc != "" {
			buf.WriteString(`  <small class="text-sm text-gray-500">`)
			buf.WriteString(desc)
			buf.WriteString("</small>\n")
		}
	}
	if help := f.ui.Help(); help != "" {
		buf.WriteString(`  <small class="text-sm text-gray-600">`)
		buf.WriteString(escape(help))
		buf.WriteString("</small>\n")
	}
	writeErrors(buf, f.path, st.errors[f.path])
	buf.WriteString("</div>\n")
	return nil
}

// itemRenderer renders array rows through the items schema. Object rows
// become groups; scalar rows reuse the items widget without a label.
func (r *Renderer) itemRenderer(st *renderState, parent fieldInfo) func(io.Writer, int, any) error {
	items := parent.schema.Items
	if items == nil {
		items = &schema.Schema{Type: schema.TypeString}
	}
	itemsUI := parent.ui.Items()
	return func(w io.Writer, index int, item any) error {
		path := joinPath(parent.path, strconv.Itoa(index))
		label := strings.TrimSpace(items.Title)
		if label == "" {
			label = parent.label
		}
		var row bytes.Buffer
		if items.Kind(itemsUI) == schema.KindObject {
			f := fieldInfo{path: path, label: label + " " + strconv.Itoa(index+1), schema: items, ui: itemsUI, value: item}
			if err := r.renderGroup(&row, st, f); err != nil {
				return err
			}
		} else {
			widget, err := r.widgets.Resolve(items, itemsUI)
			if err != nil {
				return fmt.Errorf("form: field %q: %w", path, err)
			}
			props := widgets.Props{
				ID:     st.id(path),
				Name:   path,
				Label:  label,
				Value:  item,
				Schema: items,
				UI:     itemsUI,
				Errors: st.errors[path],
			}
			if err := widget.Render(&row, props); err != nil {
				return fmt.Errorf("form: render item %q: %w", path, err)
			}
			writeErrors(&row, path, st.errors[path])
		}
		_, err := io.WriteString(w, `    <div class="grow">`+"\n"+row.String()+"    </div>\n")
		return err
	}
}

// renderGroup renders a nested object. ui:groupTemplate replaces the default
// fieldset chrome.
func (r *Renderer) renderGroup(buf *bytes.Buffer, st *renderState, f fieldInfo) error {
	data, _ := f.value.(map[string]any)
	inner := defaultString(f.ui.ClassNames(), defaultString(f.ui.Grid(), defaultGroupClass))

	var children bytes.Buffer
	if err := r.renderProperties(&children, st, f.path, f.schema, f.ui, data); err != nil {
		return err
	}

	if name := f.ui.GroupTemplate(); name != "" {
		return r.renderGroupTemplate(buf, st, f, name, inner, children.String())
	}

	buf.WriteString(`<fieldset class="grid gap-3 rounded-md border border-gray-200 p-4"`)
	writeAttr(buf, "id", st.id(f.path))
	writeAttr(buf, "data-field", f.path)
	writeAttr(buf, "data-kind", string(schema.KindObject))
	writeVisibility(buf, f)
	buf.WriteString(">\n")
	if f.ui.ShowTitle() && strings.TrimSpace(f.label) != "" {
		buf.WriteString(`  <legend class="px-1 text-sm font-semibold text-gray-900">`)
		buf.WriteString(escape(f.label))
		buf.WriteString("</legend>\n")
	}
	if desc := describe(f.schema.Description); desc != "" && f.ui.ShowDescription() {
		buf.WriteString(`  <p class="text-sm text-gray-500">`)
		buf.WriteString(desc)
		buf.WriteString("</p>\n")
	}
	buf.WriteString(`  <div`)
	writeAttr(buf, "class", inner)
	buf.WriteString(">\n")
	writeIndented(buf, children.String())
	buf.WriteString("  </div>\n")
	writeErrors(buf, f.path, st.errors[f.path])
	buf.WriteString("</fieldset>\n")
	return nil
}

func (r *Renderer) renderGroupTemplate(buf *bytes.Buffer, st *renderState, f fieldInfo, name, inner, children string) error {
	if r.templates == nil {
		return fmt.Errorf("form: field %q: ui:groupTemplate %q needs a template renderer", f.path, name)
	}
	if r.theme != nil {
		if partial := strings.TrimSpace(r.theme.Partials[name]); partial != "" {
			name = partial
		}
	}
	var tokens map[string]string
	if r.theme != nil {
		tokens = r.theme.Tokens
	}
	view := map[string]any{
		"id":          st.id(f.path),
		"path":        f.path,
		"title":       f.label,
		"show_title":  f.ui.ShowTitle(),
		"description": describe(f.schema.Description),
		"class_names": inner,
		"children":    children,
		"errors":      st.errors[f.path],
		"tokens":      tokens,
		"hidden":      !visible(f),
		"visible_if":  f.rule,
	}
	out, err := r.templates.Render(name, view)
	if err != nil {
		return fmt.Errorf("form: field %q: group template: %w", f.path, err)
	}
	buf.WriteString(out)
	if !strings.HasSuffix(out, "\n") {
		buf.WriteByte('\n')
	}
	return nil
}

func visible(f fieldInfo) bool {
	if f.rule == "" {
		return true
	}
	ok, _ := visibility.Visible(f.rule, f.scope)
	return ok
}

// writeVisibility marks conditional fields so the page can toggle them
// after live changes.
func writeVisibility(buf *bytes.Buffer, f fieldInfo) {
	if f.rule == "" {
		return
	}
	writeAttr(buf, "data-visible-if", f.rule)
	if !visible(f) {
		buf.WriteString(" hidden")
	}
}

func writeErrors(buf *bytes.Buffer, path string, messages []string) {
	for _, message := range messages {
		buf.WriteString(`  <p class="text-sm text-red-600"`)
		writeAttr(buf, "data-error-for", path)
		buf.WriteString(">")
		buf.WriteString(escape(message))
		buf.WriteString("</p>\n")
	}
}

func writeIndented(buf *bytes.Buffer, block string) {
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		buf.WriteString("  ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
}

func writeHidden(buf *bytes.Buffer, name, value string) {
	buf.WriteString(`<input type="hidden"`)
	writeAttr(buf, "name", name)
	writeAttr(buf, "value", value)
	buf.WriteString(">\n")
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	buf.WriteByte(' ')
	buf.WriteString(name)
	buf.WriteString(`="`)
	buf.WriteString(html.EscapeString(value))
	buf.WriteByte('"')
}

func escape(value string) string {
	return html.EscapeString(value)
}

// describe sanitises schema supplied descriptions; they may carry inline
// markup.
func describe(raw string) string {
	return sanitize.Description(raw)
}

func joinClass(base, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" || extra == base {
		return base
	}
	if strings.Contains(" "+extra+" ", " "+base+" ") {
		return extra
	}
	return base + " " + extra
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
