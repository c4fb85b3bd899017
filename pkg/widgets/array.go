package widgets

import (
	"io"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Submit button names used by array rows. The button value carries the
// dotted array path, with the row index appended for removals.
const (
	ActionAdd    = "__add"
	ActionRemove = "__remove"
	LengthSuffix = ".__len"
)

// MaxRows bounds the row count accepted from a submitted form.
const MaxRows = 1000

// Array renders one row per element. Rows delegate to Props.RenderItem; the
// add and remove controls are plain submit buttons so the form works without
// scripts.
type Array struct{}

func (Array) Kind() schema.Kind { return schema.KindArray }

func (Array) Render(w io.Writer, p Props) error {
	list, _ := p.Value.([]any)

	var b strings.Builder
	b.WriteString(`<div class="grid gap-3" data-widget="array"`)
	if p.ID != "" {
		writeAttr(&b, "id", p.ID)
	}
	writeAttr(&b, "data-path", p.Name)
	b.WriteString(">\n")

	if p.UI.ShowDescription() {
		if title := displayName(p); title != "" && p.UI.ShowTitle() {
			b.WriteString(`  <p class="text-sm font-medium text-gray-900">`)
			b.WriteString(escape(title))
			b.WriteString("</p>\n")
		}
		if p.Schema != nil && strings.TrimSpace(p.Schema.Description) != "" {
			b.WriteString(`  <p class="text-sm text-gray-500">`)
			b.WriteString(escape(strings.TrimSpace(p.Schema.Description)))
			b.WriteString("</p>\n")
		}
	}

	b.WriteString(`  <input type="hidden"`)
	writeAttr(&b, "name", p.Name+LengthSuffix)
	writeAttr(&b, "value", strconv.Itoa(len(list)))
	b.WriteString(">\n")
	if err := flush(w, &b); err != nil {
		return err
	}
	b.Reset()

	locked := p.Disabled || p.UI.Disabled() || p.ReadOnly || p.UI.ReadOnly()
	for idx, item := range list {
		b.WriteString(`  <div class="flex items-start gap-2"`)
		writeAttr(&b, "data-index", strconv.Itoa(idx))
		b.WriteString(">\n")
		if err := flush(w, &b); err != nil {
			return err
		}
		b.Reset()

		if err := renderRow(w, p, idx, item); err != nil {
			return err
		}

		if !locked {
			b.WriteString(`    <button type="submit" class="text-sm text-red-600" formnovalidate`)
			writeAttr(&b, "name", ActionRemove)
			writeAttr(&b, "value", p.Name+"."+strconv.Itoa(idx))
			b.WriteString(">Remove</button>\n")
		}
		b.WriteString("  </div>\n")
		if err := flush(w, &b); err != nil {
			return err
		}
		b.Reset()
	}

	if CanAdd(p) && !locked {
		b.WriteString(`  <button type="submit" class="text-sm text-blue-600" formnovalidate`)
		writeAttr(&b, "name", ActionAdd)
		writeAttr(&b, "value", p.Name)
		b.WriteByte('>')
		b.WriteString(escape(p.UI.AddButtonText()))
		b.WriteString("</button>\n")
	}
	b.WriteString("</div>\n")
	return flush(w, &b)
}

func renderRow(w io.Writer, p Props, idx int, item any) error {
	if p.RenderItem != nil {
		return p.RenderItem(w, idx, item)
	}
	return Text{}.Render(w, Props{
		ID:    p.ID + "_" + strconv.Itoa(idx),
		Name:  p.Name + "." + strconv.Itoa(idx),
		Value: item,
		UI:    p.UI.Items(),
	})
}

// Decode sizes the list from the submitted row count. Rows are filled in by
// the caller, which decodes each element with the items widget. Counts above
// MaxRows are rejected.
func (Array) Decode(_ Props, raw []string) (any, bool) {
	value, ok := lastValue(raw)
	if !ok {
		return nil, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 || n > MaxRows {
		return nil, false
	}
	return make([]any, n), true
}

// CanAdd reports whether the add control is shown: both the UI schema and the
// caller must allow growth.
func CanAdd(p Props) bool {
	if p.CanAdd != nil && !*p.CanAdd {
		return false
	}
	return p.UI.Addable()
}

// AppendItem returns a copy of list with one new element shaped by items.
func AppendItem(list []any, items *schema.Schema) []any {
	out := make([]any, len(list), len(list)+1)
	for idx, item := range list {
		out[idx] = schema.CloneValue(item)
	}
	return append(out, EmptyValue(items))
}

// RemoveAt returns a copy of list without the element at index. Removal is by
// position so equal values stay independently removable. Out of range indexes
// return an unchanged copy.
func RemoveAt(list []any, index int) []any {
	out := make([]any, 0, len(list))
	for idx, item := range list {
		if idx == index {
			continue
		}
		out = append(out, schema.CloneValue(item))
	}
	return out
}

// EmptyValue is the initial value of a new element: the declared default, or
// the empty shape of its type.
func EmptyValue(s *schema.Schema) any {
	if s == nil {
		return ""
	}
	if s.HasDefault() {
		return schema.CloneValue(s.Default)
	}
	switch s.Type {
	case schema.TypeObject:
		return s.Defaults()
	case schema.TypeArray:
		return []any{}
	case schema.TypeBoolean:
		return false
	case schema.TypeNumber, schema.TypeInteger:
		return nil
	default:
		return ""
	}
}
