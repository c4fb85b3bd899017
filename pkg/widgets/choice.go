package widgets

import (
	"io"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Select renders a closed option set with an optional leading placeholder
// option bound to the empty value.
type Select struct{}

func (Select) Kind() schema.Kind { return schema.KindSelect }

func (Select) Render(w io.Writer, p Props) error {
	var b strings.Builder
	b.WriteString(`<select`)
	writeCommon(&b, p)
	writeAttr(&b, "class", inputClass(p))
	b.WriteString(">\n")

	current := ValueString(p.Value)
	if text, ok := selectPlaceholder(p); ok {
		b.WriteString(`  <option value=""`)
		writeFlag(&b, "selected", p.Value == nil || current == "")
		b.WriteByte('>')
		b.WriteString(escape(text))
		b.WriteString("</option>\n")
	}
	for _, opt := range optionsFor(p) {
		value := ValueString(opt.Value)
		b.WriteString(`  <option`)
		writeAttr(&b, "value", value)
		writeFlag(&b, "selected", p.Value != nil && value == current)
		b.WriteByte('>')
		b.WriteString(escape(opt.Label))
		b.WriteString("</option>\n")
	}
	b.WriteString("</select>\n")
	return flush(w, &b)
}

func (Select) Decode(p Props, raw []string) (any, bool) {
	value, ok := lastValue(raw)
	if !ok || value == "" {
		return nil, false
	}
	return matchOption(p, value)
}

// selectPlaceholder shows the empty option when a placeholder is configured
// or when nothing is selected yet.
func selectPlaceholder(p Props) (string, bool) {
	if text := strings.TrimSpace(p.Placeholder); text != "" {
		return text, true
	}
	if text := p.UI.Placeholder(); text != "" {
		return text, true
	}
	if p.Schema != nil && strings.TrimSpace(p.Schema.Placeholder) != "" {
		return strings.TrimSpace(p.Schema.Placeholder), true
	}
	if isEmpty(p.Value) {
		return "Select " + strings.ToLower(displayName(p)), true
	}
	return "", false
}

// Radio renders one input per option. ui:inline lays them out on one row.
type Radio struct{}

func (Radio) Kind() schema.Kind { return schema.KindRadio }

func (Radio) Render(w io.Writer, p Props) error {
	var b strings.Builder
	layout := "grid gap-2"
	if p.UI.Inline() {
		layout = "flex flex-wrap gap-4"
	}
	b.WriteString(`<div role="radiogroup"`)
	if p.ID != "" {
		writeAttr(&b, "id", p.ID)
	}
	writeAttr(&b, "class", layout)
	if invalid(p) {
		writeAttr(&b, "aria-invalid", "true")
	}
	b.WriteString(">\n")

	current := ValueString(p.Value)
	disabled := p.Disabled || p.UI.Disabled() || p.ReadOnly || p.UI.ReadOnly()
	for idx, opt := range optionsFor(p) {
		value := ValueString(opt.Value)
		optionID := p.ID + "_" + strconv.Itoa(idx)
		b.WriteString(`  <label class="inline-flex items-center gap-2 text-sm">`)
		b.WriteString(`<input type="radio"`)
		if p.ID != "" {
			writeAttr(&b, "id", optionID)
		}
		writeAttr(&b, "name", p.Name)
		writeAttr(&b, "value", value)
		writeFlag(&b, "checked", p.Value != nil && value == current)
		writeFlag(&b, "required", p.Required && idx == 0)
		writeFlag(&b, "disabled", disabled)
		b.WriteByte('>')
		b.WriteString(escape(opt.Label))
		b.WriteString("</label>\n")
	}
	b.WriteString("</div>\n")
	return flush(w, &b)
}

func (Radio) Decode(p Props, raw []string) (any, bool) {
	return Select{}.Decode(p, raw)
}

// matchOption maps a submitted string back to the typed option value. Values
// outside the set are kept as strings so validation can report them.
func matchOption(p Props, value string) (any, bool) {
	for _, opt := range optionsFor(p) {
		if ValueString(opt.Value) == value {
			return opt.Value, true
		}
	}
	if p.Schema != nil && (p.Schema.Type == schema.TypeNumber || p.Schema.Type == schema.TypeInteger) {
		return ParseNumber(p.Schema, value)
	}
	return value, true
}

// Checkbox renders a boolean. A hidden "false" input precedes the checkbox so
// an unchecked box still submits a value; the last submitted value wins.
type Checkbox struct{}

func (Checkbox) Kind() schema.Kind { return schema.KindCheckbox }

func (Checkbox) Render(w io.Writer, p Props) error {
	var b strings.Builder
	b.WriteString(`<input type="hidden"`)
	writeAttr(&b, "name", p.Name)
	writeAttr(&b, "value", "false")
	b.WriteString(">\n")
	b.WriteString(`<input type="checkbox" class="h-4 w-4 rounded border-gray-300"`)
	if p.ID != "" {
		writeAttr(&b, "id", p.ID)
	}
	writeAttr(&b, "name", p.Name)
	writeAttr(&b, "value", "true")
	checked, _ := p.Value.(bool)
	writeFlag(&b, "checked", checked)
	writeFlag(&b, "disabled", p.Disabled || p.UI.Disabled() || p.ReadOnly || p.UI.ReadOnly())
	b.WriteString(">\n")
	return flush(w, &b)
}

func (Checkbox) Decode(_ Props, raw []string) (any, bool) {
	value, ok := lastValue(raw)
	if !ok {
		return nil, false
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "on", "1", "yes":
		return true, true
	default:
		return false, true
	}
}
