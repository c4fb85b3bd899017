package widgets

import (
	"io"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Masked replaces secret values wherever they would otherwise be echoed.
const Masked = "********"

const lockIcon = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" width="16" height="16" fill="none" stroke="currentColor" stroke-width="2" aria-hidden="true"><rect x="5" y="11" width="14" height="10" rx="2"/><path d="M8 11V7a4 4 0 0 1 8 0v4"/></svg>`

// Password is a masked input with a fixed lock decoration. It has no reveal
// control; the value only lives inside the masked input.
type Password struct{}

func (Password) Kind() schema.Kind { return schema.KindPassword }

func (Password) Render(w io.Writer, p Props) error {
	var b strings.Builder
	b.WriteString(`<div class="relative">` + "\n")
	b.WriteString(`  <input type="password" autocomplete="new-password"`)
	writeCommon(&b, p)
	writeAttr(&b, "value", ValueString(p.Value))
	writeAttr(&b, "placeholder", Placeholder(p))
	writeAttr(&b, "class", inputClass(p)+" pr-9")
	b.WriteString(">\n")
	b.WriteString(`  <span class="pointer-events-none absolute inset-y-0 right-0 flex items-center pr-3 text-gray-400" data-decoration="lock">`)
	b.WriteString(lockIcon)
	b.WriteString("</span>\n</div>\n")
	return flush(w, &b)
}

func (Password) Decode(p Props, raw []string) (any, bool) {
	return Text{}.Decode(p, raw)
}

// Redact returns a copy of data with every password field masked. Use it
// before configuration reaches logs, notifications or API echoes.
func Redact(s *schema.Schema, ui schema.UISchema, data map[string]any) map[string]any {
	out := schema.CloneData(data)
	redactObject(s, ui, out)
	return out
}

func redactObject(s *schema.Schema, ui schema.UISchema, data map[string]any) {
	if s == nil || data == nil {
		return
	}
	for key, prop := range s.Properties {
		value, ok := data[key]
		if !ok {
			continue
		}
		fieldUI := ui.Field(key)
		switch prop.Kind(fieldUI) {
		case schema.KindPassword:
			if !isEmpty(value) {
				data[key] = Masked
			}
		case schema.KindObject:
			if nested, ok := value.(map[string]any); ok {
				redactObject(prop, fieldUI, nested)
			}
		case schema.KindArray:
			list, ok := value.([]any)
			if !ok || prop.Items == nil {
				continue
			}
			itemUI := fieldUI.Items()
			for idx, item := range list {
				switch prop.Items.Kind(itemUI) {
				case schema.KindPassword:
					if !isEmpty(item) {
						list[idx] = Masked
					}
				case schema.KindObject:
					if nested, ok := item.(map[string]any); ok {
						redactObject(prop.Items, itemUI, nested)
					}
				}
			}
		}
	}
}
