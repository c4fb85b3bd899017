package widgets

import (
	"io"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Text is a single line input. Submitted strings are kept verbatim.
type Text struct{}

func (Text) Kind() schema.Kind { return schema.KindText }

func (Text) Render(w io.Writer, p Props) error {
	var b strings.Builder
	b.WriteString(`<input type="text"`)
	writeCommon(&b, p)
	writeAttr(&b, "value", ValueString(p.Value))
	writeAttr(&b, "placeholder", Placeholder(p))
	writeAttr(&b, "class", inputClass(p))
	b.WriteString(">\n")
	return flush(w, &b)
}

func (Text) Decode(_ Props, raw []string) (any, bool) {
	value, ok := lastValue(raw)
	if !ok {
		return nil, false
	}
	return value, true
}

// TextArea is a multi line variant of Text, selected with ui:widget
// "textarea".
type TextArea struct{}

func (TextArea) Kind() schema.Kind { return schema.KindText }

func (TextArea) Render(w io.Writer, p Props) error {
	var b strings.Builder
	b.WriteString(`<textarea rows="4"`)
	writeCommon(&b, p)
	writeAttr(&b, "placeholder", Placeholder(p))
	writeAttr(&b, "class", inputClass(p))
	b.WriteByte('>')
	b.WriteString(escape(ValueString(p.Value)))
	b.WriteString("</textarea>\n")
	return flush(w, &b)
}

func (TextArea) Decode(p Props, raw []string) (any, bool) {
	return Text{}.Decode(p, raw)
}
