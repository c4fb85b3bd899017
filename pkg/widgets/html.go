package widgets

import (
	"html"
	"io"
	"strconv"
	"strings"
)

const (
	inputBaseClass    = "block w-full rounded-md border px-3 py-2 text-sm"
	inputValidClass   = "border-gray-300 focus:border-blue-500"
	inputInvalidClass = "border-red-500 focus:border-red-500"
)

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteByte('"')
}

func writeFlag(b *strings.Builder, name string, on bool) {
	if !on {
		return
	}
	b.WriteByte(' ')
	b.WriteString(name)
}

// writeCommon emits the attributes shared by every form control.
func writeCommon(b *strings.Builder, p Props) {
	if p.ID != "" {
		writeAttr(b, "id", p.ID)
	}
	writeAttr(b, "name", p.Name)
	writeFlag(b, "required", p.Required)
	writeFlag(b, "disabled", p.Disabled || p.UI.Disabled())
	writeFlag(b, "readonly", p.ReadOnly || p.UI.ReadOnly())
	if invalid(p) {
		writeAttr(b, "aria-invalid", "true")
	}
}

func inputClass(p Props) string {
	state := inputValidClass
	if invalid(p) {
		state = inputInvalidClass
	}
	class := inputBaseClass + " " + state
	if extra := p.UI.ClassNames(); extra != "" {
		class += " " + extra
	}
	return class
}

func flush(w io.Writer, b *strings.Builder) error {
	_, err := io.WriteString(w, b.String())
	return err
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func escape(value string) string {
	return html.EscapeString(value)
}
