package widgets

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Number parses its input into a number. Cleared or unparsable input is
// undefined, never NaN or an empty string.
type Number struct{}

func (Number) Kind() schema.Kind { return schema.KindNumber }

func (Number) Render(w io.Writer, p Props) error {
	var b strings.Builder
	b.WriteString(`<input type="number"`)
	writeCommon(&b, p)
	step := "any"
	if p.Schema != nil && p.Schema.Type == schema.TypeInteger {
		step = "1"
	}
	writeAttr(&b, "step", step)
	if p.Schema != nil && p.Schema.Minimum != nil {
		writeAttr(&b, "min", formatFloat(*p.Schema.Minimum))
	}
	if p.Schema != nil && p.Schema.Maximum != nil {
		writeAttr(&b, "max", formatFloat(*p.Schema.Maximum))
	}
	writeAttr(&b, "value", ValueString(p.Value))
	writeAttr(&b, "placeholder", Placeholder(p))
	writeAttr(&b, "class", inputClass(p))
	b.WriteString(">\n")
	return flush(w, &b)
}

// Decode returns int64 for integer schemas and float64 otherwise.
func (Number) Decode(p Props, raw []string) (any, bool) {
	value, ok := lastValue(raw)
	if !ok {
		return nil, false
	}
	return ParseNumber(p.Schema, value)
}

// ParseNumber converts text to the numeric type s declares.
func ParseNumber(s *schema.Schema, text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if s != nil && s.Type == schema.TypeInteger {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, true
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}
