// Package widgets renders the leaf controls of a configuration form. Every
// widget shares one contract: it renders a control from Props and decodes the
// raw values an HTML form submits for it back into form data.
package widgets

import (
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Option is one entry of a closed choice set.
type Option struct {
	Value any
	Label string
}

// Props is everything a widget needs to render one control. Only Name is
// strictly needed; every other field degrades to a sensible default.
type Props struct {
	ID          string
	Name        string
	Label       string
	Value       any
	Required    bool
	Disabled    bool
	ReadOnly    bool
	Placeholder string
	Schema      *schema.Schema
	UI          schema.UISchema
	Options     []Option
	Errors      []string

	// CanAdd lets the caller veto array growth. nil means allowed.
	CanAdd *bool
	// RenderItem renders one array element. Arrays without it render rows
	// as plain text inputs.
	RenderItem func(w io.Writer, index int, item any) error
}

// Widget renders and decodes a single field kind.
type Widget interface {
	Kind() schema.Kind
	Render(w io.Writer, p Props) error
	// Decode turns submitted values into a form value. false means the
	// field is undefined and should be removed from form data.
	Decode(p Props, raw []string) (any, bool)
}

// Placeholder resolves the placeholder text for p: the explicit prop, then the
// UI schema, then the schema. Without any of those it synthesises
// "Enter <name>" with a trailing "*" for required fields.
func Placeholder(p Props) string {
	if text := strings.TrimSpace(p.Placeholder); text != "" {
		return text
	}
	if text := p.UI.Placeholder(); text != "" {
		return text
	}
	if p.Schema != nil {
		if text := strings.TrimSpace(p.Schema.Placeholder); text != "" {
			return text
		}
	}
	text := "Enter " + strings.ToLower(displayName(p))
	if p.Required {
		text += "*"
	}
	return text
}

func displayName(p Props) string {
	if label := strings.TrimSpace(p.Label); label != "" {
		return label
	}
	if p.Schema != nil {
		if title := strings.TrimSpace(p.Schema.Title); title != "" {
			return title
		}
	}
	name := p.Name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return schema.Humanize(name)
}

// Options builds the choice set for an enum schema. Labels come from
// enumNames when present.
func Options(s *schema.Schema) []Option {
	if s == nil || len(s.Enum) == 0 {
		return nil
	}
	out := make([]Option, 0, len(s.Enum))
	for idx, value := range s.Enum {
		label := ValueString(value)
		if idx < len(s.EnumNames) && strings.TrimSpace(s.EnumNames[idx]) != "" {
			label = s.EnumNames[idx]
		}
		out = append(out, Option{Value: value, Label: label})
	}
	return out
}

func optionsFor(p Props) []Option {
	if len(p.Options) > 0 {
		return p.Options
	}
	return Options(p.Schema)
}

// ValueString formats a form value for an HTML value attribute.
func ValueString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return formatFloat(typed)
	case float32:
		return formatFloat(float64(typed))
	case bool:
		if typed {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(typed)
	}
}

func lastValue(raw []string) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	return raw[len(raw)-1], true
}

func invalid(p Props) bool {
	if len(p.Errors) > 0 {
		return true
	}
	return p.Required && isEmpty(p.Value)
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	}
	return false
}
