package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reserved UI schema keys. Keys without the "ui:" prefix address nested
// properties by name; "items" addresses an array's element schema.
const (
	UIWidget        = "ui:widget"
	UIClassNames    = "ui:classNames"
	UIGrid          = "ui:grid"
	UIInline        = "ui:inline"
	UIOptions       = "ui:options"
	UIAddButtonText = "ui:addButtonText"
	UILabel         = "ui:label"
	UITitle         = "ui:title"
	UIDescription   = "ui:description"
	UIPlaceholder   = "ui:placeholder"
	UIGroupTemplate = "ui:groupTemplate"
	UIIcon          = "ui:icon"
	UIDisabled      = "ui:disabled"
	UIReadOnly      = "ui:readonly"
	UIHelp          = "ui:help"
	UIVisibleIf     = "ui:visibleIf"

	uiPrefix = "ui:"
	uiItems  = "items"
)

// UISchema carries presentation hints parallel to a Schema. It never affects
// validation. A nil UISchema is valid and yields defaults for every accessor.
type UISchema map[string]any

// ParseUI decodes a UI schema from JSON, falling back to YAML.
func ParseUI(raw []byte) (UISchema, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return UISchema{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err == nil {
		return UISchema(out), nil
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("schema: parse ui schema: invalid JSON or YAML: %w", err)
	}
	return UISchema(out), nil
}

// Field returns the nested UI schema for a property key.
func (u UISchema) Field(key string) UISchema {
	if u == nil || strings.HasPrefix(key, uiPrefix) {
		return nil
	}
	return asUISchema(u[key])
}

// Items returns the UI schema for array elements.
func (u UISchema) Items() UISchema {
	if u == nil {
		return nil
	}
	return asUISchema(u[uiItems])
}

func asUISchema(value any) UISchema {
	switch typed := value.(type) {
	case UISchema:
		return typed
	case map[string]any:
		return UISchema(typed)
	default:
		return nil
	}
}

// String returns a string hint or fallback when missing.
func (u UISchema) String(key, fallback string) string {
	if u == nil {
		return fallback
	}
	switch typed := u[key].(type) {
	case string:
		if trimmed := strings.TrimSpace(typed); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

// Bool returns a boolean hint or fallback when missing. String values such as
// "false" are accepted for hints that came from query strings or YAML.
func (u UISchema) Bool(key string, fallback bool) bool {
	if u == nil {
		return fallback
	}
	return toBool(u[key], fallback)
}

func toBool(value any, fallback bool) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(typed)); err == nil {
			return parsed
		}
	}
	return fallback
}

// Option reads a key from the nested ui:options map.
func (u UISchema) Option(key string) (any, bool) {
	if u == nil {
		return nil, false
	}
	options, ok := u[UIOptions].(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := options[key]
	return value, ok
}

func (u UISchema) Widget() string        { return u.String(UIWidget, "") }
func (u UISchema) ClassNames() string    { return u.String(UIClassNames, "") }
func (u UISchema) Grid() string          { return u.String(UIGrid, "") }
func (u UISchema) Placeholder() string   { return u.String(UIPlaceholder, "") }
func (u UISchema) GroupTemplate() string { return u.String(UIGroupTemplate, "") }
func (u UISchema) Icon() string          { return u.String(UIIcon, "") }
func (u UISchema) Help() string          { return u.String(UIHelp, "") }
func (u UISchema) VisibleIf() string     { return u.String(UIVisibleIf, "") }
func (u UISchema) Inline() bool          { return u.Bool(UIInline, false) }
func (u UISchema) Disabled() bool        { return u.Bool(UIDisabled, false) }
func (u UISchema) ReadOnly() bool        { return u.Bool(UIReadOnly, false) }
func (u UISchema) ShowLabel() bool       { return u.Bool(UILabel, true) }
func (u UISchema) ShowTitle() bool       { return u.Bool(UITitle, true) }
func (u UISchema) ShowDescription() bool { return u.Bool(UIDescription, true) }

// AddButtonText returns the label for an array's add control.
func (u UISchema) AddButtonText() string {
	if text := u.String(UIAddButtonText, ""); text != "" {
		return text
	}
	if value, ok := u.Option("addButtonText"); ok {
		if text, ok := value.(string); ok && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return "Add item"
}

// Addable reports whether an array may grow (ui:options.addable).
func (u UISchema) Addable() bool {
	value, ok := u.Option("addable")
	if !ok {
		return true
	}
	return toBool(value, true)
}

// Merge returns a new UI schema with override applied on top of u. Values in
// override win per key; nested property maps are merged recursively.
func (u UISchema) Merge(override UISchema) UISchema {
	out := make(UISchema, len(u)+len(override))
	for key, value := range u {
		out[key] = value
	}
	for key, value := range override {
		base := asUISchema(out[key])
		next := asUISchema(value)
		if base != nil && next != nil && !strings.HasPrefix(key, uiPrefix) {
			out[key] = base.Merge(next)
			continue
		}
		out[key] = value
	}
	return out
}
