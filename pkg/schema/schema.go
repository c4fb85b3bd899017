package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Type is the JSON type declared by a schema node.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// UnmarshalJSON accepts either a single type name or a list of names (the
// first non-null entry wins), matching how connector specs declare nullable
// fields.
func (t *Type) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = Type(strings.TrimSpace(single))
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("schema: type must be a string or list of strings")
	}
	*t = firstNonNull(many)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML documents.
func (t *Type) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = Type(strings.TrimSpace(node.Value))
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return fmt.Errorf("schema: decode type list: %w", err)
		}
		*t = firstNonNull(many)
		return nil
	default:
		return fmt.Errorf("schema: type must be a string or list of strings")
	}
}

func firstNonNull(values []string) Type {
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" && value != "null" {
			return Type(value)
		}
	}
	return ""
}

// Schema is the recursive description of a configuration object. Schemas are
// treated as immutable once decoded; helpers never modify the receiver.
type Schema struct {
	Type        Type               `json:"type,omitempty" yaml:"type,omitempty"`
	Title       string             `json:"title,omitempty" yaml:"title,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Placeholder string             `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Format      string             `json:"format,omitempty" yaml:"format,omitempty"`
	Enum        []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
	EnumNames   []string           `json:"enumNames,omitempty" yaml:"enumNames,omitempty"`
	Default     any                `json:"default,omitempty" yaml:"default,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Order       *int               `json:"order,omitempty" yaml:"order,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinLength   *int               `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   *int               `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern     string             `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Parse decodes a schema from JSON, falling back to YAML.
func Parse(raw []byte) (*Schema, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("schema: document is empty")
	}
	var out Schema
	if err := json.Unmarshal(raw, &out); err == nil {
		return &out, nil
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("schema: parse: invalid JSON or YAML: %w", err)
	}
	return &out, nil
}

// IsObject reports whether the node describes a nested object with fields.
func (s *Schema) IsObject() bool {
	return s != nil && s.Type == TypeObject && len(s.Properties) > 0
}

// IsRequired reports whether key is listed in the required set.
func (s *Schema) IsRequired(key string) bool {
	if s == nil {
		return false
	}
	for _, name := range s.Required {
		if name == key {
			return true
		}
	}
	return false
}

// HasDefault reports whether the node declares a non-null default value.
func (s *Schema) HasDefault() bool {
	return s != nil && s.Default != nil
}

// Property returns the nested schema for key or nil.
func (s *Schema) Property(key string) *Schema {
	if s == nil || s.Properties == nil {
		return nil
	}
	return s.Properties[key]
}

// OrderedKeys returns property names sorted by their order hint; properties
// without a hint follow in lexical order.
func (s *Schema) OrderedKeys() []string {
	if s == nil || len(s.Properties) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Properties))
	for key := range s.Properties {
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		oi, oj := orderOf(s.Properties[keys[i]]), orderOf(s.Properties[keys[j]])
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func orderOf(s *Schema) int {
	if s == nil || s.Order == nil {
		return int(^uint(0) >> 1)
	}
	return *s.Order
}

// Label returns the display name for the property key: its title when
// declared, otherwise the key humanised ("api_key" -> "Api key").
func (s *Schema) Label(key string) string {
	if prop := s.Property(key); prop != nil {
		if title := strings.TrimSpace(prop.Title); title != "" {
			return title
		}
	}
	return Humanize(key)
}

// Humanize converts a field key into a readable label.
func Humanize(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	replacer := strings.NewReplacer("_", " ", "-", " ", ".", " ")
	words := strings.Fields(replacer.Replace(key))
	text := strings.Join(words, " ")
	runes := []rune(text)
	if len(runes) == 0 {
		return key
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Check verifies the structural invariants of the schema tree: every required
// key must be declared in properties.
func (s *Schema) Check() error {
	return s.check("")
}

func (s *Schema) check(path string) error {
	if s == nil {
		return nil
	}
	for _, key := range s.Required {
		if _, ok := s.Properties[key]; !ok {
			return fmt.Errorf("schema: required key %q is not declared in properties%s", key, at(path))
		}
	}
	for _, key := range s.OrderedKeys() {
		if err := s.Properties[key].check(join(path, key)); err != nil {
			return err
		}
	}
	if s.Items != nil {
		return s.Items.check(join(path, "items"))
	}
	return nil
}

func at(path string) string {
	if path == "" {
		return ""
	}
	return " at " + path
}

func join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// Defaults builds the initial data for the schema: declared defaults for
// scalars and nested objects populated recursively. Keys without defaults are
// left absent.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any)
	if s == nil {
		return out
	}
	for _, key := range s.OrderedKeys() {
		prop := s.Properties[key]
		switch {
		case prop.HasDefault():
			out[key] = CloneValue(prop.Default)
		case prop.IsObject():
			if nested := prop.Defaults(); len(nested) > 0 {
				out[key] = nested
			}
		}
	}
	return out
}

// CloneValue deep copies JSON-like values (maps, slices, scalars).
func CloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = CloneValue(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = CloneValue(v)
		}
		return clone
	default:
		return typed
	}
}

// CloneData deep copies a form data map. A nil map yields an empty map.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return make(map[string]any)
	}
	return CloneValue(data).(map[string]any)
}
