package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Component is a named schema lifted from an OpenAPI document's
// components.schemas section. Extensions keeps the x-* keys so callers can
// read connector metadata such as x-connector or x-ui.
type Component struct {
	Name       string
	Schema     *Schema
	Extensions map[string]any
}

// LoadOpenAPIComponents parses an OpenAPI 3 document and converts every entry
// in components.schemas into the form schema model.
func LoadOpenAPIComponents(ctx context.Context, raw []byte) ([]Component, error) {
	if len(raw) == 0 {
		return nil, errors.New("schema: openapi document is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: load openapi document: %w", err)
	}
	if doc.Components == nil || len(doc.Components.Schemas) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(doc.Components.Schemas))
	for name := range doc.Components.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Component, 0, len(names))
	for _, name := range names {
		ref := doc.Components.Schemas[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		out = append(out, Component{
			Name:       name,
			Schema:     FromOpenAPI(ref),
			Extensions: cloneExtensions(ref.Value.Extensions),
		})
	}
	return out, nil
}

// FromOpenAPI converts a kin-openapi schema reference into a Schema.
func FromOpenAPI(ref *openapi3.SchemaRef) *Schema {
	if ref == nil || ref.Value == nil {
		return nil
	}
	src := ref.Value
	out := &Schema{
		Type:        Type(firstSchemaType(src.Type)),
		Title:       src.Title,
		Description: src.Description,
		Format:      src.Format,
		Default:     src.Default,
		Pattern:     src.Pattern,
	}
	if len(src.Required) > 0 {
		out.Required = append([]string(nil), src.Required...)
	}
	if len(src.Enum) > 0 {
		out.Enum = append([]any(nil), src.Enum...)
	}
	if len(src.Properties) > 0 {
		out.Properties = make(map[string]*Schema, len(src.Properties))
		for name, property := range src.Properties {
			if converted := FromOpenAPI(property); converted != nil {
				out.Properties[name] = converted
			}
		}
	}
	if src.Items != nil {
		out.Items = FromOpenAPI(src.Items)
	}
	if src.Min != nil {
		value := *src.Min
		out.Minimum = &value
	}
	if src.Max != nil {
		value := *src.Max
		out.Maximum = &value
	}
	if src.MinLength != 0 {
		value := int(src.MinLength)
		out.MinLength = &value
	}
	if src.MaxLength != nil {
		value := int(*src.MaxLength)
		out.MaxLength = &value
	}
	if placeholder, ok := src.Extensions["x-placeholder"].(string); ok {
		out.Placeholder = placeholder
	}
	if order, ok := extensionInt(src.Extensions["x-order"]); ok {
		out.Order = &order
	}
	if out.Type == "" && len(out.Properties) > 0 {
		out.Type = TypeObject
	}
	return out
}

func firstSchemaType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	for _, value := range types.Slice() {
		if value = strings.TrimSpace(value); value != "" && value != "null" {
			return value
		}
	}
	return ""
}

func extensionInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}

func cloneExtensions(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = CloneValue(value)
	}
	return out
}
