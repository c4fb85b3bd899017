package validation

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Errors maps a property key to either a message (string) or the nested
// Errors of an object property. It is produced fresh on every pass.
type Errors map[string]any

// Empty reports whether the pass found no problems.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Flatten converts nested errors into dotted paths ("tunnel.host").
func (e Errors) Flatten() map[string]string {
	out := make(map[string]string)
	e.flatten("", out)
	return out
}

func (e Errors) flatten(prefix string, out map[string]string) {
	for key, value := range e {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch typed := value.(type) {
		case string:
			out[path] = typed
		case Errors:
			typed.flatten(path, out)
		}
	}
}

// Paths returns the flattened error paths in lexical order.
func (e Errors) Paths() []string {
	flat := e.Flatten()
	paths := make([]string, 0, len(flat))
	for path := range flat {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Validate reports required properties that are missing or empty, recursing
// into nested objects. A property with a default is excused only while its
// key is absent from data; an explicitly cleared value is still reported.
// Type, enum, format and range checks are left to Check.
func Validate(data map[string]any, s *schema.Schema) Errors {
	errs := Errors{}
	if s == nil || len(s.Properties) == 0 {
		return errs
	}

	for _, key := range s.OrderedKeys() {
		prop := s.Properties[key]
		value, present := data[key]

		if s.IsRequired(key) && IsEmpty(value) {
			excused := prop.HasDefault() && !present
			if !excused {
				errs[key] = fmt.Sprintf("%s is required", s.Label(key))
			}
		}

		if prop.IsObject() && present {
			nested, ok := value.(map[string]any)
			if !ok {
				continue
			}
			if child := Validate(nested, prop); len(child) > 0 {
				errs[key] = child
			}
		}
	}
	return errs
}

// IsEmpty reports whether value counts as "not provided": nil, an empty
// string, or an empty list.
func IsEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	default:
		return false
	}
}
