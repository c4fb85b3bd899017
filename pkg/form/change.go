package form

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/validation"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

// Change is the outcome of one field update: the complete new form data and
// the live errors for it. Errors are advisory and never block the update.
type Change struct {
	Data   map[string]any      `json:"formData"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// Change returns new form data with the value at path replaced. present=false
// removes the key. The input map is never modified.
func (r *Renderer) Change(s *schema.Schema, data map[string]any, path string, value any, present bool) Change {
	next := SetIn(data, path, value, present)
	return Change{Data: next, Errors: validation.Live(next, s)}
}

// SetIn copies data and sets the value at a dotted path, creating
// intermediate objects as needed. Numeric segments index into lists; an index
// may append one element but never pads, so out of range sets are ignored.
func SetIn(data map[string]any, path string, value any, present bool) map[string]any {
	out := schema.CloneData(data)
	segments := splitPath(path)
	if len(segments) == 0 {
		return out
	}
	setIn(out, segments, schema.CloneValue(value), present)
	return out
}

func setIn(container any, segments []string, value any, present bool) any {
	head, rest := segments[0], segments[1:]
	switch typed := container.(type) {
	case map[string]any:
		if len(rest) == 0 {
			if present {
				typed[head] = value
			} else {
				delete(typed, head)
			}
			return typed
		}
		child := typed[head]
		if child == nil {
			if _, err := strconv.Atoi(rest[0]); err == nil {
				child = []any{}
			} else {
				child = map[string]any{}
			}
		}
		typed[head] = setIn(child, rest, value, present)
		return typed
	case []any:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx > len(typed) {
			return typed
		}
		if idx == len(typed) {
			typed = append(typed, nil)
		}
		if len(rest) == 0 {
			if present {
				typed[idx] = value
			} else {
				typed[idx] = nil
			}
			return typed
		}
		child := typed[idx]
		if child == nil {
			child = map[string]any{}
		}
		typed[idx] = setIn(child, rest, value, present)
		return typed
	default:
		return setIn(map[string]any{}, segments, value, present)
	}
}

// GetIn reads the value at a dotted path.
func GetIn(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, segment := range splitPath(path) {
		switch typed := current.(type) {
		case map[string]any:
			value, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// SchemaAt resolves the schema node for a dotted path. Numeric segments step
// into array items.
func SchemaAt(s *schema.Schema, path string) *schema.Schema {
	node := s
	for _, segment := range splitPath(path) {
		if node == nil {
			return nil
		}
		if node.Type == schema.TypeArray {
			if _, err := strconv.Atoi(segment); err != nil {
				return nil
			}
			node = node.Items
			continue
		}
		node = node.Property(segment)
	}
	return node
}

// UIAt resolves the UI schema for a dotted path.
func UIAt(ui schema.UISchema, path string) schema.UISchema {
	node := ui
	for _, segment := range splitPath(path) {
		if _, err := strconv.Atoi(segment); err == nil {
			node = node.Items()
			continue
		}
		node = node.Field(segment)
	}
	return node
}

// ApplyArrayAction handles the add and remove buttons of array widgets. It
// reports false when the submission carries no array action.
func (r *Renderer) ApplyArrayAction(s *schema.Schema, data map[string]any, values url.Values) (map[string]any, bool, error) {
	if path := strings.TrimSpace(values.Get(widgets.ActionAdd)); path != "" {
		node := SchemaAt(s, path)
		if node == nil || node.Type != schema.TypeArray {
			return nil, false, fmt.Errorf("form: %q is not an array field", path)
		}
		current, _ := GetIn(data, path)
		list, _ := current.([]any)
		return SetIn(data, path, widgets.AppendItem(list, node.Items), true), true, nil
	}
	if target := strings.TrimSpace(values.Get(widgets.ActionRemove)); target != "" {
		cut := strings.LastIndex(target, ".")
		if cut <= 0 {
			return nil, false, fmt.Errorf("form: malformed remove target %q", target)
		}
		path := target[:cut]
		idx, err := strconv.Atoi(target[cut+1:])
		if err != nil {
			return nil, false, fmt.Errorf("form: malformed remove target %q", target)
		}
		node := SchemaAt(s, path)
		if node == nil || node.Type != schema.TypeArray {
			return nil, false, fmt.Errorf("form: %q is not an array field", path)
		}
		current, _ := GetIn(data, path)
		list, _ := current.([]any)
		return SetIn(data, path, widgets.RemoveAt(list, idx), true), true, nil
	}
	return data, false, nil
}

// SubmitFunc receives the complete form data and the validator's verdict.
// Gating on errs is the caller's decision.
type SubmitFunc func(data map[string]any, errs validation.Errors) error

// Submit validates data and hands a copy to fn. A nil fn is a no-op.
func (r *Renderer) Submit(s *schema.Schema, data map[string]any, fn SubmitFunc) error {
	if fn == nil {
		return nil
	}
	return fn(schema.CloneData(data), validation.Validate(data, s))
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	out := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
