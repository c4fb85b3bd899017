// Package visibility evaluates ui:visibleIf rules against form data.
//
// A rule is a small boolean expression over field paths:
//
//	ssl_mode == "verify-full"
//	auth.method != 'keys' && !legacy
//	(port == 5432 || tls) && region != null
//
// Identifiers are dotted paths from the object that holds the field, so a
// connector schema keeps working when it is nested inside a larger form. A
// bare identifier is true when its value is set and not a zero value. An
// empty rule is always true.
package visibility

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Rule is a compiled ui:visibleIf expression.
type Rule struct {
	source string
	root   node
}

// Compile parses rule.
func Compile(rule string) (*Rule, error) {
	p := &parser{lex: lexer{input: rule}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	r := &Rule{source: strings.TrimSpace(rule)}
	if p.tok.kind == tokEOF {
		return r, nil
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("visibility: unexpected %q at %d", p.tok.text, p.tok.pos)
	}
	r.root = root
	return r, nil
}

// String returns the rule source.
func (r *Rule) String() string { return r.source }

// Eval reports whether the rule holds for data.
func (r *Rule) Eval(data map[string]any) bool {
	if r == nil || r.root == nil {
		return true
	}
	return truthy(r.root.eval(data))
}

// Visible evaluates rule against scope, the data of the object holding the
// field. Rules that fail to parse leave the
// field visible and return the parse error.
func Visible(rule string, scope map[string]any) (bool, error) {
	r, err := Compile(rule)
	if err != nil {
		return true, err
	}
	return r.Eval(scope), nil
}

// Hidden lists the paths of properties whose rule is false for data, in
// schema order. Children of a hidden object are not listed separately.
func Hidden(s *schema.Schema, ui schema.UISchema, data map[string]any) []string {
	var out []string
	walk(s, ui, "", data, func(path, rule string, scope map[string]any) bool {
		if visible, _ := Visible(rule, scope); !visible {
			out = append(out, path)
			return false
		}
		return true
	})
	return out
}

// Check compiles every rule in ui and reports the ones that do not parse.
func Check(s *schema.Schema, ui schema.UISchema) error {
	var errs []error
	walk(s, ui, "", nil, func(path, rule string, _ map[string]any) bool {
		if _, err := Compile(rule); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		return true
	})
	return errors.Join(errs...)
}

// walk visits properties carrying a rule with the data of the enclosing
// object. fn returns false to skip the property's children.
func walk(s *schema.Schema, ui schema.UISchema, prefix string, data map[string]any, fn func(path, rule string, scope map[string]any) bool) {
	if s == nil {
		return
	}
	for _, key := range s.OrderedKeys() {
		prop := s.Properties[key]
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		fieldUI := ui.Field(key)
		if rule := fieldUI.VisibleIf(); rule != "" && !fn(path, rule, data) {
			continue
		}
		if prop.IsObject() {
			nested, _ := data[key].(map[string]any)
			walk(prop, fieldUI, path, nested, fn)
		}
	}
}

// Lookup resolves a dotted path in data. Numeric segments index arrays.
func Lookup(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, segment := range strings.Split(path, ".") {
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

func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case []any:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	}
	if n, ok := number(value); ok {
		return n != 0
	}
	return true
}

func number(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}
