package form

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

// Decode turns a submitted HTML form into form data. Field names are dotted
// paths; array rows use numeric segments and a "<path>.__len" row count.
// Fields missing from the submission stay undefined.
func (r *Renderer) Decode(s *schema.Schema, ui schema.UISchema, values url.Values) (map[string]any, error) {
	out, err := r.decodeObject("", s, ui, values)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func (r *Renderer) decodeObject(prefix string, s *schema.Schema, ui schema.UISchema, values url.Values) (map[string]any, error) {
	var out map[string]any
	for _, key := range s.OrderedKeys() {
		path := joinPath(prefix, key)
		value, ok, err := r.decodeValue(path, s.Properties[key], ui.Field(key), values)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[key] = value
	}
	return out, nil
}

func (r *Renderer) decodeValue(path string, s *schema.Schema, ui schema.UISchema, values url.Values) (any, bool, error) {
	switch s.Kind(ui) {
	case schema.KindObject:
		nested, err := r.decodeObject(path, s, ui, values)
		if err != nil {
			return nil, false, err
		}
		if nested == nil {
			return nil, false, nil
		}
		return nested, true, nil
	case schema.KindArray:
		raw, ok := values[path+widgets.LengthSuffix]
		if !ok {
			return nil, false, nil
		}
		sized, ok := widgets.Array{}.Decode(widgets.Props{Name: path}, raw)
		if !ok {
			return nil, false, fmt.Errorf("form: field %q: invalid row count %q", path, strings.Join(raw, ","))
		}
		list := sized.([]any)
		items := s.Items
		if items == nil {
			items = &schema.Schema{Type: schema.TypeString}
		}
		for idx := range list {
			item, ok, err := r.decodeValue(joinPath(path, strconv.Itoa(idx)), items, ui.Items(), values)
			if err != nil {
				return nil, false, err
			}
			if ok {
				list[idx] = item
			} else if items.Kind(ui.Items()) == schema.KindObject {
				list[idx] = map[string]any{}
			}
		}
		return list, true, nil
	}

	raw, ok := values[path]
	if !ok {
		return nil, false, nil
	}
	w, err := r.widgets.Resolve(s, ui)
	if err != nil {
		return nil, false, fmt.Errorf("form: field %q: %w", path, err)
	}
	value, ok := w.Decode(widgets.Props{Name: path, Schema: s, UI: ui}, raw)
	return value, ok, nil
}
