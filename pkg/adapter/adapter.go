// Package adapter wraps a form renderer behind plain data callbacks. It owns
// the form's identity, normalises change payloads and suppresses updates that
// a handler triggers synchronously while a change is being propagated.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/goliatone/go-syncconsole/pkg/form"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/validation"
)

// Data is plain form data as page handlers see it.
type Data = map[string]any

// Baseline UI schema applied to every adapted form.
const (
	ContainerClass = "syncconsole-form"
	GridClass      = "grid grid-cols-2 gap-4"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithID fixes the form id instead of generating one.
func WithID(id string) Option {
	return func(a *Adapter) {
		if id != "" {
			a.id = id
		}
	}
}

// WithUISchema sets the caller UI schema merged over the baseline.
func WithUISchema(ui schema.UISchema) Option {
	return func(a *Adapter) {
		a.ui = ui
	}
}

// Adapter is one logical form instance.
type Adapter struct {
	id       string
	renderer *form.Renderer
	schema   *schema.Schema
	ui       schema.UISchema

	guard Guard
}

// New builds an adapter for s. The form id is stable for the adapter's
// lifetime.
func New(renderer *form.Renderer, s *schema.Schema, opts ...Option) *Adapter {
	if renderer == nil {
		renderer = form.New()
	}
	a := &Adapter{
		id:       uuid.New().String(),
		renderer: renderer,
		schema:   s,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// ID returns the stable form id.
func (a *Adapter) ID() string { return a.id }

// Schema returns the schema the adapter edits.
func (a *Adapter) Schema() *schema.Schema { return a.schema }

// UISchema returns the baseline merged with the caller's UI schema.
func (a *Adapter) UISchema() schema.UISchema { return MergeUISchema(a.ui) }

// Render renders f with the adapter's id and merged UI schema.
func (a *Adapter) Render(ctx context.Context, f form.Form) ([]byte, error) {
	f.ID = a.id
	f.Schema = a.schema
	f.UI = MergeUISchema(a.ui.Merge(f.UI))
	return a.renderer.Render(ctx, f)
}

// Event is a change or submit payload as the renderer or a browser sends it.
// Path and Value describe a single field update applied on top of Payload;
// Clear removes the field instead.
type Event struct {
	Payload any    `json:"payload,omitempty"`
	Path    string `json:"path,omitempty"`
	Value   any    `json:"value,omitempty"`
	Clear   bool   `json:"clear,omitempty"`
}

// Change applies ev and calls onChange with the complete new data. It
// returns false when the change was suppressed because another change is
// still propagating, which is the case for any Change a handler makes
// synchronously. onChange is passed per call so the latest handler always
// runs.
func (a *Adapter) Change(ctx context.Context, ev Event, onChange func(context.Context, form.Change)) (form.Change, bool, error) {
	if !a.guard.On(EventChange) {
		return form.Change{}, false, nil
	}
	defer a.guard.On(EventRearm)

	data, err := Normalize(ev.Payload)
	if err != nil {
		return form.Change{}, false, err
	}
	var change form.Change
	if ev.Path != "" {
		change = a.renderer.Change(a.schema, data, ev.Path, ev.Value, !ev.Clear)
	} else {
		change = form.Change{Data: data, Errors: validation.Live(data, a.schema)}
	}

	if onChange != nil {
		onChange(ctx, change)
	}
	return change, true, nil
}

// Submit normalises the payload and hands the plain data to onSubmit.
func (a *Adapter) Submit(ctx context.Context, ev Event, onSubmit form.SubmitFunc) error {
	data, err := Normalize(ev.Payload)
	if err != nil {
		return err
	}
	return a.renderer.Submit(a.schema, data, onSubmit)
}

// Normalize accepts {"formData": {...}}, a plain data map, or JSON encoding
// either, and returns the plain data map.
func Normalize(payload any) (Data, error) {
	switch typed := payload.(type) {
	case nil:
		return Data{}, nil
	case form.Change:
		return schema.CloneData(typed.Data), nil
	case *form.Change:
		if typed == nil {
			return Data{}, nil
		}
		return schema.CloneData(typed.Data), nil
	case map[string]any:
		if inner, ok := typed["formData"]; ok && isEnvelope(typed) {
			return Normalize(inner)
		}
		return schema.CloneData(typed), nil
	case json.RawMessage:
		return normalizeJSON(typed)
	case []byte:
		return normalizeJSON(typed)
	case string:
		return normalizeJSON([]byte(typed))
	default:
		return nil, fmt.Errorf("adapter: unsupported payload %T", payload)
	}
}

// envelopeKeys are the keys a renderer change event carries next to formData.
var envelopeKeys = map[string]bool{
	"formData": true, "errors": true, "errorSchema": true, "schema": true,
	"uiSchema": true, "idSchema": true, "edit": true, "status": true,
}

func isEnvelope(payload map[string]any) bool {
	for key := range payload {
		if !envelopeKeys[key] {
			return false
		}
	}
	return true
}

func normalizeJSON(raw []byte) (Data, error) {
	if len(raw) == 0 {
		return Data{}, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("adapter: decode payload: %w", err)
	}
	if decoded == nil {
		return Data{}, nil
	}
	if _, ok := decoded.(map[string]any); !ok {
		return nil, fmt.Errorf("adapter: payload must be an object")
	}
	return Normalize(decoded)
}

// MergeUISchema applies the caller UI schema over the baseline container and
// grid classes. Caller values win per key.
func MergeUISchema(caller schema.UISchema) schema.UISchema {
	base := schema.UISchema{
		schema.UIClassNames: ContainerClass,
		schema.UIGrid:       GridClass,
	}
	return base.Merge(caller)
}
