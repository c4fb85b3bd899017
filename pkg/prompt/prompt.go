// Package prompt fills a connector schema interactively from a terminal. It
// walks the same field kinds the HTML form renders and keeps asking for
// required fields until the validator is satisfied.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/form"
	"github.com/goliatone/go-syncconsole/pkg/sanitize"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/validation"
	"github.com/goliatone/go-syncconsole/pkg/visibility"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

const (
	defaultAttempts = 3
	noneOption      = "(none)"
)

// ErrIncomplete wraps the validation errors left after the last attempt.
var ErrIncomplete = errors.New("prompt: required fields left empty")

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the terminal driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithAttempts bounds how many times missing required fields are asked for
// again after the first pass.
func WithAttempts(n int) Option {
	return func(f *Filler) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// Filler collects form data for a schema one field at a time.
type Filler struct {
	driver   Driver
	attempts int
}

// New constructs a Filler backed by the survey driver unless overridden.
func New(opts ...Option) *Filler {
	f := &Filler{attempts: defaultAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver()
	}
	return f
}

// Fill prompts for every property of s, starting from prefill. The returned
// map is a fresh copy; prefill is never modified.
func (f *Filler) Fill(ctx context.Context, s *schema.Schema, ui schema.UISchema, prefill map[string]any) (map[string]any, error) {
	if ctx == nil {
		return nil, errors.New("prompt: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.driver == nil {
		return nil, ErrNoDriver
	}
	if s == nil {
		return nil, errors.New("prompt: schema is nil")
	}

	data := schema.CloneData(prefill)
	if data == nil {
		data = map[string]any{}
	}
	if err := f.fillObject(ctx, "", s, ui, data); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		errs := validation.Validate(data, s)
		if errs.Empty() {
			return data, nil
		}
		if attempt >= f.attempts {
			return data, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(errs.Paths(), ", "))
		}
		flat := errs.Flatten()
		for _, path := range errs.Paths() {
			if err := f.driver.Info(ctx, flat[path]); err != nil {
				return nil, err
			}
			current, present := form.GetIn(data, path)
			value, defined, err := f.ask(ctx, validation.LabelAt(s, path), form.SchemaAt(s, path), form.UIAt(ui, path), current, present, true)
			if err != nil {
				return nil, err
			}
			data = form.SetIn(data, path, value, defined)
		}
	}
}

func (f *Filler) fillObject(ctx context.Context, prefix string, s *schema.Schema, ui schema.UISchema, data map[string]any) error {
	for _, key := range s.OrderedKeys() {
		prop := s.Properties[key]
		fieldUI := ui.Field(key)
		if fieldUI.ReadOnly() || fieldUI.Disabled() {
			continue
		}
		if visible, _ := visibility.Visible(fieldUI.VisibleIf(), data); !visible {
			continue
		}
		current, present := data[key]
		value, defined, err := f.ask(ctx, s.Label(key), prop, fieldUI, current, present, s.IsRequired(key))
		if err != nil {
			return fmt.Errorf("prompt: %s: %w", joinPath(prefix, key), err)
		}
		if defined {
			data[key] = value
		} else {
			delete(data, key)
		}
	}
	return nil
}

// ask prompts for one value and reports whether it is defined afterwards.
func (f *Filler) ask(ctx context.Context, label string, s *schema.Schema, ui schema.UISchema, current any, present, required bool) (any, bool, error) {
	if s == nil {
		s = &schema.Schema{Type: schema.TypeString}
	}
	message := label
	if required {
		message += " *"
	}
	help := helpText(s, ui)

	switch s.Kind(ui) {
	case schema.KindObject:
		nested, _ := current.(map[string]any)
		nested = schema.CloneData(nested)
		if nested == nil {
			nested = map[string]any{}
		}
		if err := f.driver.Info(ctx, label); err != nil {
			return nil, false, err
		}
		if err := f.fillObject(ctx, "", s, ui, nested); err != nil {
			return nil, false, err
		}
		if len(nested) == 0 && !present {
			return nil, false, nil
		}
		return nested, true, nil

	case schema.KindArray:
		return f.askArray(ctx, label, s, ui, current, required)

	case schema.KindCheckbox:
		def, ok := current.(bool)
		if !ok {
			def, _ = s.Default.(bool)
		}
		answer, err := f.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: def, Help: help})
		if err != nil {
			return nil, false, err
		}
		return answer, true, nil

	case schema.KindSelect, schema.KindRadio:
		return f.askChoice(ctx, message, help, s, current, present, required)

	case schema.KindNumber:
		answer, err := f.driver.Input(ctx, InputConfig{
			Message: message,
			Default: defaultText(s, current, present),
			Help:    help,
			Validator: func(text string) error {
				if strings.TrimSpace(text) == "" {
					return nil
				}
				if _, ok := widgets.ParseNumber(s, text); !ok {
					return fmt.Errorf("%s must be a number", label)
				}
				return nil
			},
		})
		if err != nil {
			return nil, false, err
		}
		value, ok := widgets.ParseNumber(s, answer)
		return value, ok, nil

	case schema.KindPassword:
		stored, _ := current.(string)
		answer, err := f.driver.Password(ctx, InputConfig{Message: message, Default: stored, Help: help})
		if err != nil {
			return nil, false, err
		}
		if answer == "" {
			return nil, false, nil
		}
		return answer, true, nil

	default:
		answer, err := f.driver.Input(ctx, InputConfig{
			Message: message,
			Default: defaultText(s, current, present),
			Help:    help,
		})
		if err != nil {
			return nil, false, err
		}
		if answer == "" {
			return nil, false, nil
		}
		return answer, true, nil
	}
}

func (f *Filler) askChoice(ctx context.Context, message, help string, s *schema.Schema, current any, present, required bool) (any, bool, error) {
	options := widgets.Options(s)
	labels := make([]string, 0, len(options)+1)
	if !required {
		labels = append(labels, noneOption)
	}
	offset := len(labels)
	selected := -1
	want := current
	if !present && s.HasDefault() {
		want = s.Default
	}
	for idx, opt := range options {
		labels = append(labels, opt.Label)
		if want != nil && widgets.ValueString(opt.Value) == widgets.ValueString(want) {
			selected = idx + offset
		}
	}
	if selected < 0 {
		selected = 0
	}

	idx, err := f.driver.Select(ctx, SelectConfig{
		Message:      message,
		Options:      labels,
		DefaultIndex: selected,
		Help:         help,
	})
	if err != nil {
		return nil, false, err
	}
	if idx < offset || idx >= len(labels) {
		return nil, false, nil
	}
	return options[idx-offset].Value, true, nil
}

func (f *Filler) askArray(ctx context.Context, label string, s *schema.Schema, ui schema.UISchema, current any, required bool) (any, bool, error) {
	existing, _ := current.([]any)
	items := make([]any, 0, len(existing))
	for _, item := range existing {
		items = append(items, schema.CloneValue(item))
	}
	if ui.ReadOnly() || !ui.Addable() {
		return items, current != nil, nil
	}

	more, err := f.driver.Confirm(ctx, ConfirmConfig{
		Message: fmt.Sprintf("Add %s?", strings.ToLower(label)),
		Default: required && len(items) == 0,
	})
	if err != nil {
		return nil, false, err
	}
	for more {
		itemLabel := label + " #" + strconv.Itoa(len(items)+1)
		value, defined, err := f.ask(ctx, itemLabel, s.Items, ui.Items(), widgets.EmptyValue(s.Items), false, true)
		if err != nil {
			return nil, false, err
		}
		if !defined {
			value = widgets.EmptyValue(s.Items)
		}
		items = append(items, value)

		more, err = f.driver.Confirm(ctx, ConfirmConfig{Message: "Add another?"})
		if err != nil {
			return nil, false, err
		}
	}
	if len(items) == 0 && current == nil {
		return nil, false, nil
	}
	return items, true, nil
}

func defaultText(s *schema.Schema, current any, present bool) string {
	if present {
		return widgets.ValueString(current)
	}
	if s.HasDefault() {
		return widgets.ValueString(s.Default)
	}
	return ""
}

func helpText(s *schema.Schema, ui schema.UISchema) string {
	parts := make([]string, 0, 2)
	if s.Description != "" {
		parts = append(parts, html.UnescapeString(sanitize.Text(s.Description)))
	}
	if help := ui.Help(); help != "" {
		parts = append(parts, html.UnescapeString(sanitize.Text(help)))
	}
	return strings.Join(parts, " ")
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
