package prompt

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

type stubDriver struct {
	inputs    []string
	passwords []string
	confirm   []bool
	selectIdx []int

	inputPos   int
	passPos    int
	confirmPos int
	selectPos  int

	selects []SelectConfig
	infos   []string
	err     error
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Password(_ context.Context, cfg InputConfig) (string, error) {
	if s.passPos >= len(s.passwords) {
		return "", errors.New("no password scripted")
	}
	val := s.passwords[s.passPos]
	s.passPos++
	if val == "" {
		return cfg.Default, nil
	}
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.selects = append(s.selects, cfg)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infos = append(s.infos, msg)
	return nil
}

func mustSchema(t *testing.T, raw string) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return s
}

const connectionSchema = `{
  "type": "object",
  "required": ["host"],
  "properties": {
    "host": {"type": "string"},
    "password": {"type": "string", "format": "password"},
    "port": {"type": "integer"},
    "region": {"type": "string", "enum": ["us-east-1", "us-west-2"], "default": "us-east-1"},
    "ssl": {"type": "boolean"},
    "tags": {"type": "array", "items": {"type": "string"}}
  }
}`

func TestFillCollectsEveryKind(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"db.local", "5432", "a", "b"},
		passwords: []string{"s3cret"},
		confirm:   []bool{true, true, true, false},
		selectIdx: []int{2},
	}
	got, err := New(WithDriver(driver)).Fill(context.Background(), mustSchema(t, connectionSchema), nil, nil)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}

	want := map[string]any{
		"host":     "db.local",
		"password": "s3cret",
		"port":     int64(5432),
		"region":   "us-west-2",
		"ssl":      true,
		"tags":     []any{"a", "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filled data mismatch (-want +got):\n%s", diff)
	}

	if len(driver.selects) != 1 {
		t.Fatalf("expected one select prompt, got %d", len(driver.selects))
	}
	if diff := cmp.Diff([]string{noneOption, "us-east-1", "us-west-2"}, driver.selects[0].Options); diff != "" {
		t.Fatalf("select options (-want +got):\n%s", diff)
	}
	if driver.selects[0].DefaultIndex != 1 {
		t.Fatalf("expected schema default preselected, got index %d", driver.selects[0].DefaultIndex)
	}
}

func TestFillSkipsHiddenFields(t *testing.T) {
	s := mustSchema(t, `{
  "type": "object",
  "properties": {
    "ssl": {"type": "boolean", "order": 1},
    "ca_path": {"type": "string", "order": 2}
  }
}`)
	ui := schema.UISchema{"ca_path": map[string]any{schema.UIVisibleIf: "ssl"}}

	driver := &stubDriver{confirm: []bool{false}}
	got, err := New(WithDriver(driver)).Fill(context.Background(), s, ui, nil)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"ssl": false}, got); diff != "" {
		t.Fatalf("hidden field must not be asked (-want +got):\n%s", diff)
	}

	driver = &stubDriver{confirm: []bool{true}, inputs: []string{"/etc/ca.pem"}}
	got, err = New(WithDriver(driver)).Fill(context.Background(), s, ui, nil)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"ssl": true, "ca_path": "/etc/ca.pem"}, got); diff != "" {
		t.Fatalf("visible field (-want +got):\n%s", diff)
	}
}

func TestFillRepromptsRequiredFields(t *testing.T) {
	s := mustSchema(t, `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	driver := &stubDriver{inputs: []string{"", "acme"}}

	got, err := New(WithDriver(driver)).Fill(context.Background(), s, nil, nil)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"name": "acme"}, got); diff != "" {
		t.Fatalf("filled data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Name is required"}, driver.infos); diff != "" {
		t.Fatalf("info messages (-want +got):\n%s", diff)
	}
}

func TestFillGivesUpAfterAttempts(t *testing.T) {
	s := mustSchema(t, `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	driver := &stubDriver{inputs: []string{"", ""}}

	_, err := New(WithDriver(driver), WithAttempts(1)).Fill(context.Background(), s, nil, nil)
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestFillKeepsStoredSecretAndPrefill(t *testing.T) {
	s := mustSchema(t, `{"type":"object","properties":{"password":{"type":"string","format":"password"}}}`)
	prefill := map[string]any{"password": "old"}
	driver := &stubDriver{passwords: []string{""}}

	got, err := New(WithDriver(driver)).Fill(context.Background(), s, nil, prefill)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got["password"] != "old" {
		t.Fatalf("expected stored secret to be kept, got %#v", got["password"])
	}
	got["password"] = "changed"
	if prefill["password"] != "old" {
		t.Fatalf("prefill must not be modified")
	}
}

func TestFillNestedObject(t *testing.T) {
	s := mustSchema(t, `{
  "type": "object",
  "required": ["tunnel"],
  "properties": {
    "tunnel": {
      "type": "object",
      "title": "SSH tunnel",
      "required": ["host"],
      "properties": {"host": {"type": "string"}}
    }
  }
}`)
	driver := &stubDriver{inputs: []string{"bastion"}}

	got, err := New(WithDriver(driver)).Fill(context.Background(), s, nil, nil)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	want := map[string]any{"tunnel": map[string]any{"host": "bastion"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filled data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"SSH tunnel"}, driver.infos); diff != "" {
		t.Fatalf("info messages (-want +got):\n%s", diff)
	}
}

func TestFillSkipsReadOnlyFields(t *testing.T) {
	s := mustSchema(t, `{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"}}}`)
	ui := schema.UISchema{"id": map[string]any{"ui:readonly": true}}
	driver := &stubDriver{inputs: []string{"acme"}}

	got, err := New(WithDriver(driver)).Fill(context.Background(), s, ui, map[string]any{"id": "src-1"})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"id": "src-1", "name": "acme"}, got); diff != "" {
		t.Fatalf("filled data mismatch (-want +got):\n%s", diff)
	}
}

func TestFillPropagatesAbort(t *testing.T) {
	s := mustSchema(t, `{"type":"object","properties":{"name":{"type":"string"}}}`)
	driver := &stubDriver{err: ErrAborted}

	_, err := New(WithDriver(driver)).Fill(context.Background(), s, nil, nil)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestFillRejectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(WithDriver(&stubDriver{})).Fill(ctx, mustSchema(t, connectionSchema), nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTranslateSurveyErr(t *testing.T) {
	if err := translateSurveyErr(fmt.Errorf("ask: %w", terminal.InterruptErr)); !errors.Is(err, ErrAborted) {
		t.Fatalf("interrupt must map to ErrAborted, got %v", err)
	}
	other := errors.New("boom")
	if err := translateSurveyErr(other); err != other {
		t.Fatalf("other errors must pass through, got %v", err)
	}
}
