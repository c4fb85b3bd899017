package form

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-syncconsole/pkg/render/template"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/testsupport"
	"github.com/goliatone/go-syncconsole/pkg/validation"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

const postgresSchema = `{
  "type": "object",
  "required": ["host", "port", "database"],
  "properties": {
    "host": {"type": "string", "title": "Host", "order": 0},
    "port": {"type": "integer", "title": "Port", "default": 5432, "order": 1},
    "database": {"type": "string", "order": 2, "description": "Name of the <b>database</b><script>x()</script>"},
    "password": {"type": "string", "format": "password", "order": 3},
    "ssl": {"type": "boolean", "title": "Use SSL", "order": 4},
    "tunnel": {
      "type": "object",
      "title": "SSH tunnel",
      "order": 5,
      "required": ["user"],
      "properties": {
        "host": {"type": "string"},
        "user": {"type": "string", "title": "User"}
      }
    },
    "schemas": {"type": "array", "title": "Schemas", "order": 6, "items": {"type": "string", "default": "public"}}
  }
}`

func mustSchema(t *testing.T, raw string) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return s
}

func renderForm(t *testing.T, r *Renderer, f Form) string {
	t.Helper()
	out, err := r.Render(context.Background(), f)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return string(out)
}

func TestRender_FieldOrderAndStableIDs(t *testing.T) {
	r := New()
	out := renderForm(t, r, Form{
		ID:     "src",
		Action: "/sources/new",
		Schema: mustSchema(t, postgresSchema),
		Data:   map[string]any{"host": "db.local", "tunnel": map[string]any{"user": "root"}, "schemas": []any{"public"}},
	})

	order := []string{`data-field="host"`, `data-field="port"`, `data-field="database"`, `data-field="password"`, `data-field="ssl"`, `data-field="tunnel"`, `data-field="schemas"`}
	last := -1
	for _, marker := range order {
		idx := strings.Index(out, marker)
		if idx < 0 || idx < last {
			t.Fatalf("expected %s after previous field in:\n%s", marker, out)
		}
		last = idx
	}

	for _, want := range []string{
		`id="src_host"`,
		`name="host"`,
		`value="db.local"`,
		`for="src_host">Host *</label>`,
		`id="src_tunnel_user"`,
		`name="tunnel.user"`,
		`id="src_schemas_0"`,
		`name="schemas.0"`,
		`<legend class="px-1 text-sm font-semibold text-gray-900">SSH tunnel</legend>`,
		`<button type="submit" class="rounded-md bg-blue-600`,
		`name="__form" value="src"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}

	again := renderForm(t, r, Form{
		ID:     "src",
		Action: "/sources/new",
		Schema: mustSchema(t, postgresSchema),
		Data:   map[string]any{"host": "db.local", "tunnel": map[string]any{"user": "root"}, "schemas": []any{"public"}},
	})
	if again != out {
		t.Fatalf("render must be deterministic")
	}
}

func TestRender_SanitisesDescriptions(t *testing.T) {
	out := renderForm(t, New(), Form{ID: "f", Schema: mustSchema(t, postgresSchema)})
	if strings.Contains(out, "<script>") {
		t.Fatalf("description must be sanitised:\n%s", out)
	}
	if !strings.Contains(out, "<b>database</b>") {
		t.Fatalf("expected allowed markup to survive:\n%s", out)
	}
}

func TestRender_SubmitAffordance(t *testing.T) {
	s := mustSchema(t, `{"type":"object","properties":{"name":{"type":"string"}}}`)
	r := New()

	if out := renderForm(t, r, Form{ID: "f", Schema: s, Action: "/x", HideSubmit: true}); strings.Contains(out, `type="submit"`) {
		t.Fatalf("hidden submit must not render a button:\n%s", out)
	}
	if out := renderForm(t, r, Form{ID: "f", Schema: s}); strings.Contains(out, `type="submit"`) {
		t.Fatalf("form without action must not render a button:\n%s", out)
	}
	out := renderForm(t, r, Form{ID: "f", Schema: s, Action: "/x", SubmitLabel: "Next"})
	if !strings.Contains(out, ">Next</button>") {
		t.Fatalf("expected custom submit label:\n%s", out)
	}
}

func TestRender_InlineErrors(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	out := renderForm(t, New(), Form{ID: "f", Schema: s, Validate: true, Data: map[string]any{"tunnel": map[string]any{}}})
	for _, want := range []string{
		`data-error-for="host">Host is required</p>`,
		`data-error-for="database">Database is required</p>`,
		`data-error-for="tunnel.user">User is required</p>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, `data-error-for="port"`) {
		t.Fatalf("defaulted port must not be flagged:\n%s", out)
	}
}

func TestRender_GroupChromeFromUISchema(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	ui := schema.UISchema{
		"ui:classNames": "syncconsole-form",
		"ui:grid":       "grid grid-cols-2 gap-4",
		"tunnel":        map[string]any{"ui:title": false, "ui:classNames": "grid grid-cols-3 gap-2"},
	}
	out := renderForm(t, New(), Form{ID: "f", Schema: s, UI: ui})
	if strings.Contains(out, ">SSH tunnel</legend>") {
		t.Fatalf("ui:title=false must hide the group title:\n%s", out)
	}
	if !strings.Contains(out, `<div class="grid grid-cols-3 gap-2">`) {
		t.Fatalf("expected group class from ui schema:\n%s", out)
	}
	if !strings.Contains(out, `<form id="f" class="syncconsole-form"`) {
		t.Fatalf("expected container class once:\n%s", out)
	}
	if !strings.Contains(out, `<div class="grid grid-cols-2 gap-4">`) {
		t.Fatalf("expected root grid class:\n%s", out)
	}
}

func TestRender_GroupTemplateOverride(t *testing.T) {
	engine, err := template.New()
	if err != nil {
		t.Fatalf("template engine: %v", err)
	}
	s := mustSchema(t, postgresSchema)
	ui := schema.UISchema{"tunnel": map[string]any{"ui:groupTemplate": `<section class="card" id="{{ id }}"><h3>{{ title }}</h3>{{ children|safe }}</section>`}}

	out := renderForm(t, New(WithTemplates(engine)), Form{ID: "f", Schema: s, UI: ui})
	if !strings.Contains(out, `<section class="card" id="f_tunnel"><h3>SSH tunnel</h3>`) {
		t.Fatalf("expected custom group wrapper:\n%s", out)
	}
	if strings.Contains(out, "<fieldset") {
		t.Fatalf("custom wrapper must replace default chrome:\n%s", out)
	}
	if !strings.Contains(out, `name="tunnel.user"`) {
		t.Fatalf("children must still render:\n%s", out)
	}

	if _, err := New().Render(context.Background(), Form{ID: "f", Schema: s, UI: ui}); err == nil {
		t.Fatalf("expected error without a template renderer")
	}
}

func TestRender_ThemePartialAndCSSVars(t *testing.T) {
	engine, err := template.New()
	if err != nil {
		t.Fatalf("template engine: %v", err)
	}
	cfg := &theme.RendererConfig{
		Theme:    "acme",
		Variant:  "dark",
		Partials: map[string]string{"forms.group": `<div class="acme-group">{{ children|safe }}</div>`},
		CSSVars:  map[string]string{"--brand": "#123456"},
	}
	s := mustSchema(t, postgresSchema)
	ui := schema.UISchema{"tunnel": map[string]any{"ui:groupTemplate": "forms.group"}}

	out := renderForm(t, New(WithTemplates(engine), WithTheme(cfg)), Form{ID: "f", Schema: s, UI: ui})
	for _, want := range []string{`data-theme="acme"`, `data-theme-variant="dark"`, `style="--brand: #123456"`, `<div class="acme-group">`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRender_ConditionalFields(t *testing.T) {
	s := testsupport.MustLoadSchema(t, "testdata/tls.schema.yaml")
	ui := testsupport.MustLoadUISchema(t, "testdata/tls.ui.yaml")

	out := renderForm(t, New(), Form{ID: "f", Schema: s, UI: ui, Data: s.Defaults()})
	if !strings.Contains(out, `data-field="ssl_root_cert" data-kind="text" data-visible-if="ssl_mode == &#34;verify-full&#34;" hidden>`) {
		t.Fatalf("expected ssl_root_cert hidden while ssl is disabled:\n%s", out)
	}
	if strings.Contains(out, `data-visible-if="!ssl_root_cert" hidden`) {
		t.Fatalf("tunnel must be visible without a certificate:\n%s", out)
	}

	out = renderForm(t, New(), Form{ID: "f", Schema: s, UI: ui, Data: map[string]any{
		"ssl_mode":      "verify-full",
		"ssl_root_cert": "/etc/ssl/ca.pem",
	}})
	if strings.Contains(out, `data-field="ssl_root_cert" data-kind="text" data-visible-if="ssl_mode == &#34;verify-full&#34;" hidden`) {
		t.Fatalf("ssl_root_cert must show for verify-full:\n%s", out)
	}
	if !strings.Contains(out, `data-visible-if="!ssl_root_cert" hidden>`) {
		t.Fatalf("tunnel must hide once a certificate is set:\n%s", out)
	}
}

func TestRender_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Render(ctx, Form{Schema: mustSchema(t, postgresSchema)}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestChange_ImmutableAndIdempotent(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	r := New()
	data := map[string]any{"host": "db", "tunnel": map[string]any{"user": "root"}}

	first := r.Change(s, data, "tunnel.host", "bastion", true)
	second := r.Change(s, first.Data, "tunnel.host", "bastion", true)
	if diff := cmp.Diff(first.Data, second.Data); diff != "" {
		t.Fatalf("repeated change drifted (-first +second):\n%s", diff)
	}
	want := map[string]any{"host": "db", "tunnel": map[string]any{"user": "root", "host": "bastion"}}
	if diff := cmp.Diff(want, first.Data); diff != "" {
		t.Fatalf("data (-want +got):\n%s", diff)
	}
	if _, ok := data["tunnel"].(map[string]any)["host"]; ok {
		t.Fatalf("change mutated the previous data")
	}
	if diff := cmp.Diff([]string{"Database is required"}, first.Errors["database"]); diff != "" {
		t.Fatalf("errors (-want +got):\n%s", diff)
	}
}

func TestChange_UndefinedRemovesKey(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	got := New().Change(s, map[string]any{"host": "db", "port": float64(5432)}, "port", nil, false)
	if _, ok := got.Data["port"]; ok {
		t.Fatalf("expected port to be removed, got %#v", got.Data)
	}
}

func TestChange_EndToEndRegionScenario(t *testing.T) {
	s := mustSchema(t, `{
  "type": "object",
  "required": ["name", "region"],
  "properties": {
    "name": {"type": "string", "title": "Name"},
    "region": {"type": "string", "enum": ["us-east-1", "us-west-2"], "default": "us-east-1"}
  }
}`)
	r := New()
	if diff := cmp.Diff(validation.Errors{"name": "Name is required"}, validation.Validate(map[string]any{}, s)); diff != "" {
		t.Fatalf("initial (-want +got):\n%s", diff)
	}
	step := r.Change(s, map[string]any{}, "name", "acme", true)
	if !validation.Validate(step.Data, s).Empty() {
		t.Fatalf("expected no errors after setting name")
	}
	step = r.Change(s, step.Data, "region", "", true)
	if diff := cmp.Diff(validation.Errors{"region": "Region is required"}, validation.Validate(step.Data, s)); diff != "" {
		t.Fatalf("cleared default (-want +got):\n%s", diff)
	}
}

func TestSetInAndGetIn(t *testing.T) {
	data := map[string]any{"streams": []any{map[string]any{"name": "users"}}}
	got := SetIn(data, "streams.1.name", "orders", true)
	want := map[string]any{"streams": []any{map[string]any{"name": "users"}, map[string]any{"name": "orders"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("set (-want +got):\n%s", diff)
	}
	if len(data["streams"].([]any)) != 1 {
		t.Fatalf("SetIn mutated the input list")
	}
	if value, ok := GetIn(got, "streams.1.name"); !ok || value != "orders" {
		t.Fatalf("GetIn returned %#v (ok=%v)", value, ok)
	}
	if _, ok := GetIn(got, "streams.5.name"); ok {
		t.Fatalf("expected missing path")
	}
}

func TestSetInNeverPadsLists(t *testing.T) {
	data := map[string]any{"streams": []any{"users"}}
	got := SetIn(data, "streams.5", "orders", true)
	if diff := cmp.Diff(data, got); diff != "" {
		t.Fatalf("out of range set changed data (-want +got):\n%s", diff)
	}
	got = SetIn(map[string]any{}, "streams.20000000", "x", true)
	if diff := cmp.Diff(map[string]any{"streams": []any{}}, got); diff != "" {
		t.Fatalf("large index (-want +got):\n%s", diff)
	}
	got = SetIn(data, "streams.1", "orders", true)
	if diff := cmp.Diff(map[string]any{"streams": []any{"users", "orders"}}, got); diff != "" {
		t.Fatalf("append (-want +got):\n%s", diff)
	}
}

func TestDecode_RejectsOversizedRowCount(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	values := url.Values{"schemas.__len": {strconv.Itoa(widgets.MaxRows + 1)}}
	if _, err := New().Decode(s, nil, values); err == nil {
		t.Fatalf("expected an error for a row count above the limit")
	}
	values = url.Values{"schemas.__len": {"20000000"}}
	if _, err := New().Decode(s, nil, values); err == nil {
		t.Fatalf("expected an error for a huge row count")
	}
}

func TestDecode_SubmittedValues(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	values := url.Values{
		"host":          {"db.local"},
		"port":          {"6543"},
		"password":      {"s3cret"},
		"ssl":           {"false", "true"},
		"tunnel.user":   {"root"},
		"schemas.__len": {"2"},
		"schemas.0":     {"public"},
		"schemas.1":     {"audit"},
		"unknown.field": {"ignored"},
		FormIDField:     {"f"},
	}
	got, err := New().Decode(s, nil, values)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"host":     "db.local",
		"port":     int64(6543),
		"password": "s3cret",
		"ssl":      true,
		"tunnel":   map[string]any{"user": "root"},
		"schemas":  []any{"public", "audit"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded (-want +got):\n%s", diff)
	}
}

func TestDecode_ClearedNumberIsUndefined(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	got, err := New().Decode(s, nil, url.Values{"port": {""}, "host": {""}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"host": ""}, got); diff != "" {
		t.Fatalf("decoded (-want +got):\n%s", diff)
	}
}

func TestApplyArrayAction(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	r := New()
	data := map[string]any{"schemas": []any{"a", "b", "a"}}

	added, ok, err := r.ApplyArrayAction(s, data, url.Values{"__add": {"schemas"}})
	if err != nil || !ok {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff([]any{"a", "b", "a", "public"}, added["schemas"]); diff != "" {
		t.Fatalf("add (-want +got):\n%s", diff)
	}

	removed, ok, err := r.ApplyArrayAction(s, data, url.Values{"__remove": {"schemas.2"}})
	if err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff([]any{"a", "b"}, removed["schemas"]); diff != "" {
		t.Fatalf("remove (-want +got):\n%s", diff)
	}
	if len(data["schemas"].([]any)) != 3 {
		t.Fatalf("array action mutated input")
	}

	if _, ok, _ := r.ApplyArrayAction(s, data, url.Values{}); ok {
		t.Fatalf("expected no action")
	}
	if _, _, err := r.ApplyArrayAction(s, data, url.Values{"__add": {"host"}}); err == nil {
		t.Fatalf("expected error for non-array path")
	}
}

func TestSubmit_PassesCompleteData(t *testing.T) {
	s := mustSchema(t, postgresSchema)
	data := map[string]any{"host": "db", "database": "app"}
	var got map[string]any
	var gotErrs validation.Errors
	err := New().Submit(s, data, func(d map[string]any, errs validation.Errors) error {
		got, gotErrs = d, errs
		return nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Fatalf("submitted (-want +got):\n%s", diff)
	}
	if !gotErrs.Empty() {
		t.Fatalf("expected valid data, got %#v", gotErrs)
	}
	if err := New().Submit(s, data, nil); err != nil {
		t.Fatalf("nil submit must be a no-op")
	}
}

func TestFieldID(t *testing.T) {
	cases := map[string]string{
		FieldID("f", "tunnel.host"):    "f_tunnel_host",
		FieldID("f", "streams", "0"):   "f_streams_0",
		FieldID("", "host"):            "host",
		FieldID("f", "streams.0.name"): "f_streams_0_name",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
