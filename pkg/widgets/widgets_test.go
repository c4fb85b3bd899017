package widgets

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

func render(t *testing.T, w Widget, p Props) string {
	t.Helper()
	var buf bytes.Buffer
	if err := w.Render(&buf, p); err != nil {
		t.Fatalf("render %s: %v", w.Kind(), err)
	}
	return buf.String()
}

func TestPlaceholderSynthesis(t *testing.T) {
	cases := []struct {
		name  string
		props Props
		want  string
	}{
		{"explicit", Props{Name: "host", Placeholder: "db.example.com"}, "db.example.com"},
		{"ui schema", Props{Name: "host", UI: schema.UISchema{"ui:placeholder": "from ui"}}, "from ui"},
		{"schema", Props{Name: "host", Schema: &schema.Schema{Placeholder: "from schema"}}, "from schema"},
		{"title", Props{Name: "host", Schema: &schema.Schema{Title: "Database Host"}}, "Enter database host"},
		{"required name", Props{Name: "tunnel.ssh_user", Required: true}, "Enter ssh user*"},
		{"no props", Props{}, "Enter "},
	}
	for _, tc := range cases {
		if got := Placeholder(tc.props); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestTextMarksRequiredEmptyInvalid(t *testing.T) {
	out := render(t, Text{}, Props{ID: "f_host", Name: "host", Required: true})
	if !strings.Contains(out, inputInvalidClass) || !strings.Contains(out, `aria-invalid="true"`) {
		t.Fatalf("expected invalid treatment, got %s", out)
	}
	out = render(t, Text{}, Props{ID: "f_host", Name: "host", Required: true, Value: "db"})
	if strings.Contains(out, inputInvalidClass) {
		t.Fatalf("filled field must not be invalid: %s", out)
	}
	if !strings.Contains(out, `value="db"`) || !strings.Contains(out, `placeholder="Enter host*"`) {
		t.Fatalf("unexpected markup: %s", out)
	}
}

func TestTextEscapesValues(t *testing.T) {
	out := render(t, Text{}, Props{Name: "name", Value: `"><script>`})
	if strings.Contains(out, "<script>") {
		t.Fatalf("value must be escaped: %s", out)
	}
}

func TestTextDecodeVerbatim(t *testing.T) {
	got, ok := Text{}.Decode(Props{}, []string{"  spaced  "})
	if !ok || got != "  spaced  " {
		t.Fatalf("expected verbatim value, got %#v (ok=%v)", got, ok)
	}
	if _, ok := (Text{}).Decode(Props{}, nil); ok {
		t.Fatalf("missing input must be undefined")
	}
}

func TestPasswordMasksInput(t *testing.T) {
	out := render(t, Password{}, Props{ID: "f_pw", Name: "password", Value: "s3cret"})
	if !strings.Contains(out, `type="password"`) || !strings.Contains(out, `data-decoration="lock"`) {
		t.Fatalf("expected masked input with lock decoration: %s", out)
	}
	if strings.Contains(out, "reveal") || strings.Contains(out, `type="text"`) {
		t.Fatalf("password must not offer a reveal control: %s", out)
	}
}

func TestRedact(t *testing.T) {
	s := &schema.Schema{
		Type: schema.TypeObject,
		Properties: map[string]*schema.Schema{
			"user":     {Type: schema.TypeString},
			"password": {Type: schema.TypeString, Format: "password"},
			"token":    {Type: schema.TypeString},
			"tunnel": {
				Type:       schema.TypeObject,
				Properties: map[string]*schema.Schema{"key": {Type: schema.TypeString, Format: "password"}},
			},
		},
	}
	ui := schema.UISchema{"token": map[string]any{"ui:widget": "password"}}
	data := map[string]any{
		"user":     "root",
		"password": "hunter2",
		"token":    "abc",
		"tunnel":   map[string]any{"key": "pem"},
	}
	got := Redact(s, ui, data)
	want := map[string]any{
		"user":     "root",
		"password": Masked,
		"token":    Masked,
		"tunnel":   map[string]any{"key": Masked},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("redacted (-want +got):\n%s", diff)
	}
	if data["password"] != "hunter2" {
		t.Fatalf("redact must not mutate its input")
	}
}

func TestNumberDecode(t *testing.T) {
	integer := Props{Schema: &schema.Schema{Type: schema.TypeInteger}}
	number := Props{Schema: &schema.Schema{Type: schema.TypeNumber}}

	cases := []struct {
		name  string
		props Props
		raw   []string
		want  any
		ok    bool
	}{
		{"integer", integer, []string{"42"}, int64(42), true},
		{"number", number, []string{"42"}, float64(42), true},
		{"fraction", number, []string{"2.5"}, 2.5, true},
		{"empty", number, []string{""}, nil, false},
		{"blank", integer, []string{"   "}, nil, false},
		{"nan", number, []string{"NaN"}, nil, false},
		{"inf", number, []string{"Inf"}, nil, false},
		{"garbage", number, []string{"abc"}, nil, false},
		{"missing", number, nil, nil, false},
	}
	for _, tc := range cases {
		got, ok := Number{}.Decode(tc.props, tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: expected %#v (ok=%v), got %#v (ok=%v)", tc.name, tc.want, tc.ok, got, ok)
		}
	}
}

func TestNumberRendersBounds(t *testing.T) {
	min, max := 1.0, 65535.0
	out := render(t, Number{}, Props{Name: "port", Value: float64(5432), Schema: &schema.Schema{Type: schema.TypeInteger, Minimum: &min, Maximum: &max}})
	for _, want := range []string{`type="number"`, `step="1"`, `min="1"`, `max="65535"`, `value="5432"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestSelectRendersPlaceholderAndSelection(t *testing.T) {
	s := &schema.Schema{Type: schema.TypeString, Enum: []any{"us-east-1", "us-west-2"}, EnumNames: []string{"US East"}}
	out := render(t, Select{}, Props{Name: "region", Schema: s})
	if !strings.Contains(out, `<option value="" selected>Select region</option>`) {
		t.Fatalf("expected leading placeholder option: %s", out)
	}
	if !strings.Contains(out, `>US East</option>`) || !strings.Contains(out, `>us-west-2</option>`) {
		t.Fatalf("expected labelled options: %s", out)
	}

	out = render(t, Select{}, Props{Name: "region", Schema: s, Value: "us-west-2"})
	if strings.Contains(out, `value=""`) {
		t.Fatalf("placeholder option must be omitted once a value is chosen: %s", out)
	}
	if !strings.Contains(out, `value="us-west-2" selected`) {
		t.Fatalf("expected selected option: %s", out)
	}
}

func TestSelectDecodeTypedValue(t *testing.T) {
	s := &schema.Schema{Type: schema.TypeInteger, Enum: []any{float64(1), float64(2)}}
	got, ok := Select{}.Decode(Props{Schema: s}, []string{"2"})
	if !ok || got != float64(2) {
		t.Fatalf("expected typed option value, got %#v", got)
	}
	if _, ok := (Select{}).Decode(Props{Schema: s}, []string{""}); ok {
		t.Fatalf("placeholder option must decode as undefined")
	}
}

func TestRadioExclusiveAndInline(t *testing.T) {
	s := &schema.Schema{Type: schema.TypeString, Enum: []any{"full", "incremental"}}
	out := render(t, Radio{}, Props{ID: "f_mode", Name: "mode", Schema: s, Value: "incremental", UI: schema.UISchema{"ui:inline": true}})
	if strings.Count(out, `type="radio"`) != 2 {
		t.Fatalf("expected one input per option: %s", out)
	}
	if strings.Count(out, "checked") != 1 || !strings.Contains(out, `value="incremental" checked`) {
		t.Fatalf("expected exactly one checked option: %s", out)
	}
	if !strings.Contains(out, "flex flex-wrap") {
		t.Fatalf("expected inline layout: %s", out)
	}
	if !strings.Contains(out, `id="f_mode_1"`) {
		t.Fatalf("expected per option ids: %s", out)
	}
}

func TestCheckboxDecodeLastValueWins(t *testing.T) {
	if got, _ := (Checkbox{}).Decode(Props{}, []string{"false", "true"}); got != true {
		t.Fatalf("checked box must decode true")
	}
	if got, _ := (Checkbox{}).Decode(Props{}, []string{"false"}); got != false {
		t.Fatalf("unchecked box must decode false")
	}
}

func TestArrayAppendAndRemove(t *testing.T) {
	items := &schema.Schema{Type: schema.TypeString}
	list := []any{"a", "b", "b", "c"}

	added := AppendItem(list, items)
	if len(added) != len(list)+1 || added[len(added)-1] != "" {
		t.Fatalf("expected n+1 elements ending with empty value, got %#v", added)
	}
	if len(list) != 4 {
		t.Fatalf("append must not mutate the input")
	}

	for i := range list {
		got := RemoveAt(list, i)
		want := append(append([]any{}, list[:i]...), list[i+1:]...)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("remove %d (-want +got):\n%s", i, diff)
		}
	}
	if diff := cmp.Diff(list, RemoveAt(list, 9)); diff != "" {
		t.Fatalf("out of range removal must be a no-op (-want +got):\n%s", diff)
	}
}

func TestEmptyValueShapes(t *testing.T) {
	object := &schema.Schema{
		Type: schema.TypeObject,
		Properties: map[string]*schema.Schema{
			"name": {Type: schema.TypeString},
			"mode": {Type: schema.TypeString, Default: "full"},
		},
	}
	if diff := cmp.Diff(map[string]any{"mode": "full"}, EmptyValue(object)); diff != "" {
		t.Fatalf("object item (-want +got):\n%s", diff)
	}
	if got := EmptyValue(&schema.Schema{Type: schema.TypeBoolean}); got != false {
		t.Fatalf("expected false, got %#v", got)
	}
	if got := EmptyValue(&schema.Schema{Type: schema.TypeString, Default: "x"}); got != "x" {
		t.Fatalf("expected default, got %#v", got)
	}
}

func TestArrayRenderControls(t *testing.T) {
	p := Props{
		ID:     "f_streams",
		Name:   "streams",
		Value:  []any{"users", "orders"},
		Schema: &schema.Schema{Type: schema.TypeArray, Title: "Streams", Items: &schema.Schema{Type: schema.TypeString}},
		UI:     schema.UISchema{"ui:addButtonText": "Add stream"},
		RenderItem: func(w io.Writer, index int, item any) error {
			_, err := io.WriteString(w, "row-"+strconv.Itoa(index)+"="+item.(string)+"\n")
			return err
		},
	}
	out := render(t, Array{}, p)
	for _, want := range []string{
		`name="streams.__len" value="2"`,
		"row-0=users", "row-1=orders",
		`name="__remove" value="streams.1"`,
		`name="__add" value="streams">Add stream</button>`,
		`>Streams</p>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}

	no := false
	p.CanAdd = &no
	if out := render(t, Array{}, p); strings.Contains(out, `name="__add"`) {
		t.Fatalf("caller veto must hide add control: %s", out)
	}
	p.CanAdd = nil
	p.UI = schema.UISchema{"ui:options": map[string]any{"addable": false}, "ui:description": false}
	out = render(t, Array{}, p)
	if strings.Contains(out, `name="__add"`) {
		t.Fatalf("non-addable ui schema must hide add control: %s", out)
	}
	if strings.Contains(out, ">Streams</p>") {
		t.Fatalf("ui:description=false must hide the title: %s", out)
	}
}

func TestArrayDecodeSizesList(t *testing.T) {
	got, ok := Array{}.Decode(Props{}, []string{"3"})
	if !ok || len(got.([]any)) != 3 {
		t.Fatalf("expected three rows, got %#v", got)
	}
	if _, ok := (Array{}).Decode(Props{}, []string{"-1"}); ok {
		t.Fatalf("negative length must be rejected")
	}
	if _, ok := (Array{}).Decode(Props{}, []string{strconv.Itoa(MaxRows + 1)}); ok {
		t.Fatalf("row count above MaxRows must be rejected")
	}
	if got, ok := (Array{}).Decode(Props{}, []string{strconv.Itoa(MaxRows)}); !ok || len(got.([]any)) != MaxRows {
		t.Fatalf("row count at MaxRows must be accepted")
	}
}

func TestWidgetsTolerateMissingProps(t *testing.T) {
	for _, w := range []Widget{Text{}, TextArea{}, Password{}, Number{}, Select{}, Radio{}, Checkbox{}, Array{}} {
		var buf bytes.Buffer
		if err := w.Render(&buf, Props{}); err != nil {
			t.Fatalf("%s: render with empty props: %v", w.Kind(), err)
		}
	}
}
