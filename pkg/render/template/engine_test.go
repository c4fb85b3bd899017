package template_test

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-syncconsole/pkg/render/template"
	"github.com/goliatone/go-syncconsole/pkg/testsupport"
)

//go:embed testdata/templates/*.html
var embeddedTemplates embed.FS

func newEngine(t *testing.T, opts ...template.Option) *template.Engine {
	t.Helper()
	sub, err := fs.Sub(embeddedTemplates, "testdata/templates")
	if err != nil {
		t.Fatalf("sub fs: %v", err)
	}
	engine, err := template.New(append([]template.Option{template.WithFS(sub)}, opts...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestEngine_RenderTemplate(t *testing.T) {
	engine := newEngine(t)

	result, written := testsupport.CaptureTemplateOutput(t, func(w io.Writer) (string, error) {
		return engine.RenderTemplate("hello", map[string]any{"name": "Ada"}, w)
	})

	want := testsupport.MustReadGoldenString(t, filepath.Join("testdata", "hello.golden"))
	if result != want {
		t.Fatalf("render template mismatch result\nwant: %q\n got: %q", want, result)
	}
	if written != want {
		t.Fatalf("render template mismatch writer\nwant: %q\n got: %q", want, written)
	}
}

func TestEngine_GlobalContext(t *testing.T) {
	engine := newEngine(t, template.WithGlobalData(map[string]any{
		"settings": map[string]any{"env": "dev"},
	}))
	if err := engine.GlobalContext(map[string]any{
		"settings": map[string]any{"env": "staging"},
	}); err != nil {
		t.Fatalf("global context: %v", err)
	}

	result, _ := testsupport.CaptureTemplateOutput(t, func(w io.Writer) (string, error) {
		return engine.RenderTemplate("use-global", nil, w)
	})

	want := testsupport.MustReadGoldenString(t, filepath.Join("testdata", "use-global.golden"))
	if result != want {
		t.Fatalf("render template mismatch\nwant: %q\n got: %q", want, result)
	}
}

func TestEngine_RegisterFilter(t *testing.T) {
	engine := newEngine(t)
	err := engine.RegisterFilter("shout", func(input any, _ any) (any, error) {
		if input == nil {
			return "", nil
		}
		return fmt.Sprintf("%s!", strings.ToUpper(fmt.Sprint(input))), nil
	})
	if err != nil {
		t.Fatalf("register filter: %v", err)
	}
	if err := engine.RegisterFilter("shout", func(any, any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate filter registration to fail")
	}

	result, _ := testsupport.CaptureTemplateOutput(t, func(w io.Writer) (string, error) {
		return engine.RenderTemplate("use-filter", map[string]any{"name": "Ada", "key": "api_key"}, w)
	})

	want := testsupport.MustReadGoldenString(t, filepath.Join("testdata", "use-filter.golden"))
	if result != want {
		t.Fatalf("render template mismatch\nwant: %q\n got: %q", want, result)
	}
}

func TestEngine_RenderStringEscapesByDefault(t *testing.T) {
	engine, err := template.New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	tpl := `<section>{{ title }}|{{ body|safe }}</section>`
	data := map[string]any{"title": "<b>x</b>", "body": "<p>ok</p>"}
	for i := 0; i < 2; i++ {
		got, err := engine.Render(tpl, data)
		if err != nil {
			t.Fatalf("render string: %v", err)
		}
		want := `<section>&lt;b&gt;x&lt;/b&gt;|<p>ok</p></section>`
		if got != want {
			t.Fatalf("want %q, got %q", want, got)
		}
	}
}

func TestEngine_StructDataUsesJSONNames(t *testing.T) {
	engine, err := template.New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	type view struct {
		SourceID string `json:"source_id"`
	}
	got, err := engine.RenderString(`{{ source_id }}`, view{SourceID: "src-1"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "src-1" {
		t.Fatalf("expected json field name in context, got %q", got)
	}
}

func TestEngine_MissingTemplate(t *testing.T) {
	engine := newEngine(t)
	if _, err := engine.RenderTemplate("missing", nil); err == nil {
		t.Fatalf("expected error for missing template")
	}
}
