package sanitize

import (
	"strings"
	"testing"
)

func TestDescriptionStripsScripts(t *testing.T) {
	got := Description(`Use <strong>read-only</strong> credentials.<script>alert(1)</script>`)
	if strings.Contains(got, "<script") || strings.Contains(got, "alert") {
		t.Fatalf("expected script to be removed, got %q", got)
	}
	if !strings.Contains(got, "<strong>read-only</strong>") {
		t.Fatalf("expected emphasis to be kept, got %q", got)
	}
}

func TestDescriptionLinksGetNoFollow(t *testing.T) {
	got := Description(`See <a href="https://example.com/docs" onclick="x()">docs</a>`)
	if strings.Contains(got, "onclick") {
		t.Fatalf("expected event handler to be removed, got %q", got)
	}
	if !strings.Contains(got, `rel="nofollow`) {
		t.Fatalf("expected nofollow on links, got %q", got)
	}
}

func TestIconKeepsSVGOnly(t *testing.T) {
	got := Icon(`<svg viewBox="0 0 24 24" onload="x()"><path d="M0 0h24"/><script>x()</script></svg>`)
	if strings.Contains(got, "onload") || strings.Contains(got, "script") {
		t.Fatalf("unexpected markup survived: %q", got)
	}
	if !strings.Contains(got, `<path d="M0 0h24"`) {
		t.Fatalf("expected path to be kept, got %q", got)
	}
	if Icon("   ") != "" {
		t.Fatalf("blank icon must stay blank")
	}
}

func TestText(t *testing.T) {
	if got := Text("<b>Postgres</b> source"); got != "Postgres source" {
		t.Fatalf("unexpected text %q", got)
	}
}
