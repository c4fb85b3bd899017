// Package sanitize cleans markup that arrives with connector schemas before it
// reaches rendered pages. Descriptions may carry a small set of inline tags;
// icons may carry inline SVG.
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	descriptionOnce   sync.Once
	descriptionPolicy *bluemonday.Policy

	iconOnce   sync.Once
	iconPolicy *bluemonday.Policy

	textPolicy = bluemonday.StrictPolicy()
)

// Description keeps links and basic emphasis; everything else is stripped.
func Description(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(descriptionSanitizer().Sanitize(trimmed))
}

// Icon keeps inline SVG drawing primitives only.
func Icon(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(iconSanitizer().Sanitize(trimmed))
}

// Text strips all markup.
func Text(raw string) string {
	return strings.TrimSpace(textPolicy.Sanitize(raw))
}

func descriptionSanitizer() *bluemonday.Policy {
	descriptionOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("b", "strong", "i", "em", "code", "br", "p", "ul", "ol", "li")
		policy.AllowAttrs("href").OnElements("a")
		policy.AllowStandardURLs()
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
		descriptionPolicy = policy
	})
	return descriptionPolicy
}

func iconSanitizer() *bluemonday.Policy {
	iconOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements(
			"svg", "g", "path", "circle", "rect", "line", "polyline", "polygon",
			"ellipse", "title", "desc", "defs", "use", "clipPath",
		)
		policy.AllowAttrs(
			"xmlns", "viewBox", "width", "height", "fill", "stroke",
			"stroke-width", "stroke-linecap", "stroke-linejoin", "aria-hidden",
			"role", "focusable", "class",
		).OnElements("svg")
		policy.AllowAttrs("href", "xlink:href", "clip-path").OnElements("use")
		for _, el := range []string{"path", "circle", "rect", "line", "polyline", "polygon", "ellipse"} {
			policy.AllowAttrs(
				"d", "cx", "cy", "r", "x", "y", "x1", "y1", "x2", "y2",
				"points", "rx", "ry", "fill", "stroke", "stroke-width",
				"stroke-linecap", "stroke-linejoin", "class",
			).OnElements(el)
		}
		policy.AllowAttrs("id", "clipPathUnits").OnElements("clipPath")
		policy.AllowAttrs("id").OnElements("defs", "g")
		iconPolicy = policy
	})
	return iconPolicy
}
