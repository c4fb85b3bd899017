// Package template wraps pongo2 for the console pages and for form group
// templates.
package template

import "io"

// Renderer is what the form renderer needs: a named template or a
// ui:groupTemplate string rendered against view data.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	RenderString(content string, data any, out ...io.Writer) (string, error)
}
