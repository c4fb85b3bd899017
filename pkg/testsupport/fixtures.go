// Package testsupport holds fixture helpers shared by package tests.
package testsupport

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// MustLoadSchema reads a JSON or YAML schema fixture and checks it.
func MustLoadSchema(t *testing.T, path string) *schema.Schema {
	t.Helper()

	s, err := schema.Parse(MustReadFile(t, path))
	if err != nil {
		t.Fatalf("load schema %s: %v", path, err)
	}
	if err := s.Check(); err != nil {
		t.Fatalf("schema fixture %s: %v", path, err)
	}
	return s
}

// MustLoadUISchema reads a JSON or YAML UI schema fixture.
func MustLoadUISchema(t *testing.T, path string) schema.UISchema {
	t.Helper()

	ui, err := schema.ParseUI(MustReadFile(t, path))
	if err != nil {
		t.Fatalf("load ui schema %s: %v", path, err)
	}
	return ui
}

// MustReadFile returns the contents of a fixture file.
func MustReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return data
}

// MustReadGoldenString returns a golden file as a string.
func MustReadGoldenString(t *testing.T, path string) string {
	t.Helper()
	return string(MustReadFile(t, path))
}

// CaptureTemplateOutput runs render against a buffer and returns both the
// returned string and what was written.
func CaptureTemplateOutput(t *testing.T, render func(io.Writer) (string, error)) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	out, err := render(&buf)
	if err != nil {
		t.Fatalf("render template: %v", err)
	}
	return out, buf.String()
}
