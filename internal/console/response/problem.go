// Package response writes machine readable error replies for the console's
// JSON endpoints.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Problem is an RFC 7807 problem document with optional extensions.
type Problem struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string
	Ext      map[string]any
}

// Option configures a Problem.
type Option func(*Problem)

// WithType sets the problem type URI.
func WithType(t string) Option {
	return func(p *Problem) {
		p.Type = t
	}
}

// WithDetail sets the human readable detail.
func WithDetail(detail string) Option {
	return func(p *Problem) {
		p.Detail = detail
	}
}

// WithInstance sets the URI of the failing request.
func WithInstance(instance string) Option {
	return func(p *Problem) {
		p.Instance = instance
	}
}

// WithExtension attaches an extension member.
func WithExtension(key string, value any) Option {
	return func(p *Problem) {
		if p.Ext == nil {
			p.Ext = map[string]any{}
		}
		p.Ext[key] = value
	}
}

// New builds a Problem.
func New(status int, title string, opts ...Option) Problem {
	p := Problem{Status: status, Title: title}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Body returns the JSON members of p. Extensions may not shadow the
// standard members.
func (p Problem) Body() (map[string]any, error) {
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	body := map[string]any{
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Type != "" {
		body["type"] = p.Type
	}
	if p.Detail != "" {
		body["detail"] = p.Detail
	}
	if p.Instance != "" {
		body["instance"] = p.Instance
	}
	for k, v := range p.Ext {
		if _, exists := body[k]; exists {
			return nil, fmt.Errorf("response: problem extension %q collides with a standard member", k)
		}
		body[k] = v
	}
	return body, nil
}

// Write serialises p with the problem+json content type.
func Write(w http.ResponseWriter, p Problem) {
	body, err := p.Body()
	if err != nil {
		body = map[string]any{"title": http.StatusText(http.StatusInternalServerError), "status": http.StatusInternalServerError}
		p.Status = http.StatusInternalServerError
	}
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(body)
}

// JSON writes v as a JSON document with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
