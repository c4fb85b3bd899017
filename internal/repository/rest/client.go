// Package rest proxies console entities to the replication backend's HTTP
// API. Responses may be the raw resource or a {success, message, data}
// envelope.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
)

const maxErrorBody = 4 << 10

// StatusError is returned for non-2xx responses that do not map to a
// repository sentinel.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rest: %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("rest: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the replication backend.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("rest: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("rest: unsupported scheme %q", base.Scheme)
	}
	c := &Client{
		base:    base,
		http:    http.DefaultClient,
		timeout: 10 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// NewBackend assembles a backend that proxies every entity to c.
func NewBackend(c *Client) repository.Backend {
	return repository.Backend{
		Name:         "rest",
		Sources:      NewResource[domain.Source](c, "/sources"),
		Destinations: NewResource[domain.Destination](c, "/destinations"),
		Jobs:         NewResource[domain.Job](c, "/jobs"),
		JobLog:       c,
		Releases:     c,
		Tester:       c,
	}
}

// do sends one request and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("rest: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	target := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("rest: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rest: read %s %s: %w", method, path, err)
	}
	c.logger.Debug("backend request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("rest: %s %s: %w", method, path, repository.ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("rest: %s %s: %w", method, path, repository.ErrConflict)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	return raw, nil
}

func call[T any](ctx context.Context, c *Client, method, path string, in any) (T, error) {
	var zero T
	raw, err := c.do(ctx, method, path, in)
	if err != nil {
		return zero, err
	}
	out, err := domain.Decode[T](raw)
	if err != nil {
		return zero, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	return out, nil
}

func errorMessage(raw []byte) string {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, candidate := range []string{payload.Message, payload.Detail, payload.Error} {
			if candidate != "" {
				return candidate
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

func join(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return strings.Join(escaped, "/")
}

// History lists the runs of jobID.
func (c *Client) History(ctx context.Context, jobID string) ([]domain.JobHistory, error) {
	out, err := call[[]domain.JobHistory](ctx, c, http.MethodGet, "/jobs/"+join(jobID, "history"), nil)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.JobHistory{}
	}
	return out, nil
}

// Logs lists the log lines of one run.
func (c *Client) Logs(ctx context.Context, jobID, historyID string) ([]domain.LogEntry, error) {
	out, err := call[[]domain.LogEntry](ctx, c, http.MethodGet, "/jobs/"+join(jobID, "history", historyID, "logs"), nil)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.LogEntry{}
	}
	return out, nil
}

// Releases lists platform releases.
func (c *Client) Releases(ctx context.Context) ([]domain.Release, error) {
	out, err := call[[]domain.Release](ctx, c, http.MethodGet, "/releases", nil)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Release{}
	}
	return out, nil
}

// TestConnection asks the backend to test a stored source or destination.
// The reply may be {success, message} directly or wrapped in data.
func (c *Client) TestConnection(ctx context.Context, kind domain.ConnectorKind, id string) (domain.TestResult, error) {
	path := "/" + string(kind) + "s/" + join(id, "test")
	raw, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return domain.TestResult{}, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.TestResult{Success: true}, nil
	}
	var reply struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return domain.TestResult{}, fmt.Errorf("rest: decode test result: %w", err)
	}
	if len(reply.Data) > 0 && string(reply.Data) != "null" {
		var inner domain.TestResult
		if err := json.Unmarshal(reply.Data, &inner); err == nil {
			if inner.Message == "" {
				inner.Message = reply.Message
			}
			return inner, nil
		}
	}
	return domain.TestResult{Success: reply.Success, Message: reply.Message}, nil
}

// Resource is CRUD over one backend collection.
type Resource[T domain.Entity[T]] struct {
	c    *Client
	path string
}

var _ repository.Repository[domain.Source] = (*Resource[domain.Source])(nil)

// NewResource binds T to the collection at path.
func NewResource[T domain.Entity[T]](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: "/" + strings.Trim(path, "/")}
}

func (r *Resource[T]) item(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	out, err := call[[]T](ctx, r.c, http.MethodGet, r.path, nil)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	return call[T](ctx, r.c, http.MethodGet, r.item(id), nil)
}

func (r *Resource[T]) Create(ctx context.Context, item T) (T, error) {
	return r.write(ctx, http.MethodPost, r.path, item)
}

func (r *Resource[T]) Update(ctx context.Context, item T) (T, error) {
	if item.Key() == "" {
		var zero T
		return zero, fmt.Errorf("rest: update %s: missing id: %w", r.path, repository.ErrNotFound)
	}
	return r.write(ctx, http.MethodPut, r.item(item.Key()), item)
}

// write sends item and decodes the stored version. Backends that reply
// with an empty body are taken to have stored item unchanged.
func (r *Resource[T]) write(ctx context.Context, method, path string, item T) (T, error) {
	var zero T
	raw, err := r.c.do(ctx, method, path, item)
	if err != nil {
		return zero, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return item.Clone(), nil
	}
	out, err := domain.Decode[T](raw)
	if err != nil {
		return zero, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	return out, nil
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.c.do(ctx, http.MethodDelete, r.item(id), nil)
	return err
}
