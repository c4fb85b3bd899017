// Package service holds the console's operations on sources, destinations,
// jobs and releases. Every write is validated here before it reaches a
// repository.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-syncconsole/internal/catalog"
	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/probe"
	"github.com/goliatone/go-syncconsole/internal/repository"
)

var (
	// ErrInvalidConfig wraps every ValidationError.
	ErrInvalidConfig = errors.New("service: invalid configuration")
	// ErrInUse is returned when deleting a connection that jobs still use.
	ErrInUse = errors.New("service: connection is used by jobs")
)

// ValidationError lists the problems found with a submitted record.
type ValidationError struct {
	// Fields maps dotted configuration paths to messages.
	Fields map[string][]string
	// Record holds problems with the record itself, keyed by form path
	// ("name", "type", "schedule", "streams.0.name").
	Record map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(e.Messages(), "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// Messages returns every problem as a sentence, record problems first.
func (e *ValidationError) Messages() []string {
	var out []string
	keys := make([]string, 0, len(e.Record))
	for key := range e.Record {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out = append(out, e.Record[key])
	}
	paths := make([]string, 0, len(e.Fields))
	for path := range e.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		out = append(out, e.Fields[path]...)
	}
	return out
}

// FormErrors merges record and field problems into the dotted path map the
// form renderer shows inline.
func (e *ValidationError) FormErrors() map[string][]string {
	out := make(map[string][]string, len(e.Fields)+len(e.Record))
	for path, messages := range e.Fields {
		out[path] = append([]string(nil), messages...)
	}
	for key, message := range e.Record {
		out[key] = append(out[key], message)
	}
	return out
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0 && len(e.Record) == 0
}

func (e *ValidationError) record(key, message string) {
	if e.Record == nil {
		e.Record = map[string]string{}
	}
	e.Record[key] = message
}

// Catalogs yields the current connector catalog. *catalog.Holder satisfies
// it.
type Catalogs interface {
	Catalog() *catalog.Catalog
}

type staticCatalog struct{ c *catalog.Catalog }

func (s staticCatalog) Catalog() *catalog.Catalog { return s.c }

// Static adapts a fixed catalog.
func Static(c *catalog.Catalog) Catalogs { return staticCatalog{c: c} }

// Option configures the services.
type Option func(*options)

type options struct {
	logger *slog.Logger
	prober *probe.Prober
	now    func() time.Time
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProber sets the prober used when the backend cannot test connections.
func WithProber(p *probe.Prober) Option {
	return func(o *options) {
		if p != nil {
			o.prober = p
		}
	}
}

// WithClock overrides the clock used for next-run previews.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Services bundles the console operations over one backend.
type Services struct {
	Backend      string
	Sources      *Connections[domain.Source]
	Destinations *Connections[domain.Destination]
	Jobs         *Jobs
	Releases     *Releases
	Catalogs     Catalogs
}

// New wires the services to backend.
func New(backend repository.Backend, catalogs Catalogs, opts ...Option) *Services {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.prober == nil {
		o.prober = probe.New(probe.WithLogger(o.logger))
	}

	jobs := newJobs(backend, o)
	sources := newConnections[domain.Source](domain.KindSource, backend.Sources, backend.Tester, catalogs, o)
	sources.inUse = jobs.ForSource
	destinations := newConnections[domain.Destination](domain.KindDestination, backend.Destinations, backend.Tester, catalogs, o)
	destinations.inUse = jobs.ForDestination

	return &Services{
		Backend:      backend.Name,
		Sources:      sources,
		Destinations: destinations,
		Jobs:         jobs,
		Releases:     &Releases{repo: backend.Releases},
		Catalogs:     catalogs,
	}
}
