package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-syncconsole/internal/catalog"
	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/probe"
	"github.com/goliatone/go-syncconsole/internal/repository"
	"github.com/goliatone/go-syncconsole/internal/store"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/validation"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

// ConnectionEntity is a source or a destination.
type ConnectionEntity[T any] interface {
	domain.Entity[T]
	Details() domain.Connection
	WithDetails(domain.Connection) T
}

// Connections manages the sources or the destinations.
type Connections[T ConnectionEntity[T]] struct {
	kind     domain.ConnectorKind
	repo     repository.Repository[T]
	store    *store.Collection[T]
	tester   repository.ConnectionTester
	prober   *probe.Prober
	catalogs Catalogs
	logger   *slog.Logger
	inUse    func(ctx context.Context, id string) ([]domain.Job, error)
}

func newConnections[T ConnectionEntity[T]](kind domain.ConnectorKind, repo repository.Repository[T], tester repository.ConnectionTester, catalogs Catalogs, o options) *Connections[T] {
	return &Connections[T]{
		kind:     kind,
		repo:     repo,
		store:    store.New(repo),
		tester:   tester,
		prober:   o.prober,
		catalogs: catalogs,
		logger:   o.logger.With(slog.String("kind", string(kind))),
	}
}

// Kind reports whether c manages sources or destinations.
func (c *Connections[T]) Kind() domain.ConnectorKind { return c.kind }

// Connectors lists the catalog entries of this kind.
func (c *Connections[T]) Connectors() []catalog.Connector {
	return c.catalogs.Catalog().List(c.kind)
}

// Connector looks up the catalog entry for typ.
func (c *Connections[T]) Connector(typ string) (catalog.Connector, error) {
	return c.catalogs.Catalog().Lookup(c.kind, typ)
}

// List refreshes and returns the stored records.
func (c *Connections[T]) List(ctx context.Context) ([]T, error) {
	return c.store.Refresh(ctx)
}

// Get returns one record.
func (c *Connections[T]) Get(ctx context.Context, id string) (T, error) {
	return c.repo.Get(ctx, id)
}

// Validate checks details against the connector schema and returns the
// configuration that would be stored: defaults applied for absent keys.
func (c *Connections[T]) Validate(details domain.Connection) (catalog.Connector, map[string]any, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(details.Name) == "" {
		verr.record("name", "Name is required")
	}
	conn, err := c.Connector(details.Type)
	if err != nil {
		verr.record("type", fmt.Sprintf("Unknown %s type %q", c.kind, details.Type))
		return catalog.Connector{}, nil, verr
	}
	config := mergeDefaults(conn.Defaults(), details.Config)
	if errs := validation.Live(config, conn.Schema); len(errs) > 0 {
		verr.Fields = errs
	}
	if !verr.empty() {
		return conn, config, verr
	}
	return conn, config, nil
}

// Create validates item and stores it.
func (c *Connections[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	details := item.Details()
	details.Name = strings.TrimSpace(details.Name)
	conn, config, err := c.Validate(details)
	if err != nil {
		return zero, err
	}
	details.Type = conn.Type
	details.Config = config
	if details.Version == "" {
		details.Version = conn.Version
	}
	stored, err := c.store.Create(ctx, item.WithDetails(details))
	if err != nil {
		return zero, fmt.Errorf("service: create %s: %w", c.kind, err)
	}
	c.logger.InfoContext(ctx, "connection created",
		slog.String("id", stored.Key()),
		slog.String("type", details.Type),
		slog.Any("config", widgets.Redact(conn.Schema, conn.UI, details.Config)),
	)
	return stored, nil
}

// Update validates item and replaces the stored record. The connector type
// cannot change. Secrets submitted as the mask keep their stored value.
func (c *Connections[T]) Update(ctx context.Context, item T) (T, error) {
	var zero T
	current, err := c.repo.Get(ctx, item.Key())
	if err != nil {
		return zero, fmt.Errorf("service: update %s: %w", c.kind, err)
	}
	prev := current.Details()
	details := item.Details()
	details.Name = strings.TrimSpace(details.Name)
	if details.Type == "" {
		details.Type = prev.Type
	}
	if !strings.EqualFold(details.Type, prev.Type) {
		verr := &ValidationError{}
		verr.record("type", "The connector type cannot be changed")
		return zero, verr
	}
	if conn, lookupErr := c.Connector(details.Type); lookupErr == nil {
		details.Config = keepSecrets(conn.Schema, conn.UI, details.Config, prev.Config)
	}
	conn, config, err := c.Validate(details)
	if err != nil {
		return zero, err
	}
	details.Config = config
	if details.Version == "" {
		details.Version = prev.Version
	}
	stored, err := c.store.Update(ctx, item.WithDetails(details))
	if err != nil {
		return zero, fmt.Errorf("service: update %s: %w", c.kind, err)
	}
	c.logger.InfoContext(ctx, "connection updated",
		slog.String("id", stored.Key()),
		slog.String("type", details.Type),
		slog.Any("config", widgets.Redact(conn.Schema, conn.UI, details.Config)),
	)
	return stored, nil
}

// Delete removes a record no job refers to.
func (c *Connections[T]) Delete(ctx context.Context, id string) error {
	if c.inUse != nil {
		jobs, err := c.inUse(ctx, id)
		if err != nil {
			return fmt.Errorf("service: delete %s: %w", c.kind, err)
		}
		if len(jobs) > 0 {
			names := make([]string, 0, len(jobs))
			for _, job := range jobs {
				names = append(names, job.Name)
			}
			return fmt.Errorf("%w: %s", ErrInUse, strings.Join(names, ", "))
		}
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("service: delete %s: %w", c.kind, err)
	}
	c.logger.InfoContext(ctx, "connection deleted", slog.String("id", id))
	return nil
}

// Test checks connectivity of a stored record, through the backend when it
// can test connections and through a local probe otherwise.
func (c *Connections[T]) Test(ctx context.Context, id string) (domain.TestResult, error) {
	var (
		result domain.TestResult
		err    error
	)
	if c.tester != nil {
		result, err = c.tester.TestConnection(ctx, c.kind, id)
	} else {
		var item T
		item, err = c.repo.Get(ctx, id)
		if err == nil {
			details := item.Details()
			result, err = c.prober.Test(ctx, details.Type, details.Config)
		}
	}
	if err != nil {
		if errors.Is(err, probe.ErrUnsupported) {
			return domain.TestResult{}, fmt.Errorf("service: test %s: %w", c.kind, err)
		}
		return domain.TestResult{}, fmt.Errorf("service: test %s %s: %w", c.kind, id, err)
	}
	c.logger.InfoContext(ctx, "connection tested",
		slog.String("id", id),
		slog.Bool("success", result.Success),
		slog.String("message", result.Message),
	)
	return result, nil
}

// mergeDefaults fills keys absent from data with defaults, recursing into
// nested objects. data is not modified.
func mergeDefaults(defaults, data map[string]any) map[string]any {
	out := schema.CloneData(data)
	for key, def := range defaults {
		current, present := out[key]
		if !present {
			out[key] = schema.CloneValue(def)
			continue
		}
		nestedDef, okDef := def.(map[string]any)
		nestedCur, okCur := current.(map[string]any)
		if okDef && okCur {
			out[key] = mergeDefaults(nestedDef, nestedCur)
		}
	}
	return out
}

// keepSecrets replaces password values equal to the mask with the stored
// value at the same path.
func keepSecrets(s *schema.Schema, ui schema.UISchema, next, prev map[string]any) map[string]any {
	out := schema.CloneData(next)
	if s == nil || prev == nil {
		return out
	}
	for _, key := range s.OrderedKeys() {
		prop := s.Properties[key]
		fieldUI := ui.Field(key)
		switch prop.Kind(fieldUI) {
		case schema.KindPassword:
			if out[key] == widgets.Masked {
				if stored, ok := prev[key]; ok {
					out[key] = stored
				} else {
					delete(out, key)
				}
			}
		case schema.KindObject:
			nested, ok := out[key].(map[string]any)
			stored, okPrev := prev[key].(map[string]any)
			if ok && okPrev {
				out[key] = keepSecrets(prop, fieldUI, nested, stored)
			}
		case schema.KindArray:
			list, ok := out[key].([]any)
			stored, okPrev := prev[key].([]any)
			if ok && okPrev && prop.Items != nil {
				keepItemSecrets(prop.Items, fieldUI.Items(), list, stored)
			}
		}
	}
	return out
}

// keepItemSecrets restores masked list items from the stored row at the same
// index.
func keepItemSecrets(items *schema.Schema, ui schema.UISchema, list, stored []any) {
	for idx := range list {
		if idx >= len(stored) {
			return
		}
		switch items.Kind(ui) {
		case schema.KindPassword:
			if list[idx] == widgets.Masked {
				list[idx] = stored[idx]
			}
		case schema.KindObject:
			nested, ok := list[idx].(map[string]any)
			prevRow, okPrev := stored[idx].(map[string]any)
			if ok && okPrev {
				list[idx] = keepSecrets(items, ui, nested, prevRow)
			}
		}
	}
}
