// Package repository defines persistence for console entities. Backends live
// in subpackages: memory (process local), sqlite (local file) and rest (the
// replication backend's API).
package repository

import (
	"context"
	"errors"

	"github.com/goliatone/go-syncconsole/internal/domain"
)

var (
	// ErrNotFound is returned when an id does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when a create reuses an existing id.
	ErrConflict = errors.New("repository: conflict")
	// ErrUnsupported is returned when a backend cannot serve an operation.
	ErrUnsupported = errors.New("repository: unsupported")
)

// Repository is CRUD over one entity type. Implementations never share maps
// or slices with callers.
type Repository[T domain.Entity[T]] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

// JobLog reads run history and run logs.
type JobLog interface {
	History(ctx context.Context, jobID string) ([]domain.JobHistory, error)
	Logs(ctx context.Context, jobID, historyID string) ([]domain.LogEntry, error)
}

// Releases lists published platform versions.
type Releases interface {
	Releases(ctx context.Context) ([]domain.Release, error)
}

// ConnectionTester asks the replication backend to test a stored connection.
// Local backends do not implement it; the service probes directly instead.
type ConnectionTester interface {
	TestConnection(ctx context.Context, kind domain.ConnectorKind, id string) (domain.TestResult, error)
}

// Backend bundles the repositories one configuration selects.
type Backend struct {
	Name         string
	Sources      Repository[domain.Source]
	Destinations Repository[domain.Destination]
	Jobs         Repository[domain.Job]
	JobLog       JobLog
	Releases     Releases
	// Tester is nil for local backends.
	Tester ConnectionTester
	Close  func() error
}

// Shutdown releases backend resources.
func (b Backend) Shutdown() error {
	if b.Close == nil {
		return nil
	}
	return b.Close()
}
