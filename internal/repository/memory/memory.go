// Package memory keeps console entities in process memory. Every read and
// write copies values so callers never observe later mutations.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDs overrides id generation.
func WithIDs(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func resolve(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Store is an insertion ordered collection of T.
type Store[T domain.Entity[T]] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
	opts  options
}

var _ repository.Repository[domain.Source] = (*Store[domain.Source])(nil)

// New returns an empty store.
func New[T domain.Entity[T]](opts ...Option) *Store[T] {
	return &Store[T]{
		items: make(map[string]T),
		opts:  resolve(opts),
	}
}

func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return zero, fmt.Errorf("memory: get %s: %w", id, repository.ErrNotFound)
	}
	return item.Clone(), nil
}

func (s *Store[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := item.Key()
	if id == "" {
		id = s.opts.newID()
	}
	if _, exists := s.items[id]; exists {
		return zero, fmt.Errorf("memory: create %s: %w", id, repository.ErrConflict)
	}
	now := s.opts.now()
	stored := item.Clone().Stamped(id, now, now)
	s.items[id] = stored
	s.order = append(s.order, id)
	return stored.Clone(), nil
}

func (s *Store[T]) Update(ctx context.Context, item T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := item.Key()
	current, ok := s.items[id]
	if !ok {
		return zero, fmt.Errorf("memory: update %s: %w", id, repository.ErrNotFound)
	}
	stored := item.Clone().Stamped(id, current.Created(), s.opts.now())
	s.items[id] = stored
	return stored.Clone(), nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("memory: delete %s: %w", id, repository.ErrNotFound)
	}
	delete(s.items, id)
	for idx, key := range s.order {
		if key == id {
			s.order = append(s.order[:idx:idx], s.order[idx+1:]...)
			break
		}
	}
	return nil
}

// JobLog records run history and logs locally.
type JobLog struct {
	mu      sync.RWMutex
	history map[string][]domain.JobHistory
	logs    map[string][]domain.LogEntry
}

// NewJobLog returns an empty run log.
func NewJobLog() *JobLog {
	return &JobLog{
		history: make(map[string][]domain.JobHistory),
		logs:    make(map[string][]domain.LogEntry),
	}
}

// Record stores a run and its log lines.
func (l *JobLog) Record(run domain.JobHistory, entries ...domain.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[run.JobID] = append(l.history[run.JobID], run)
	l.logs[logKey(run.JobID, run.ID)] = append(l.logs[logKey(run.JobID, run.ID)], entries...)
}

// History returns the runs of jobID, newest first.
func (l *JobLog) History(ctx context.Context, jobID string) ([]domain.JobHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := append([]domain.JobHistory(nil), l.history[jobID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Logs returns the log lines of one run.
func (l *JobLog) Logs(ctx context.Context, jobID, historyID string) ([]domain.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	found := false
	for _, run := range l.history[jobID] {
		if run.ID == historyID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("memory: logs %s/%s: %w", jobID, historyID, repository.ErrNotFound)
	}
	return append([]domain.LogEntry(nil), l.logs[logKey(jobID, historyID)]...), nil
}

func logKey(jobID, historyID string) string {
	return jobID + "/" + historyID
}

// Releases serves a fixed release list.
type Releases struct {
	items []domain.Release
}

// NewReleases returns a release list sorted newest first.
func NewReleases(items ...domain.Release) *Releases {
	out := append([]domain.Release(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return &Releases{items: out}
}

func (r *Releases) Releases(ctx context.Context) ([]domain.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.Release(nil), r.items...), nil
}

// NewBackend assembles an in-memory backend.
func NewBackend(opts ...Option) repository.Backend {
	return repository.Backend{
		Name:         "memory",
		Sources:      New[domain.Source](opts...),
		Destinations: New[domain.Destination](opts...),
		Jobs:         New[domain.Job](opts...),
		JobLog:       NewJobLog(),
		Releases:     NewReleases(),
	}
}
