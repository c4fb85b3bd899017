// Package domain holds the entities the console manages. Configuration
// payloads stay schema-free maps; their shape comes from the connector
// catalog at runtime.
package domain

import (
	"strings"
	"time"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// ConnectorKind tells sources and destinations apart in the catalog.
type ConnectorKind string

const (
	KindSource      ConnectorKind = "source"
	KindDestination ConnectorKind = "destination"
)

// ParseConnectorKind accepts singular and plural spellings.
func ParseConnectorKind(raw string) (ConnectorKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "source", "sources":
		return KindSource, true
	case "destination", "destinations":
		return KindDestination, true
	}
	return "", false
}

// Entity is implemented by every stored record. Stamped returns a copy with
// the id and timestamps set; Clone returns a deep copy. Repositories use both
// so they never share maps with callers.
type Entity[T any] interface {
	Key() string
	Created() time.Time
	Stamped(id string, created, updated time.Time) T
	Clone() T
}

// Connection is the shared shape of sources and destinations.
type Connection struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Type      string         `json:"type" yaml:"type"`
	Version   string         `json:"version,omitempty" yaml:"version,omitempty"`
	Config    map[string]any `json:"config" yaml:"config"`
	CreatedAt time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

// Details returns the shared connection fields of a source or destination.
func (c Connection) Details() Connection { return c }

func (c Connection) clone() Connection {
	if c.Config != nil {
		c.Config = schema.CloneData(c.Config)
	}
	return c
}

func (c Connection) stamped(id string, created, updated time.Time) Connection {
	c.ID = id
	c.CreatedAt = created
	c.UpdatedAt = updated
	return c
}

// Source is a configured data origin.
type Source struct {
	Connection
}

func (s Source) Key() string        { return s.ID }
func (s Source) Created() time.Time { return s.CreatedAt }

func (s Source) Clone() Source { return Source{s.Connection.clone()} }

// WithDetails returns a source carrying c.
func (Source) WithDetails(c Connection) Source { return Source{c} }

func (s Source) Stamped(id string, created, updated time.Time) Source {
	s.Connection = s.Connection.stamped(id, created, updated)
	return s
}

// Destination is a configured data sink.
type Destination struct {
	Connection
}

func (d Destination) Key() string        { return d.ID }
func (d Destination) Created() time.Time { return d.CreatedAt }

func (d Destination) Clone() Destination { return Destination{d.Connection.clone()} }

// WithDetails returns a destination carrying c.
func (Destination) WithDetails(c Connection) Destination { return Destination{c} }

func (d Destination) Stamped(id string, created, updated time.Time) Destination {
	d.Connection = d.Connection.stamped(id, created, updated)
	return d
}

// Sync modes a stream may use.
const (
	SyncFullRefresh = "full_refresh"
	SyncIncremental = "incremental"
)

// Stream is one selectable collection or table of a source.
type Stream struct {
	Name        string `json:"name" yaml:"name"`
	Namespace   string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	SyncMode    string `json:"syncMode,omitempty" yaml:"syncMode,omitempty"`
	CursorField string `json:"cursorField,omitempty" yaml:"cursorField,omitempty"`
	Selected    bool   `json:"selected" yaml:"selected"`
}

// Job links a source to a destination with a stream selection and a cron
// schedule evaluated in Timezone. Empty Schedule means manual runs only.
type Job struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	SourceID      string         `json:"sourceId" yaml:"sourceId"`
	DestinationID string         `json:"destinationId" yaml:"destinationId"`
	Streams       []Stream       `json:"streams,omitempty" yaml:"streams,omitempty"`
	Schedule      string         `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Timezone      string         `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Enabled       bool           `json:"enabled" yaml:"enabled"`
	Settings      map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
	LastStatus    string         `json:"lastStatus,omitempty" yaml:"lastStatus,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

func (j Job) Key() string        { return j.ID }
func (j Job) Created() time.Time { return j.CreatedAt }

func (j Job) Clone() Job {
	if j.Streams != nil {
		j.Streams = append([]Stream(nil), j.Streams...)
	}
	if j.Settings != nil {
		j.Settings = schema.CloneData(j.Settings)
	}
	return j
}

func (j Job) Stamped(id string, created, updated time.Time) Job {
	j.ID = id
	j.CreatedAt = created
	j.UpdatedAt = updated
	return j
}

// SelectedStreams returns the names of streams marked for sync.
func (j Job) SelectedStreams() []string {
	var out []string
	for _, s := range j.Streams {
		if s.Selected {
			out = append(out, s.Name)
		}
	}
	return out
}

// Run statuses reported by the replication backend.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// JobHistory is one recorded run of a job.
type JobHistory struct {
	ID         string     `json:"id" yaml:"id"`
	JobID      string     `json:"jobId" yaml:"jobId"`
	Status     string     `json:"status" yaml:"status"`
	StartedAt  time.Time  `json:"startedAt" yaml:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	Records    int64      `json:"records" yaml:"records"`
	Bytes      int64      `json:"bytes" yaml:"bytes"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration is zero while the run is still in progress.
func (h JobHistory) Duration() time.Duration {
	if h.FinishedAt == nil {
		return 0
	}
	return h.FinishedAt.Sub(h.StartedAt)
}

// LogEntry is one line of a run log.
type LogEntry struct {
	Time    time.Time `json:"time" yaml:"time"`
	Level   string    `json:"level" yaml:"level"`
	Message string    `json:"message" yaml:"message"`
}

// Release describes a published version of the replication platform.
type Release struct {
	Version     string    `json:"version" yaml:"version"`
	Title       string    `json:"title,omitempty" yaml:"title,omitempty"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	URL         string    `json:"url,omitempty" yaml:"url,omitempty"`
	PublishedAt time.Time `json:"publishedAt" yaml:"publishedAt"`
}
