package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-syncconsole/internal/catalog"
	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/probe"
	"github.com/goliatone/go-syncconsole/internal/repository"
	"github.com/goliatone/go-syncconsole/internal/repository/memory"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

func newServices(t *testing.T, opts ...Option) (*Services, repository.Backend) {
	t.Helper()
	backend := memory.NewBackend()
	opts = append([]Option{WithProber(probe.New(probe.WithTimeout(2 * time.Second)))}, opts...)
	return New(backend, Static(catalog.Default()), opts...), backend
}

func pgSource(name string, config map[string]any) domain.Source {
	return domain.Source{Connection: domain.Connection{Name: name, Type: "postgres", Config: config}}
}

func validPG() map[string]any {
	return map[string]any{"host": "db", "database": "orders", "username": "sync", "password": "secret"}
}

func TestCreateSourceAppliesDefaults(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	created, err := svc.Sources.Create(ctx, pgSource("  Orders  ", validPG()))
	require.NoError(t, err)
	assert.Equal(t, "Orders", created.Name)
	assert.Equal(t, float64(5432), created.Config["port"])
	assert.Equal(t, "disable", created.Config["ssl_mode"])
	assert.Equal(t, "1.4.0", created.Version)

	list, err := svc.Sources.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateSourceRejectsInvalidConfig(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	_, err := svc.Sources.Create(ctx, pgSource("", map[string]any{"port": float64(70000)}))
	require.ErrorIs(t, err, ErrInvalidConfig)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Name is required", verr.Record["name"])
	assert.Equal(t, []string{"Host is required"}, verr.Fields["host"])
	assert.Contains(t, verr.Fields, "port")

	formErrs := ConnectionFormErrors(verr)
	assert.Contains(t, formErrs, "config.host")
	assert.Contains(t, formErrs, "name")

	_, err = svc.Sources.Create(ctx, domain.Source{Connection: domain.Connection{Name: "x", Type: "oracle"}})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Record["type"], "oracle")

	list, err := svc.Sources.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "nothing is stored when validation fails")
}

func TestUpdateKeepsMaskedSecrets(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	created, err := svc.Sources.Create(ctx, pgSource("Orders", validPG()))
	require.NoError(t, err)

	edit := created.Clone()
	edit.Config["password"] = widgets.Masked
	edit.Config["host"] = "db2"
	updated, err := svc.Sources.Update(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "secret", updated.Config["password"])
	assert.Equal(t, "db2", updated.Config["host"])
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	edit.Type = "mysql"
	_, err = svc.Sources.Update(ctx, edit)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Record, "type")

	edit.ID = "missing"
	edit.Type = ""
	_, err = svc.Sources.Update(ctx, edit)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestKeepSecretsRestoresMaskedArrayItems(t *testing.T) {
	s, err := schema.Parse([]byte(`{
  "type": "object",
  "properties": {
    "tokens": {"type": "array", "items": {"type": "string", "format": "password"}},
    "brokers": {"type": "array", "items": {
      "type": "object",
      "properties": {"host": {"type": "string"}, "secret": {"type": "string", "format": "password"}}
    }}
  }
}`))
	require.NoError(t, err)

	stored := map[string]any{
		"tokens":  []any{"t0", "t1"},
		"brokers": []any{map[string]any{"host": "a", "secret": "s0"}},
	}
	redacted := widgets.Redact(s, nil, stored)
	require.Equal(t, widgets.Masked, redacted["tokens"].([]any)[1])

	next := schema.CloneData(redacted)
	next["tokens"] = append(next["tokens"].([]any), "t2")

	got := keepSecrets(s, nil, next, stored)
	assert.Equal(t, []any{"t0", "t1", "t2"}, got["tokens"])
	assert.Equal(t, []any{map[string]any{"host": "a", "secret": "s0"}}, got["brokers"])
}

func TestDeleteConnectionInUse(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	src, dst := seedConnections(t, svc)

	job, err := svc.Jobs.Create(ctx, domain.Job{Name: "Nightly", SourceID: src.ID, DestinationID: dst.ID})
	require.NoError(t, err)

	err = svc.Sources.Delete(ctx, src.ID)
	assert.ErrorIs(t, err, ErrInUse)
	assert.ErrorContains(t, err, "Nightly")

	require.NoError(t, svc.Jobs.Delete(ctx, job.ID))
	require.NoError(t, svc.Sources.Delete(ctx, src.ID))
	require.NoError(t, svc.Destinations.Delete(ctx, dst.ID))
}

func seedConnections(t *testing.T, svc *Services) (domain.Source, domain.Destination) {
	t.Helper()
	ctx := context.Background()
	src, err := svc.Sources.Create(ctx, pgSource("Orders", validPG()))
	require.NoError(t, err)
	dst, err := svc.Destinations.Create(ctx, domain.Destination{Connection: domain.Connection{
		Name: "Lake",
		Type: "s3",
		Config: map[string]any{
			"bucket": "lake",
		},
	}})
	require.NoError(t, err)
	return src, dst
}

func TestTestConnectionProbesLocally(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "app.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	src, err := svc.Sources.Create(ctx, domain.Source{Connection: domain.Connection{
		Name: "App", Type: "sqlite", Config: map[string]any{"path": path},
	}})
	require.NoError(t, err)

	result, err := svc.Sources.Test(ctx, src.ID)
	require.NoError(t, err)
	assert.True(t, result.Success, result.Message)

	_, dst := seedConnections(t, svc)
	_, err = svc.Destinations.Test(ctx, dst.ID)
	assert.ErrorIs(t, err, probe.ErrUnsupported)

	_, err = svc.Sources.Test(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

type fakeTester struct {
	calls []string
}

func (f *fakeTester) TestConnection(_ context.Context, kind domain.ConnectorKind, id string) (domain.TestResult, error) {
	f.calls = append(f.calls, string(kind)+"/"+id)
	if id == "broken" {
		return domain.TestResult{}, errors.New("backend down")
	}
	return domain.TestResult{Success: false, Message: "authentication failed"}, nil
}

func TestTestConnectionUsesBackendTester(t *testing.T) {
	backend := memory.NewBackend()
	tester := &fakeTester{}
	backend.Tester = tester
	svc := New(backend, Static(catalog.Default()))

	result, err := svc.Destinations.Test(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "authentication failed", result.Message)
	assert.Equal(t, []string{"destination/d1"}, tester.calls)

	_, err = svc.Sources.Test(context.Background(), "broken")
	assert.ErrorContains(t, err, "backend down")
}

func TestJobValidation(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	src, dst := seedConnections(t, svc)

	_, err := svc.Jobs.Create(ctx, domain.Job{
		SourceID:      "gone",
		DestinationID: dst.ID,
		Schedule:      "every day",
		Streams: []domain.Stream{
			{Name: "orders", SyncMode: domain.SyncIncremental},
			{Name: ""},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Name is required", verr.Record["name"])
	assert.Equal(t, "The selected source no longer exists", verr.Record["source_id"])
	assert.Contains(t, verr.Record, "schedule")
	assert.Contains(t, verr.Record, "streams.0.cursor_field")
	assert.Contains(t, verr.Record, "streams.1.name")
	assert.NotContains(t, verr.Record, "destination_id")

	job, err := svc.Jobs.Create(ctx, domain.Job{
		Name:          "Nightly",
		SourceID:      src.ID,
		DestinationID: dst.ID,
		Schedule:      "0 2 * * *",
		Enabled:       true,
		Streams:       []domain.Stream{{Name: "orders", Selected: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, job.LastStatus)
	assert.Equal(t, domain.SyncFullRefresh, job.Streams[0].SyncMode)

	forSource, err := svc.Jobs.ForSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, forSource, 1)
	forDest, err := svc.Jobs.ForDestination(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, forDest)
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	next, ok, err := NextRun("0 2 * * *", from)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC), next)

	_, ok, err = NextRun("", from)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = NextRun("61 * * * *", from)
	assert.Error(t, err)

	svc, _ := newServices(t, WithClock(func() time.Time { return from }))
	next, ok = svc.Jobs.NextRun(domain.Job{Schedule: "@hourly", Enabled: true})
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), next)
	_, ok = svc.Jobs.NextRun(domain.Job{Schedule: "@hourly"})
	assert.False(t, ok, "disabled jobs have no next run")
}

func TestNextRunHonoursTimezone(t *testing.T) {
	from := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	svc, _ := newServices(t, WithClock(func() time.Time { return from }))

	next, ok := svc.Jobs.NextRun(domain.Job{Schedule: "0 2 * * *", Timezone: "America/New_York", Enabled: true})
	require.True(t, ok)
	assert.True(t, next.Equal(time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC)), "02:00 EST is 07:00 UTC, got %s", next)

	assert.Equal(t, "0 2 * * *", ScheduleSpec(domain.Job{Schedule: "0 2 * * *"}))
	assert.Equal(t, "", ScheduleSpec(domain.Job{Timezone: "UTC"}))
	assert.Equal(t, "CRON_TZ=Asia/Tokyo @daily", ScheduleSpec(domain.Job{Schedule: "@daily", Timezone: "Asia/Tokyo"}))
}

func TestCreateJobRejectsUnknownTimezone(t *testing.T) {
	svc, _ := newServices(t)
	src, dst := seedConnections(t, svc)

	_, err := svc.Jobs.Create(context.Background(), domain.Job{
		Name: "Nightly", SourceID: src.ID, DestinationID: dst.ID,
		Schedule: "@daily", Timezone: "Mars/Base",
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FormErrors(), "timezone")
}

func TestJobSettingsAndToggle(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	src, dst := seedConnections(t, svc)
	job, err := svc.Jobs.Create(ctx, domain.Job{Name: "Nightly", SourceID: src.ID, DestinationID: dst.ID})
	require.NoError(t, err)

	_, err = svc.Jobs.UpdateSettings(ctx, job.ID, map[string]any{"retries": int64(20)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "retries")

	updated, err := svc.Jobs.UpdateSettings(ctx, job.ID, map[string]any{"retries": int64(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.Settings["retries"])
	assert.Equal(t, "raw", updated.Settings["normalization"])

	toggled, err := svc.Jobs.SetEnabled(ctx, job.ID, true)
	require.NoError(t, err)
	assert.True(t, toggled.Enabled)
	assert.Equal(t, int64(5), toggled.Settings["retries"], "settings survive a toggle")
}

func TestJobHistoryRequiresJob(t *testing.T) {
	svc, backend := newServices(t)
	ctx := context.Background()
	src, dst := seedConnections(t, svc)
	job, err := svc.Jobs.Create(ctx, domain.Job{Name: "Nightly", SourceID: src.ID, DestinationID: dst.ID})
	require.NoError(t, err)

	log := backend.JobLog.(*memory.JobLog)
	log.Record(domain.JobHistory{ID: "h1", JobID: job.ID, Status: domain.StatusSucceeded},
		domain.LogEntry{Level: "info", Message: "done"})

	history, err := svc.Jobs.History(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	logs, err := svc.Jobs.Logs(ctx, job.ID, "h1")
	require.NoError(t, err)
	assert.Equal(t, "done", logs[0].Message)

	_, err = svc.Jobs.History(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestJobFormData(t *testing.T) {
	job := domain.Job{
		Name:          "Nightly",
		SourceID:      "s1",
		DestinationID: "d1",
		Schedule:      "@daily",
		Timezone:      "Europe/Berlin",
		Enabled:       true,
		Streams: []domain.Stream{
			{Name: "orders", Namespace: "public", SyncMode: domain.SyncIncremental, CursorField: "updated_at", Selected: true},
		},
	}
	assert.Equal(t, job, JobFromData(JobData(job)))

	s, _ := JobSchema([]domain.Source{{Connection: domain.Connection{ID: "s1", Name: "Orders"}}}, nil)
	require.NoError(t, s.Check())
	assert.Equal(t, []any{"s1"}, s.Properties["source_id"].Enum)
	assert.Equal(t, []string{"Orders"}, s.Properties["source_id"].EnumNames)
	assert.Contains(t, s.Properties["timezone"].Enum, "Europe/Berlin")
	assert.Equal(t, "UTC", s.Defaults()["timezone"])
}

func TestConnectionSchemaWrapsConnector(t *testing.T) {
	conn, err := catalog.Default().Lookup(domain.KindSource, "postgres")
	require.NoError(t, err)
	s, ui := ConnectionSchema(conn)
	require.NoError(t, s.Check())
	assert.Equal(t, []string{NameKey, ConfigKey}, s.OrderedKeys())
	assert.Equal(t, "radio", ui.Field(ConfigKey).Field("ssl_mode").Widget())
	assert.Nil(t, conn.Schema.Order, "the catalog schema is not modified")

	name, config := ConnectionFromData(ConnectionData(domain.Connection{Name: "Orders", Config: map[string]any{"host": "db"}}))
	assert.Equal(t, "Orders", name)
	assert.Equal(t, map[string]any{"host": "db"}, config)
}
