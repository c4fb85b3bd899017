package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "syncconsole.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testOptions() []Option {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seq := 0
	return []Option{
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		WithIDs(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}
}

func TestTableCRUD(t *testing.T) {
	ctx := context.Background()
	table := NewTable[domain.Source](openTestDB(t), "sources", testOptions()...)

	created, err := table.Create(ctx, domain.Source{Connection: domain.Connection{
		Name:   "Orders",
		Type:   "postgres",
		Config: map[string]any{"host": "db", "port": float64(5432)},
	}})
	require.NoError(t, err)
	assert.Equal(t, "id-1", created.ID)

	got, err := table.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Orders", got.Name)
	assert.Equal(t, map[string]any{"host": "db", "port": float64(5432)}, got.Config)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	got.Name = "Orders v2"
	got.CreatedAt = time.Time{}
	updated, err := table.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Orders v2", updated.Name)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "update keeps the creation time")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	require.NoError(t, table.Delete(ctx, "id-1"))
	_, err = table.Get(ctx, "id-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTableErrors(t *testing.T) {
	ctx := context.Background()
	table := NewTable[domain.Job](openTestDB(t), "jobs", testOptions()...)

	_, err := table.Create(ctx, domain.Job{ID: "nightly"})
	require.NoError(t, err)
	_, err = table.Create(ctx, domain.Job{ID: "nightly"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = table.Update(ctx, domain.Job{ID: "missing"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, table.Delete(ctx, "missing"), repository.ErrNotFound)
}

func TestTableListOrder(t *testing.T) {
	ctx := context.Background()
	table := NewTable[domain.Destination](openTestDB(t), "destinations", testOptions()...)

	list, err := table.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, name := range []string{"warehouse", "lake", "stream"} {
		_, err := table.Create(ctx, domain.Destination{Connection: domain.Connection{Name: name}})
		require.NoError(t, err)
	}
	list, err = table.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "warehouse", list[0].Name)
	assert.Equal(t, "stream", list[2].Name)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "syncconsole.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	backend := NewBackend(db, testOptions()...)
	_, err = backend.Sources.Create(ctx, domain.Source{Connection: domain.Connection{Name: "Orders"}})
	require.NoError(t, err)
	require.NoError(t, backend.Shutdown())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	list, err := NewBackend(db).Sources.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Orders", list[0].Name)
}

func TestJobLogAndReleases(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log := &JobLog{db: db}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, log.Record(ctx, domain.JobHistory{ID: "h1", JobID: "j1", StartedAt: start, Status: domain.StatusSucceeded},
		domain.LogEntry{Level: "info", Message: "started"},
		domain.LogEntry{Level: "info", Message: "finished"}))
	require.NoError(t, log.Record(ctx, domain.JobHistory{ID: "h2", JobID: "j1", StartedAt: start.Add(time.Hour), Status: domain.StatusRunning}))

	history, err := log.History(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "h2", history[0].ID)

	entries, err := log.Logs(ctx, "j1", "h1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "finished", entries[1].Message)

	_, err = log.Logs(ctx, "j1", "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	releases := &Releases{db: db}
	require.NoError(t, releases.Save(ctx,
		domain.Release{Version: "1.0.0", PublishedAt: start},
		domain.Release{Version: "1.1.0", PublishedAt: start.Add(24 * time.Hour)},
	))
	list, err := releases.Releases(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1.1.0", list[0].Version)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
