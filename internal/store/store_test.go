package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
	"github.com/goliatone/go-syncconsole/internal/repository/memory"
)

// failingRepo wraps a repository and fails writes on demand.
type failingRepo struct {
	repository.Repository[domain.Source]
	fail error
}

func (f *failingRepo) Create(ctx context.Context, item domain.Source) (domain.Source, error) {
	if f.fail != nil {
		return domain.Source{}, f.fail
	}
	return f.Repository.Create(ctx, item)
}

func (f *failingRepo) Update(ctx context.Context, item domain.Source) (domain.Source, error) {
	if f.fail != nil {
		return domain.Source{}, f.fail
	}
	return f.Repository.Update(ctx, item)
}

func (f *failingRepo) Delete(ctx context.Context, id string) error {
	if f.fail != nil {
		return f.fail
	}
	return f.Repository.Delete(ctx, id)
}

func source(name string) domain.Source {
	return domain.Source{Connection: domain.Connection{Name: name, Type: "postgres"}}
}

func TestCollectionAppliesConfirmedChanges(t *testing.T) {
	ctx := context.Background()
	c := New[domain.Source](memory.New[domain.Source]())

	assert.False(t, c.Loaded())
	_, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, c.Loaded())

	a, err := c.Create(ctx, source("a"))
	require.NoError(t, err)
	_, err = c.Create(ctx, source("b"))
	require.NoError(t, err)
	require.Len(t, c.Items(), 2)

	a.Name = "a2"
	_, err = c.Update(ctx, a)
	require.NoError(t, err)
	found, ok := c.Find(a.ID)
	require.True(t, ok)
	assert.Equal(t, "a2", found.Name)
	assert.Equal(t, "a2", c.Items()[0].Name, "update keeps position")

	require.NoError(t, c.Delete(ctx, a.ID))
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Name)
}

func TestCollectionLeavesStateOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{Repository: memory.New[domain.Source]()}
	c := New[domain.Source](repo)

	kept, err := c.Create(ctx, source("kept"))
	require.NoError(t, err)

	repo.fail = errors.New("backend unavailable")
	_, err = c.Create(ctx, source("lost"))
	assert.Error(t, err)

	kept.Name = "renamed"
	_, err = c.Update(ctx, kept)
	assert.Error(t, err)

	assert.Error(t, c.Delete(ctx, kept.ID))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].Name)
}

func TestCollectionItemsAreCopies(t *testing.T) {
	ctx := context.Background()
	c := New[domain.Source](memory.New[domain.Source]())
	item := source("a")
	item.Config = map[string]any{"host": "db"}
	_, err := c.Create(ctx, item)
	require.NoError(t, err)

	c.Items()[0].Config["host"] = "changed"
	assert.Equal(t, "db", c.Items()[0].Config["host"])
}

func TestRefreshErrorKeepsCache(t *testing.T) {
	ctx := context.Background()
	repo := memory.New[domain.Source]()
	c := New[domain.Source](repo)
	_, err := c.Create(ctx, source("a"))
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Refresh(canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, c.Items(), 1)
}
