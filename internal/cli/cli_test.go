package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-syncconsole/internal/config"
	"github.com/goliatone/go-syncconsole/pkg/prompt"
)

type scriptedDriver struct {
	inputs  []string
	confirm []bool
	err     error
}

func (d *scriptedDriver) Input(context.Context, prompt.InputConfig) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	if len(d.inputs) == 0 {
		return "", errors.New("no input scripted")
	}
	next := d.inputs[0]
	d.inputs = d.inputs[1:]
	return next, nil
}

func (d *scriptedDriver) Password(context.Context, prompt.InputConfig) (string, error) {
	return "", nil
}

func (d *scriptedDriver) Confirm(context.Context, prompt.ConfirmConfig) (bool, error) {
	if len(d.confirm) == 0 {
		return false, nil
	}
	next := d.confirm[0]
	d.confirm = d.confirm[1:]
	return next, nil
}

func (d *scriptedDriver) Select(context.Context, prompt.SelectConfig) (int, error) {
	return 0, nil
}

func (d *scriptedDriver) Info(context.Context, string) error { return nil }

func run(t *testing.T, driver prompt.Driver, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	cmd := newRoot(io.Discard, driver)
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const widgetSchema = `{
  "type": "object",
  "required": ["name", "port"],
  "properties": {
    "name": {"type": "string", "title": "Name"},
    "port": {"type": "integer", "title": "Port", "minimum": 1}
  }
}`

func TestValidateReportsErrorsAsJSON(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", widgetSchema)
	dataPath := writeFile(t, dir, "data.json", `{"port": 0}`)

	out, err := run(t, nil, "validate", "--schema", schemaPath, "--data", dataPath)
	require.ErrorIs(t, err, errSilent)

	var result struct {
		Valid  bool                `json:"valid"`
		Errors map[string][]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "name")
	assert.Contains(t, result.Errors, "port")
}

func TestValidatePassesValidData(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", widgetSchema)
	dataPath := writeFile(t, dir, "data.json", `{"name": "app", "port": 5432}`)

	out, err := run(t, nil, "validate", "--schema", schemaPath, "--data", dataPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)
}

func TestValidateAgainstCatalogConnector(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "data.json", `{}`)

	out, err := run(t, nil, "validate", "--connector", "sqlite", "--kind", "source", "--data", dataPath)
	require.ErrorIs(t, err, errSilent)
	assert.Contains(t, out, `"path"`)
}

func TestRenderConnectorForm(t *testing.T) {
	out, err := run(t, nil, "render", "--connector", "sqlite", "--kind", "source", "--action", "/save", "--theme", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, `data-field="path"`)
	assert.Contains(t, out, `action="/save"`)
	assert.Contains(t, out, `data-theme="acme"`)
}

func TestRenderRejectsUnknownConnector(t *testing.T) {
	_, err := run(t, nil, "render", "--connector", "nope", "--kind", "source")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRenderRequiresASchema(t *testing.T) {
	_, err := run(t, nil, "render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--schema or --connector")
}

func TestPromptPrintsFilledConfig(t *testing.T) {
	driver := &scriptedDriver{inputs: []string{"/tmp/app.db"}, confirm: []bool{false}}

	out, err := run(t, driver, "prompt", "--connector", "sqlite", "--kind", "source")
	require.NoError(t, err)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, "/tmp/app.db", data["path"])
}

func TestPromptAbort(t *testing.T) {
	driver := &scriptedDriver{err: prompt.ErrAborted}

	out, err := run(t, driver, "prompt", "--connector", "sqlite", "--kind", "source")
	require.ErrorIs(t, err, errSilent)
	assert.Empty(t, out)
}

func TestInvalidConfigFailsBeforeRunning(t *testing.T) {
	_, err := run(t, nil, "render", "--connector", "sqlite", "--backend", "rest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url")
}

func TestConfigFileIsRead(t *testing.T) {
	path := writeFile(t, t.TempDir(), "console.yaml", "backend: bogus\n")

	_, err := run(t, nil, "--config", path, "render", "--connector", "sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestLoadCatalogMergesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "source-sqlite.yaml", `type: sqlite
kind: source
version: 2.0.0
title: Embedded SQLite
schema:
  type: object
  properties:
    path:
      type: string
`)
	cfg := config.Default()
	cfg.CatalogDir = dir

	holder, err := loadCatalog(context.Background(), cfg)
	require.NoError(t, err)
	conn, err := holder.Catalog().Lookup("source", "sqlite")
	require.NoError(t, err)
	assert.Equal(t, "Embedded SQLite", conn.Title)

	_, err = holder.Catalog().Lookup("source", "postgres")
	assert.NoError(t, err)
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	backend, err := openBackend(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", backend.Name)

	cfg.Backend = config.BackendSQLite
	cfg.DataDir = t.TempDir()
	backend, err = openBackend(ctx, cfg, nil)
	require.NoError(t, err)
	assert.FileExists(t, cfg.DatabasePath())
	require.NoError(t, backend.Shutdown())

	cfg.Backend = "bogus"
	_, err = openBackend(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestServeStopsWithContext(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := serve(ctx, &app{cfg: cfg, logger: cfg.NewLogger(io.Discard)})
	assert.NoError(t, err)
}
