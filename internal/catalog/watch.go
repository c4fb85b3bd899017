package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 200 * time.Millisecond

// Holder publishes the current catalog. Readers always see a complete
// snapshot; a failed reload keeps the previous one.
type Holder struct {
	current atomic.Pointer[Catalog]
	base    *Catalog
}

// NewHolder starts with base. Directory connectors loaded later are merged
// over base.
func NewHolder(base *Catalog) *Holder {
	h := &Holder{base: base}
	h.current.Store(base)
	return h
}

// Catalog returns the current snapshot.
func (h *Holder) Catalog() *Catalog {
	return h.current.Load()
}

// Reload merges the connectors in dir over the base catalog.
func (h *Holder) Reload(dir string) error {
	connectors, err := LoadDir(dir)
	if err != nil {
		return err
	}
	next, err := Merge(h.base, connectors...)
	if err != nil {
		return err
	}
	h.current.Store(next)
	return nil
}

// Watch reloads dir whenever a file in it changes until ctx is done.
// Bursts of events are coalesced.
func (h *Holder) Watch(ctx context.Context, dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watch: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", dir, err)
	}

	reload := func() {
		if err := h.Reload(dir); err != nil {
			logger.Warn("catalog reload failed, keeping previous connectors", slog.String("dir", dir), slog.Any("err", err))
			return
		}
		logger.Info("catalog reloaded", slog.String("dir", dir), slog.Int("connectors", h.Catalog().Len()))
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isConnectorFile(filepath.Base(event.Name)) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDelay, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher error", slog.Any("err", err))
		}
	}
}
