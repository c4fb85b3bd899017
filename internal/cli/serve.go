package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-syncconsole/internal/catalog"
	"github.com/goliatone/go-syncconsole/internal/config"
	"github.com/goliatone/go-syncconsole/internal/console"
	"github.com/goliatone/go-syncconsole/internal/probe"
	"github.com/goliatone/go-syncconsole/internal/repository"
	"github.com/goliatone/go-syncconsole/internal/repository/memory"
	"github.com/goliatone/go-syncconsole/internal/repository/rest"
	"github.com/goliatone/go-syncconsole/internal/repository/sqlite"
	"github.com/goliatone/go-syncconsole/internal/service"
	"github.com/goliatone/go-syncconsole/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) (err error) {
	cfg, logger := a.cfg, a.logger

	holder, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.CatalogDir != "" {
		go func() {
			if err := holder.Watch(ctx, cfg.CatalogDir, logger); err != nil {
				logger.Error("catalog watch stopped", slog.String("dir", cfg.CatalogDir), slog.Any("err", err))
			}
		}()
	}

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := backend.Shutdown(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close %s backend: %w", backend.Name, cerr))
		}
	}()

	prober := probe.New(probe.WithTimeout(cfg.ProbeTimeout), probe.WithLogger(logger))
	svc := service.New(backend, holder, service.WithLogger(logger), service.WithProber(prober))

	c, err := console.New(svc,
		console.WithLogger(logger),
		console.WithSessions(session.NewManager(cfg.SessionCookie)),
	)
	if err != nil {
		return err
	}
	logger.Info("console starting",
		slog.String("listen", cfg.Listen),
		slog.String("backend", backend.Name),
		slog.Int("connectors", holder.Catalog().Len()),
	)
	return c.Run(ctx, cfg.Listen, cfg.ShutdownTimeout)
}

// loadCatalog builds the connector catalog: built-ins, then OpenAPI
// connectors, then the watched directory.
func loadCatalog(ctx context.Context, cfg config.Config) (*catalog.Holder, error) {
	base := catalog.Default()
	if cfg.CatalogOpenAPI != "" {
		raw, err := os.ReadFile(cfg.CatalogOpenAPI)
		if err != nil {
			return nil, fmt.Errorf("read openapi catalog: %w", err)
		}
		connectors, err := catalog.LoadOpenAPI(ctx, raw)
		if err != nil {
			return nil, err
		}
		if base, err = catalog.Merge(base, connectors...); err != nil {
			return nil, err
		}
	}
	holder := catalog.NewHolder(base)
	if cfg.CatalogDir != "" {
		if err := holder.Reload(cfg.CatalogDir); err != nil {
			return nil, err
		}
	}
	return holder, nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.DatabasePath())
		if err != nil {
			return repository.Backend{}, err
		}
		return sqlite.NewBackend(db), nil
	case config.BackendREST:
		client, err := rest.New(cfg.APIURL, rest.WithTimeout(cfg.APITimeout), rest.WithLogger(logger))
		if err != nil {
			return repository.Backend{}, err
		}
		return rest.NewBackend(client), nil
	case config.BackendMemory:
		return memory.NewBackend(), nil
	default:
		return repository.Backend{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
