// Package console serves the replication management console: job, source
// and destination pages built from schema driven forms, release notes and a
// live validation endpoint for form edits.
package console

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-syncconsole/internal/console/response"
	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/service"
	"github.com/goliatone/go-syncconsole/internal/session"
	"github.com/goliatone/go-syncconsole/pkg/form"
	"github.com/goliatone/go-syncconsole/pkg/render/template"
)

//go:embed templates/*.html
var templateFiles embed.FS

const defaultShutdownTimeout = 15 * time.Second

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSessions replaces the session manager.
func WithSessions(m *session.Manager) Option {
	return func(c *Console) {
		if m != nil {
			c.sessions = m
		}
	}
}

// WithFormRenderer replaces the form renderer.
func WithFormRenderer(r *form.Renderer) Option {
	return func(c *Console) {
		if r != nil {
			c.forms = r
		}
	}
}

// WithTemplateDir serves page templates from dir before the embedded ones.
func WithTemplateDir(dir string) Option {
	return func(c *Console) { c.templateDir = dir }
}

// Console is the HTTP front end over the services.
type Console struct {
	svc         *service.Services
	forms       *form.Renderer
	pages       *template.Engine
	sessions    *session.Manager
	logger      *slog.Logger
	templateDir string

	sources      *connectionPages[domain.Source]
	destinations *connectionPages[domain.Destination]

	releasesMu sync.RWMutex
	releases   []domain.Release
}

// New builds a console over svc.
func New(svc *service.Services, opts ...Option) (*Console, error) {
	if svc == nil {
		return nil, errors.New("console: services are required")
	}
	c := &Console{
		svc:    svc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.forms == nil {
		c.forms = form.New()
	}
	if c.sessions == nil {
		c.sessions = session.NewManager(session.DefaultCookie)
	}

	files, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		return nil, fmt.Errorf("console: templates: %w", err)
	}
	c.pages, err = template.New(
		template.WithFS(files),
		template.WithBaseDir(c.templateDir),
		template.WithGlobalData(map[string]any{"backend": svc.Backend}),
	)
	if err != nil {
		return nil, fmt.Errorf("console: templates: %w", err)
	}

	c.sources = newConnectionPages(c, svc.Sources, "/sources", "source")
	c.destinations = newConnectionPages(c, svc.Destinations, "/destinations", "destination")
	return c, nil
}

// Handler returns the console routes wrapped in the middleware chain.
func (c *Console) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", c.healthz)

	mux.HandleFunc("GET /jobs", c.listJobs)
	mux.HandleFunc("GET /jobs/new", c.newJob)
	mux.HandleFunc("POST /jobs/new", c.createJob)
	mux.HandleFunc("GET /jobs/{jobId}/edit", c.editJob)
	mux.HandleFunc("POST /jobs/{jobId}/edit", c.updateJob)
	mux.HandleFunc("POST /jobs/{jobId}/delete", c.deleteJob)
	mux.HandleFunc("POST /jobs/{jobId}/toggle", c.toggleJob)
	mux.HandleFunc("GET /jobs/{jobId}/history", c.jobHistory)
	mux.HandleFunc("GET /jobs/{jobId}/history/{historyId}/logs", c.jobLogs)
	mux.HandleFunc("GET /jobs/{jobId}/settings", c.jobSettings)
	mux.HandleFunc("POST /jobs/{jobId}/settings", c.saveJobSettings)

	c.sources.register(mux, "sourceId")
	c.destinations.register(mux, "destinationId")

	mux.HandleFunc("POST /forms/{formId}/change", c.formChange)
	mux.HandleFunc("GET /timezones", c.searchTimezones)

	mux.HandleFunc("GET /releases", c.listReleases)
	mux.HandleFunc("POST /releases/refresh", c.refreshReleases)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/jobs", http.StatusFound)
	})

	return chainMiddleware(mux,
		loggingMiddleware(c.logger),
		recoverMiddleware(c.logger),
		c.sessions.Middleware,
	)
}

// Run serves the console on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (c *Console) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("console: listen %s: %w", addr, err)
	}
	return c.Serve(ctx, listener, shutdownTimeout)
}

// Serve is Run on an existing listener.
func (c *Console) Serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	server := &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.logger.Info("console listening", slog.String("addr", listener.Addr().String()), slog.String("backend", c.svc.Backend))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("console: shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		c.logger.Info("console stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (c *Console) healthz(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"backend":      c.svc.Backend,
		"sources":      len(c.svc.Sources.Connectors()),
		"destinations": len(c.svc.Destinations.Connectors()),
	})
}

// page renders a full page. Queued flashes are consumed here.
func (c *Console) page(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["flashes"] = flashView(session.FromContext(r.Context()).Flashes())

	var buf bytes.Buffer
	if _, err := c.pages.RenderTemplate(name, data, &buf); err != nil {
		loggerFrom(r.Context(), c.logger).Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// fail reports a failed operation as a notification on a page that still
// renders.
func (c *Console) fail(r *http.Request, operation string, err error) {
	loggerFrom(r.Context(), c.logger).Warn("operation failed", slog.String("operation", operation), slog.Any("error", err))
	session.FromContext(r.Context()).AddFlash(session.FlashError, fmt.Sprintf("%s failed: %s", operation, err))
}

func (c *Console) flash(r *http.Request, kind, message string) {
	session.FromContext(r.Context()).AddFlash(kind, message)
}

// redirect answers a POST with 303 so a reload does not resubmit.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func flashView(flashes []session.Flash) []map[string]string {
	out := make([]map[string]string, 0, len(flashes))
	for _, f := range flashes {
		out = append(out, map[string]string{"kind": f.Kind, "message": f.Message})
	}
	return out
}
