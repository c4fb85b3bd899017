// Package probe checks that a connector configuration can reach its
// database. It backs the test-connection action for local backends, which
// have no replication engine to ask.
package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-syncconsole/internal/domain"
)

// ErrUnsupported is returned for connector types with no probe.
var ErrUnsupported = errors.New("probe: unsupported connector type")

const defaultTimeout = 5 * time.Second

type checkFunc func(ctx context.Context, p *Prober, cfg map[string]any) error

var checks = map[string]checkFunc{
	"postgres": checkPostgres,
	"redshift": checkPostgres,
	"mysql":    checkMySQL,
	"sqlite":   checkSQLite,
	"mongodb":  checkMongo,
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout bounds one probe.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Prober opens a short-lived connection and pings it.
type Prober struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a Prober.
func New(opts ...Option) *Prober {
	p := &Prober{
		timeout: defaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Supports reports whether connectorType has a probe.
func (p *Prober) Supports(connectorType string) bool {
	_, ok := checks[strings.ToLower(connectorType)]
	return ok
}

// Test connects with cfg. Connection failures are reported in the result;
// the error is reserved for unsupported types and canceled contexts.
func (p *Prober) Test(ctx context.Context, connectorType string, cfg map[string]any) (domain.TestResult, error) {
	check, ok := checks[strings.ToLower(connectorType)]
	if !ok {
		return domain.TestResult{}, fmt.Errorf("%w: %q", ErrUnsupported, connectorType)
	}
	if err := ctx.Err(); err != nil {
		return domain.TestResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := check(ctx, p, cfg)
	p.logger.Debug("connection probe",
		slog.String("type", connectorType),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", err == nil),
	)
	if err != nil {
		return domain.TestResult{Success: false, Message: err.Error()}, nil
	}
	return domain.TestResult{Success: true, Message: "Connection succeeded"}, nil
}

func pingSQL(ctx context.Context, db *sql.DB) error {
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func checkPostgres(ctx context.Context, p *Prober, cfg map[string]any) error {
	dsn, err := PostgresDSN(cfg, p.timeout)
	if err != nil {
		return err
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return pingSQL(ctx, sql.OpenDB(connector))
}

func checkMySQL(ctx context.Context, p *Prober, cfg map[string]any) error {
	mcfg, err := MySQLConfig(cfg, p.timeout)
	if err != nil {
		return err
	}
	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	return pingSQL(ctx, sql.OpenDB(connector))
}

func checkSQLite(ctx context.Context, _ *Prober, cfg map[string]any) error {
	path := stringField(cfg, "path")
	if path == "" {
		return errors.New("sqlite: path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return pingSQL(ctx, db)
}

func checkMongo(ctx context.Context, p *Prober, cfg map[string]any) error {
	uri, err := MongoURI(cfg)
	if err != nil {
		return err
	}
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(p.timeout).
		SetServerSelectionTimeout(p.timeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	return nil
}

// PostgresDSN builds a lib/pq URL from host, port, database, username,
// password, ssl_mode and ssl_root_cert.
func PostgresDSN(cfg map[string]any, timeout time.Duration) (string, error) {
	host := stringField(cfg, "host")
	if host == "" {
		return "", errors.New("postgres: host is required")
	}
	query := url.Values{}
	query.Set("sslmode", firstNonEmpty(stringField(cfg, "ssl_mode"), "disable"))
	if cert := stringField(cfg, "ssl_root_cert"); cert != "" {
		query.Set("sslrootcert", cert)
	}
	if timeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(max(1, int(timeout.Seconds()))))
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(intField(cfg, "port", 5432))),
		Path:     "/" + stringField(cfg, "database"),
		RawQuery: query.Encode(),
	}
	if user := stringField(cfg, "username"); user != "" {
		u.User = url.UserPassword(user, stringField(cfg, "password"))
	}
	return u.String(), nil
}

// MySQLConfig builds a go-sql-driver configuration from host, port,
// database, username, password and ssl.
func MySQLConfig(cfg map[string]any, timeout time.Duration) (*mysql.Config, error) {
	host := stringField(cfg, "host")
	if host == "" {
		return nil, errors.New("mysql: host is required")
	}
	out := mysql.NewConfig()
	out.Net = "tcp"
	out.Addr = net.JoinHostPort(host, strconv.Itoa(intField(cfg, "port", 3306)))
	out.User = stringField(cfg, "username")
	out.Passwd = stringField(cfg, "password")
	out.DBName = stringField(cfg, "database")
	out.Timeout = timeout
	out.ReadTimeout = timeout
	out.ParseTime = true
	if boolField(cfg, "ssl") {
		out.TLSConfig = "true"
	}
	return out, nil
}

// MongoURI returns connection_string when set, otherwise a mongodb:// URI
// from host, port, database, username, password and auth_source.
func MongoURI(cfg map[string]any) (string, error) {
	if raw := stringField(cfg, "connection_string"); raw != "" {
		if !strings.HasPrefix(raw, "mongodb://") && !strings.HasPrefix(raw, "mongodb+srv://") {
			return "", errors.New("mongodb: connection string must start with mongodb:// or mongodb+srv://")
		}
		if password := stringField(cfg, "password"); password != "" {
			raw = strings.ReplaceAll(raw, "<password>", url.QueryEscape(password))
		}
		return raw, nil
	}
	host := stringField(cfg, "host")
	if host == "" {
		return "", errors.New("mongodb: host or connection_string is required")
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(host, strconv.Itoa(intField(cfg, "port", 27017))),
		Path:   "/" + stringField(cfg, "database"),
	}
	if user := stringField(cfg, "username"); user != "" {
		u.User = url.UserPassword(user, stringField(cfg, "password"))
	}
	if source := stringField(cfg, "auth_source"); source != "" {
		u.RawQuery = url.Values{"authSource": {source}}.Encode()
	}
	return u.String(), nil
}

func stringField(cfg map[string]any, key string) string {
	switch v := cfg[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intField(cfg map[string]any, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func boolField(cfg map[string]any, key string) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
