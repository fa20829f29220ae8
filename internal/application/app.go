// Package application wires configuration into the pieces both binaries
// need: the table registry, the store client, the audit recorder and the
// metrics registry.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/gridconsole/internal/config"
	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/grid/tables"
	"github.com/JonMunkholm/gridconsole/internal/store"
	"github.com/JonMunkholm/gridconsole/internal/store/memory"
	"github.com/JonMunkholm/gridconsole/internal/store/postgres"
	"github.com/JonMunkholm/gridconsole/internal/store/rest"
)

// App holds the wired dependencies. Close releases them.
type App struct {
	Config     *config.Config
	Registry   *grid.Registry
	Client     store.Client
	Audit      grid.AuditRecorder
	Metrics    *grid.Metrics
	Prometheus *prometheus.Registry

	pool     *pgxpool.Pool
	auditLog *postgres.AuditLog
}

// Options adjusts New for a particular binary.
type Options struct {
	// OnUnauthorized is called when the platform rejects the API token.
	OnUnauthorized func()

	// DisableMetrics skips the Prometheus registry (the CLI has no scrape
	// endpoint).
	DisableMetrics bool
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	reg, err := BuildRegistry(cfg.Grid.SchemaFile)
	if err != nil {
		return nil, err
	}
	app.Registry = reg

	if !opts.DisableMetrics {
		app.Prometheus = prometheus.NewRegistry()
		app.Prometheus.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.Metrics = grid.NewMetrics(app.Prometheus)
	}

	if cfg.UsesDatabase() {
		pool, err := postgres.Connect(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		app.pool = pool
	}

	client, err := app.buildStore(opts)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Client = client

	if err := app.buildAudit(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// BuildRegistry returns the built-in schemas plus those in schemaFile.
func BuildRegistry(schemaFile string) (*grid.Registry, error) {
	var extra []grid.TableSecuritySchema
	if schemaFile != "" {
		loaded, err := tables.LoadFile(schemaFile)
		if err != nil {
			return nil, err
		}
		extra = loaded
	}
	reg, err := tables.Registry(extra...)
	if err != nil {
		return nil, fmt.Errorf("table registry: %w", err)
	}
	return reg, nil
}

func (a *App) buildStore(opts Options) (store.Client, error) {
	cfg := a.Config
	switch cfg.Store.Driver {
	case config.DriverREST:
		onUnauthorized := opts.OnUnauthorized
		if onUnauthorized == nil {
			onUnauthorized = func() { slog.Warn("platform rejected the API token") }
		}
		return rest.New(rest.Config{
			BaseURL:           cfg.Store.BaseURL,
			Token:             cfg.Store.Token,
			Timeout:           cfg.Store.Timeout,
			RequestsPerSecond: cfg.Store.RequestsPerSecond,
			Burst:             cfg.Store.Burst,
			OnUnauthorized:    onUnauthorized,
		})
	case config.DriverPostgres:
		return postgres.New(a.pool, cfg.Database.Schema), nil
	case config.DriverMemory:
		m := memory.New()
		for _, name := range a.Registry.Names() {
			schema, _ := a.Registry.Lookup(name)
			m.AddTable(name, keyColumn(schema))
		}
		if cfg.Grid.SeedDemo {
			SeedDemo(m)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// keyColumn picks the identity column a memory table is keyed on: the
// first one the schema displays or protects.
func keyColumn(s grid.TableSecuritySchema) string {
	ids := s.Identity
	if len(ids) == 0 {
		ids = grid.DefaultIdentity
	}
	for _, id := range ids {
		if s.IsDisplayed(id) || s.IsProtected(id) {
			return id
		}
	}
	return ids[0]
}

func (a *App) buildAudit(ctx context.Context) error {
	switch {
	case !a.Config.Audit.Enabled:
		a.Audit = grid.LogRecorder{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	case a.pool != nil:
		a.auditLog = postgres.NewAuditLog(a.pool)
		if err := a.auditLog.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("audit log schema: %w", err)
		}
		a.Audit = a.auditLog
	default:
		a.Audit = grid.LogRecorder{}
	}
	return nil
}

// StartJobs runs background jobs until ctx is done.
func (a *App) StartJobs(ctx context.Context) {
	if a.auditLog != nil {
		go postgres.StartRetentionScheduler(ctx, a.auditLog, postgres.RetentionConfig{
			RetentionDays: a.Config.Audit.RetentionDays,
			CheckInterval: a.Config.Audit.CheckInterval,
		})
	}
}

// Controller returns a grid Controller on the App's dependencies.
func (a *App) Controller(opts ...grid.Option) *grid.Controller {
	base := []grid.Option{
		grid.WithMetrics(a.Metrics),
		grid.WithAuditRecorder(a.Audit),
		grid.WithConfirmTTL(a.Config.Grid.DeleteConfirmTTL),
	}
	return grid.NewController(a.Registry, a.Client, append(base, opts...)...)
}

// PurgeAudit deletes audit entries older than days.
func (a *App) PurgeAudit(ctx context.Context, days int) (int64, error) {
	if a.auditLog == nil {
		return 0, ErrNoDatabase
	}
	return a.auditLog.Purge(ctx, time.Now().AddDate(0, 0, -days))
}

// Close releases the database pool.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// ErrNoDatabase is returned by operations that need PostgreSQL.
var ErrNoDatabase = errors.New("DATABASE_URL is not configured")
