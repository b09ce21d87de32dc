// Command fluxtrace-server serves flow traces over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/fluxtrace/internal/api"
	"github.com/persistorai/fluxtrace/internal/config"
	"github.com/persistorai/fluxtrace/internal/db"
	"github.com/persistorai/fluxtrace/internal/db/migrations"
	"github.com/persistorai/fluxtrace/internal/dbpool"
	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/metrics"
	"github.com/persistorai/fluxtrace/internal/service"
	"github.com/persistorai/fluxtrace/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	if err := run(log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

// backend is the graph source chosen by configuration.
type backend struct {
	snapshots domain.SnapshotOpener
	imports   domain.ImportService
	probe     api.DatabaseProbe
	close     func()
}

func run(log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	traces := service.NewTraceService(b.snapshots, service.TraceLimits{
		Category:   cfg.StartCategory,
		MaxDepth:   cfg.TraceMaxDepth,
		MaxResults: cfg.TraceMaxResults,
		Timeout:    cfg.TraceTimeout,
	}, log)

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:           log,
		Probe:         b.probe,
		Traces:        traces,
		Imports:       b.imports,
		CORSOrigins:   cfg.CORSOrigins,
		APIKey:        cfg.APIKey.Value(),
		Version:       config.Version,
		SchemaVersion: int64(db.SchemaVersion()),
	})

	if cfg.APIKey.Value() == "" {
		log.Warn("API_KEY is not set, trace and import routes are unauthenticated")
	}

	apiServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(apiServer, "api", log) })
	g.Go(func() error { return serve(metricsServer, "metrics", log) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(srv *http.Server, name string, log *logrus.Logger) error {
	log.WithFields(logrus.Fields{"listener": name, "addr": srv.Addr}).Info("listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener: %w", name, err)
	}

	return nil
}

// openBackend connects to Postgres and applies migrations, or loads
// GRAPH_FILE into memory.
func openBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*backend, error) {
	if !cfg.UsesDatabase() {
		doc, err := store.LoadDocument(cfg.GraphFile)
		if err != nil {
			return nil, err
		}

		g, err := store.NewMemoryGraph(doc)
		if err != nil {
			return nil, err
		}

		log.WithFields(logrus.Fields{
			"file":  cfg.GraphFile,
			"nodes": g.NodeCount(),
			"edges": g.EdgeCount(),
		}).Info("graph loaded")

		return &backend{snapshots: service.MemorySnapshots(g), close: func() {}}, nil
	}

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{
		MaxConns:         int32(cfg.DBMaxConns), //nolint:gosec // bounded to 100 by config.
		StatementTimeout: cfg.TraceTimeout,
	})
	if err != nil {
		return nil, err
	}

	metrics.RegisterPool(pool.InUse, pool.Idle)

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		pool.Close()
		return nil, err
	}

	base := store.Base{Pool: pool, Log: log}

	return &backend{
		snapshots: service.PostgresSnapshots(store.NewGraphStore(base)),
		imports:   service.NewImportService(store.NewImportStore(base), log),
		probe:     db.NewProbe(pool, migrations.FS),
		close:     pool.Close,
	}, nil
}
