package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/handlers"
	infracache "github.com/asakaida/catalogattr/internal/infrastructure/cache"
	"github.com/asakaida/catalogattr/internal/infrastructure/config"
	"github.com/asakaida/catalogattr/internal/infrastructure/database"
	"github.com/asakaida/catalogattr/internal/infrastructure/logging"
	"github.com/asakaida/catalogattr/internal/infrastructure/metrics"
	"github.com/asakaida/catalogattr/internal/repositories"
	"github.com/asakaida/catalogattr/internal/repositories/postgres"
	"github.com/asakaida/catalogattr/internal/repositories/sqlite"
	"github.com/asakaida/catalogattr/internal/services"
	"github.com/asakaida/catalogattr/internal/services/filter"
	"github.com/asakaida/catalogattr/internal/services/tenancy"
	"github.com/asakaida/catalogattr/pkg/cache"
	"github.com/asakaida/catalogattr/pkg/cache/memorycache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const defaultEnv = "dev"

// store bundles the repositories of the configured database driver
type store struct {
	attributes repositories.AttributeRepository
	sharing    repositories.SharingRepository
	db         *sql.DB
	connStr    string // PostgreSQL only, for LISTEN/NOTIFY
	close      func() error
}

func main() {
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	st, err := openStore(&cfg.Database)
	if err != nil {
		return err
	}
	defer st.close()

	logger.Info("connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", cfg.Database.Database),
	)

	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector)

	// Tenant scope cache
	var scopes cache.Cache[*entities.Scope]
	if cfg.Cache.Enabled {
		mem := memorycache.New(&memorycache.Config{
			MaxSizeBytes:    cfg.Cache.MaxMemoryBytes,
			DefaultTTL:      cfg.Cache.TTL(),
			CleanupInterval: cfg.Cache.TTL(),
			EnableMetrics:   true,
		}, tenancy.ScopeSize)
		defer mem.Close()
		scopes = mem
		collector.SetCache(mem)
	}

	resolver := tenancy.NewResolver(st.sharing, scopes, cfg.Cache.TTL(), logger)

	if scopes != nil && st.connStr != "" {
		listener := infracache.NewSharingListener(st.connStr, resolver, logger)
		if err := listener.Start(context.Background()); err != nil {
			// Cached scopes still expire after CACHE_TTL_MINUTES
			logger.Warn("sharing change listener unavailable", zap.Error(err))
		} else {
			defer listener.Stop()
		}
	}

	filters, err := filter.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create filter engine: %w", err)
	}

	service := services.NewAttributeService(st.attributes, resolver, filters, logger)
	handler := handlers.NewAttributeHandler(service, cfg.Tenancy.DefaultEntity)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(collector, exporter)),
	)
	handlers.RegisterAttributeServiceServer(grpcServer, handler)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           metricsMux(exporter, st.db),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", cfg.Server.Address()))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.NamedError("cause", context.Cause(gctx)))
		shutdown(grpcServer, metricsServer, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// shutdown drains the gRPC server and stops the metrics server within 30s
func shutdown(grpcServer *grpc.Server, metricsServer *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logger.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		logger.Warn("shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Warn("error stopping metrics server", zap.Error(err))
	}
}

func openStore(cfg *config.DatabaseConfig) (*store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return &store{
			attributes: sqlite.NewAttributeRepository(db.DB),
			sharing:    sqlite.NewSharingRepository(db.DB),
			db:         db.DB,
			close:      db.Close,
		}, nil
	default:
		pg, err := database.NewPostgres(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &store{
			attributes: postgres.NewPostgresAttributeRepository(pg.DB),
			sharing:    postgres.NewPostgresSharingRepository(pg.DB),
			db:         pg.DB,
			connStr:    pg.ConnectionString(),
			close:      pg.Close,
		}, nil
	}
}

func metricsMux(exporter *metrics.PrometheusExporter, db *sql.DB) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}
