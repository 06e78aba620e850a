package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/handlers"
	"github.com/asakaida/catalogattr/internal/infrastructure/config"
	"github.com/asakaida/catalogattr/internal/infrastructure/database"
	"github.com/asakaida/catalogattr/internal/infrastructure/metrics"
	"github.com/asakaida/catalogattr/internal/repositories"
	"github.com/asakaida/catalogattr/internal/repositories/postgres"
	"github.com/asakaida/catalogattr/internal/repositories/sqlite"
	"github.com/asakaida/catalogattr/internal/services"
	"github.com/asakaida/catalogattr/internal/services/filter"
	"github.com/asakaida/catalogattr/internal/services/tenancy"
	"github.com/asakaida/catalogattr/pkg/cache/memorycache"
	"github.com/asakaida/catalogattr/pkg/client"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// E2ETestServer is the full attribute service stack served over bufconn
type E2ETestServer struct {
	Server    *grpc.Server
	Client    *client.Client
	Conn      *grpc.ClientConn
	DB        *sql.DB
	Driver    string
	Sharing   repositories.SharingRepository
	Resolver  *tenancy.Resolver
	Scopes    *memorycache.Cache[*entities.Scope]
	Collector *metrics.Collector
	Listener  *bufconn.Listener
}

// SetupE2ETest builds the stack on an in-memory SQLite database.
// With E2E_DB_DRIVER=postgres it uses the test PostgreSQL database instead.
func SetupE2ETest(t *testing.T) *E2ETestServer {
	t.Helper()

	e := &E2ETestServer{Driver: config.DriverSQLite}
	var attributes repositories.AttributeRepository

	if os.Getenv("E2E_DB_DRIVER") == config.DriverPostgres {
		e.Driver = config.DriverPostgres
		db := openPostgres(t)
		e.DB = db
		attributes = postgres.NewPostgresAttributeRepository(db)
		e.Sharing = postgres.NewPostgresSharingRepository(db)
	} else {
		store, err := database.NewSQLite(":memory:")
		if err != nil {
			t.Fatalf("failed to open sqlite: %v", err)
		}
		e.DB = store.DB
		attributes = sqlite.NewAttributeRepository(store.DB)
		e.Sharing = sqlite.NewSharingRepository(store.DB)
	}

	logger := zaptest.NewLogger(t)

	e.Scopes = memorycache.New(&memorycache.Config{
		MaxSizeBytes:  1024 * 1024,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	}, tenancy.ScopeSize)
	e.Resolver = tenancy.NewResolver(e.Sharing, e.Scopes, time.Minute, logger)

	e.Collector = metrics.NewCollector()
	e.Collector.SetCache(e.Scopes)

	filters, err := filter.NewEngine()
	if err != nil {
		t.Fatalf("failed to create filter engine: %v", err)
	}
	service := services.NewAttributeService(attributes, e.Resolver, filters, logger)

	e.Listener = bufconn.Listen(bufSize)
	e.Server = grpc.NewServer(
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(e.Collector, nil)),
	)
	handlers.RegisterAttributeServiceServer(e.Server, handlers.NewAttributeHandler(service, 1))

	go func() {
		if err := e.Server.Serve(e.Listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	e.Conn, err = grpc.NewClient(
		"passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return e.Listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		e.Teardown(t)
		t.Fatalf("failed to create client connection: %v", err)
	}
	e.Client = client.New(e.Conn)

	return e
}

// Teardown stops the server and releases the database
func (e *E2ETestServer) Teardown(t *testing.T) {
	t.Helper()

	if e.Conn != nil {
		e.Conn.Close()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
	if e.Listener != nil {
		e.Listener.Close()
	}
	if e.Scopes != nil {
		e.Scopes.Close()
	}
	if e.DB != nil {
		if e.Driver == config.DriverPostgres {
			cleanupDatabase(t, e.DB)
		}
		e.DB.Close()
	}
}

// AddCombination records a child product using attrID, owned by entity
func (e *E2ETestServer) AddCombination(t *testing.T, entity, attrID int64) {
	t.Helper()

	ctx := context.Background()
	var combID int64
	if e.Driver == config.DriverPostgres {
		err := e.DB.QueryRowContext(ctx, `
			INSERT INTO product_attribute_combination (fk_product_parent, fk_product_child, entity)
			VALUES (1, 2, $1) RETURNING id
		`, entity).Scan(&combID)
		if err != nil {
			t.Fatalf("failed to insert combination: %v", err)
		}
		if _, err := e.DB.ExecContext(ctx, `
			INSERT INTO product_attribute_combination2val (fk_prod_combination, fk_prod_attr, fk_prod_attr_val)
			VALUES ($1, $2, 1)
		`, combID, attrID); err != nil {
			t.Fatalf("failed to insert combination value: %v", err)
		}
		return
	}

	res, err := e.DB.ExecContext(ctx, `
		INSERT INTO product_attribute_combination (fk_product_parent, fk_product_child, entity)
		VALUES (1, 2, ?)
	`, entity)
	if err != nil {
		t.Fatalf("failed to insert combination: %v", err)
	}
	if combID, err = res.LastInsertId(); err != nil {
		t.Fatalf("failed to read combination id: %v", err)
	}
	if _, err := e.DB.ExecContext(ctx, `
		INSERT INTO product_attribute_combination2val (fk_prod_combination, fk_prod_attr, fk_prod_attr_val)
		VALUES (?, ?, 1)
	`, combID, attrID); err != nil {
		t.Fatalf("failed to insert combination value: %v", err)
	}
}

func openPostgres(t *testing.T) *sql.DB {
	t.Helper()

	if err := config.InitConfig("test"); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Skipf("postgres config unavailable: %v", err)
	}
	cfg.Database.Driver = config.DriverPostgres

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("failed to find project root: %v", err)
	}
	if err := pg.RunMigrations(filepath.Join(projectRoot, "internal/infrastructure/database/migrations/postgres")); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanupDatabase(t, pg.DB)
	return pg.DB
}

// cleanupDatabase removes all rows from the attribute tables
func cleanupDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tables := []string{"product_attribute_combination2val", "product_attribute_combination", "product_attribute", "entity_sharing"}
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("warning: failed to clean up table %s: %v", table, err)
		}
	}
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("project root not found")
		}
		dir = parent
	}
}
