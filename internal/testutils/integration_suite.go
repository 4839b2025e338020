// Package testutils provides the shared Postgres + NSQ container
// harness used by the job ledger, bootstrap, end-to-end and smoke
// integration tests. The NSQ-backed task queue's tests do not use it.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"orion/internal/config"
)

type IntegrationSuite struct {
	T   *testing.T
	DB  *sql.DB
	NSQ *nsq.Producer

	// DB connection parameters of the running Postgres container, for
	// tests that need to dial it a second time (e.g. Bootstrap, which
	// opens its own connection from a Config rather than taking s.DB
	// directly).
	DBHost string
	DBPort int
	DBUser string
	DBPass string
	DBName string

	NSQDHost string

	pgContainer  *postgres.PostgresContainer
	nsqContainer testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orion_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(s.T, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.DBHost = pgHost
	s.DBPort = pgPort.Int()
	s.DBUser = "test"
	s.DBPass = "test"
	s.DBName = "orion_test"

	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(b)
	migrationPath := fmt.Sprintf("file://%s/../../migrations", basepath)

	m, err := migrate.New(migrationPath, connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())

	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	nsqHost, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	nsqPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)

	s.NSQDHost = fmt.Sprintf("%s:%s", nsqHost, nsqPort.Port())

	nsqCfg := nsq.NewConfig()
	s.NSQ, err = nsq.NewProducer(s.NSQDHost, nsqCfg)
	require.NoError(s.T, err)
}

// GetAppConfig returns a Config wired to this suite's running
// containers, with sane non-DB/NSQ defaults so a test only needs to
// override what it's actually exercising.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		DBHost:                     s.DBHost,
		DBPort:                     s.DBPort,
		DBUser:                     s.DBUser,
		DBPass:                     s.DBPass,
		DBName:                     s.DBName,
		ServerPort:                 0,
		BaseDir:                    "./data",
		MaxFileSize:                10 << 20,
		VectorStorageType:          "json",
		ChunkSize:                  512,
		ChunkOverlapPercent:        0.1,
		TokenizerName:              "cl100k_base",
		EmbeddingProvider:          "cohere",
		EmbeddingAPIKey:            "test-key",
		EmbeddingModel:             "embed-english-v3.0",
		EmbeddingBatchSize:         96,
		HybridAlpha:                0.7,
		PipelineTimeoutSeconds:     30,
		WorkerPoolSize:             1,
		TaskQueue:                  "inprocess",
		NSQLookupd:                 "",
		NSQDHost:                   s.NSQDHost,
		BootstrapRetryAttempts:     3,
		BootstrapRetryDelaySeconds: 1,
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}
