package app_test

import (
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"orion/internal/app"
	"orion/internal/config"
	"orion/internal/testutils"
)

func TestBootstrap_Resilience_DBDown(t *testing.T) {
	cfg := &config.Config{
		DBHost:                     "localhost",
		DBPort:                     54322, // unroutable: nothing should be listening
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "test",
		BootstrapRetryAttempts:     1,
		BootstrapRetryDelaySeconds: 0,
	}

	start := time.Now()
	db, err := app.Bootstrap(cfg)
	duration := time.Since(start)

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping db")
	// attempts=1, delay=0: should fail fast, not hang on retry backoff.
	assert.Less(t, duration, 2*time.Second)
}

// TestBootstrap_Resilience_BadMigrationPath isolates the second half
// of Bootstrap: a reachable database but a migration source that
// cannot be found should surface a migration error, not silently
// succeed with the schema left unmigrated.
func TestBootstrap_Resilience_BadMigrationPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	cfg := suite.GetAppConfig()

	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(b)
	cfg.MigrationPath = fmt.Sprintf("file://%s/does-not-exist", basepath)
	cfg.BootstrapRetryAttempts = 1
	cfg.BootstrapRetryDelaySeconds = 0

	db, err := app.Bootstrap(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
}
