package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "etl_ventas", cfg.Database.Name)
	assert.Equal(t, 500, cfg.Load.ChunkSize)
	assert.Equal(t, 4, cfg.Load.Workers)
	assert.Equal(t, 3, cfg.Load.MaxAttempts)
	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Equal(t, "0 3 * * *", cfg.Retention.Cron)
	assert.Equal(t, 30*time.Second, cfg.Database.StoreTimeout())
	assert.Equal(t, time.Second, cfg.Load.InitialDelay())
	assert.Equal(t, 30*time.Second, cfg.Load.MaxDelay())
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite3
  name: local.db
source:
  path: input/sales.csv
load:
  chunkSize: 250
  workers: 8
retention:
  days: 30
`), 0o644))
	t.Setenv("SALES_ETL_CONFIG", path)

	cfg := Load()
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "local.db", cfg.Database.Name)
	assert.Equal(t, "input/sales.csv", cfg.Source.Path)
	assert.Equal(t, 250, cfg.Load.ChunkSize)
	assert.Equal(t, 8, cfg.Load.Workers)
	assert.Equal(t, 30, cfg.Retention.Days)
	// Fields the file omits keep their defaults.
	assert.Equal(t, 3, cfg.Load.MaxAttempts)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MYSQL_HOST", "db.internal")
	t.Setenv("MYSQL_PORT", "3307")
	t.Setenv("MYSQL_USER", "pipeline")
	t.Setenv("MYSQL_DATABASE", "ventas_prod")
	t.Setenv("SALES_ETL_SOURCE", "/srv/drops/today.csv")

	cfg := Load()
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "pipeline", cfg.Database.User)
	assert.Equal(t, "ventas_prod", cfg.Database.Name)
	assert.Equal(t, "/srv/drops/today.csv", cfg.Source.Path)
}

func TestLoadBadFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))
	t.Setenv("SALES_ETL_CONFIG", path)

	cfg := Load()
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 500, cfg.Load.ChunkSize)
}

func TestNormalizeRepairsBadValues(t *testing.T) {
	cfg := Config{Load: LoadConfig{ChunkSize: -1, Workers: 0, MaxAttempts: -5}}
	cfg.normalize()
	assert.Equal(t, 500, cfg.Load.ChunkSize)
	assert.Equal(t, 4, cfg.Load.Workers)
	assert.Equal(t, 3, cfg.Load.MaxAttempts)
	assert.Equal(t, 90, cfg.Retention.Days)
}
