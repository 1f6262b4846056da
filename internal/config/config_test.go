package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlguard/internal/config"
	"github.com/koustreak/sqlguard/internal/database"
	"github.com/koustreak/sqlguard/internal/errs"
	"github.com/koustreak/sqlguard/internal/filestore"
)

const full = `
database:
  driver: sqlite
  path: /var/lib/app/app.db
  connect_timeout: 5s
  init:
    - PRAGMA foreign_keys = ON
    - PRAGMA journal_mode = WAL
log:
  level: debug
  format: console
snapshot:
  store:
    endpoint: localhost:9000
    access_key: minioadmin
    secret_key: minioadmin
  bucket: backups
  prefix: app/
  keep: 7
`

func TestParse_Full(t *testing.T) {
	cfg, err := config.Parse([]byte(full))
	require.NoError(t, err)

	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/var/lib/app/app.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"}, cfg.Database.Init)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "rfc3339", cfg.Log.TimeFormat, "unset keys keep their default")

	require.NotNil(t, cfg.Snapshot)
	assert.Equal(t, filestore.ProviderMinIO, cfg.Snapshot.Store.Provider)
	assert.Equal(t, "localhost:9000", cfg.Snapshot.Store.Endpoint)
	assert.Equal(t, "backups", cfg.Snapshot.Bucket)
	assert.Equal(t, "app/", cfg.Snapshot.Prefix)
	assert.Equal(t, 7, cfg.Snapshot.Keep)
}

func TestParse_Minimal(t *testing.T) {
	cfg, err := config.Parse([]byte("database:\n  path: ':memory:'\n"))
	require.NoError(t, err)

	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, database.MemoryPath, cfg.Database.Path)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Nil(t, cfg.Snapshot)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty document", "", "Database.Path failed validation on 'required'"},
		{"unknown driver", "database:\n  driver: oracle\n  path: x\n", "Database.Driver failed validation on 'oneof'"},
		{"negative timeout", "database:\n  path: x\n  connect_timeout: -1s\n", "Database.ConnectTimeout failed validation on 'gte'"},
		{"bad log level", "database:\n  path: x\nlog:\n  level: loud\n", "Log.Level failed validation on 'oneof'"},
		{"snapshot without bucket", "database:\n  path: x\nsnapshot:\n  store:\n    endpoint: localhost:9000\n    access_key: a\n    secret_key: b\n", "Bucket failed validation on 'required'"},
		{"snapshot bad endpoint", "database:\n  path: x\nsnapshot:\n  bucket: b\n  store:\n    endpoint: not an endpoint\n    access_key: a\n    secret_key: b\n", "Endpoint failed validation on 'hostname_port'"},
		{"negative keep", "database:\n  path: x\nsnapshot:\n  bucket: b\n  keep: -1\n  store:\n    endpoint: localhost:9000\n    access_key: a\n    secret_key: b\n", "Keep failed validation on 'gte'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := config.Parse([]byte("database: [unclosed"))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "failed to parse config")

	_, err = config.Parse([]byte("database:\n  path: x\n  colour: blue\n"))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err), "unknown keys are rejected")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(full), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/app/app.db", cfg.Database.Path)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errs.IsNotFound(err))
}
