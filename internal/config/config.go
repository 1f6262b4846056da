// Package config loads the YAML configuration of a sqlguard program.
//
// Example:
//
//	database:
//	  driver: sqlite
//	  path: /var/lib/app/app.db
//	  connect_timeout: 5s
//	  init:
//	    - PRAGMA foreign_keys = ON
//	log:
//	  level: debug
//	  format: console
//	snapshot:
//	  store:
//	    endpoint: localhost:9000
//	    access_key: minioadmin
//	    secret_key: minioadmin
//	  bucket: backups
//	  prefix: app/
//	  keep: 7
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/sqlguard/internal/database"
	"github.com/koustreak/sqlguard/internal/errs"
	"github.com/koustreak/sqlguard/internal/filestore"
	"github.com/koustreak/sqlguard/internal/logger"
	"github.com/koustreak/sqlguard/internal/snapshot"
)

// Config is the root of the configuration document.
type Config struct {
	Database database.Config `yaml:"database"`
	Log      logger.Config   `yaml:"log"`

	// Snapshot is nil when snapshots are not configured.
	Snapshot *SnapshotConfig `yaml:"snapshot" validate:"omitempty"`
}

// SnapshotConfig pairs the object store with the snapshot location in it.
type SnapshotConfig struct {
	Store           filestore.Config `yaml:"store"`
	snapshot.Config `yaml:",inline"`
}

// use a single instance of Validate, it caches struct info
var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a Config with every default applied and no database path.
func Default() *Config {
	log := logger.DefaultConfig()
	log.Output = nil
	return &Config{
		Database: *database.DefaultConfig(""),
		Log:      *log,
	}
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "config file not found: "+path, err)
		}
		return nil, errs.Wrap(errs.ErrKindPermissionDenied, "failed to read config file: "+path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills fields a document may have blanked explicitly.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverSQLite
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Snapshot != nil && c.Snapshot.Store.Provider == "" {
		c.Snapshot.Store.Provider = filestore.ProviderMinIO
	}
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid config", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		msgs = append(msgs, fmt.Sprintf("%s failed validation on '%s'", field, fe.Tag()))
	}
	return errs.New(errs.ErrKindInvalidInput, "invalid config: "+strings.Join(msgs, "; "))
}
