//go:build cgo

package sqlite3

import (
	"context"
	"database/sql"

	"github.com/koustreak/sqlguard/internal/database"
	"github.com/koustreak/sqlguard/internal/database/sqlitetext"
	"github.com/koustreak/sqlguard/internal/errs"

	_ "github.com/mattn/go-sqlite3" // register "sqlite3" driver
)

const driverName = "sqlite3"

type engine struct{}

func init() {
	database.Register(engine{})
}

func (engine) Driver() database.Driver { return database.DriverSQLite3 }

func (engine) OpenDB(cfg *database.Config) (*sql.DB, error) {
	return sql.Open(driverName, cfg.Path)
}

func (engine) BeginStatement() string { return "BEGIN TRANSACTION" }

func (engine) MapError(err error, msg string) *errs.Error { return mapError(err, msg) }

func (engine) FormatValue(v any, declType string) string { return sqlitetext.Format(v, declType) }

func (engine) CountersQuery() string { return "SELECT changes(), last_insert_rowid()" }

// Open opens path (a file or database.MemoryPath) on the cgo engine.
func Open(ctx context.Context, path string, opts ...database.Option) (*database.Connection, error) {
	cfg := database.DefaultConfig(path)
	cfg.Driver = database.DriverSQLite3
	return database.Open(ctx, cfg, opts...)
}
