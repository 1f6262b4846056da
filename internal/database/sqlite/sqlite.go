// Package sqlite registers the pure-Go embedded SQLite engine
// (modernc.org/sqlite) under database.DriverSQLite.
//
// Usage:
//
//	conn, err := sqlite.Open(ctx, database.MemoryPath)
//	if err != nil { ... }
//	defer conn.Close()
package sqlite

import (
	"context"
	"database/sql"

	"github.com/koustreak/sqlguard/internal/database"
	"github.com/koustreak/sqlguard/internal/database/sqlitetext"
	"github.com/koustreak/sqlguard/internal/errs"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

const driverName = "sqlite"

type engine struct{}

func init() {
	database.Register(engine{})
}

func (engine) Driver() database.Driver { return database.DriverSQLite }

func (engine) OpenDB(cfg *database.Config) (*sql.DB, error) {
	return sql.Open(driverName, cfg.Path)
}

func (engine) BeginStatement() string { return "BEGIN TRANSACTION" }

func (engine) MapError(err error, msg string) *errs.Error { return mapError(err, msg) }

func (engine) FormatValue(v any, declType string) string { return sqlitetext.Format(v, declType) }

func (engine) CountersQuery() string { return "SELECT changes(), last_insert_rowid()" }

// Open opens path (a file or database.MemoryPath) with default settings.
func Open(ctx context.Context, path string, opts ...database.Option) (*database.Connection, error) {
	return database.Open(ctx, database.DefaultConfig(path), opts...)
}
