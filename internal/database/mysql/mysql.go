// Package mysql registers MySQL (go-sql-driver/mysql) under
// database.DriverMySQL. Config.Path is a go-sql-driver DSN, e.g.
// "user:pass@tcp(localhost:3306)/mydb". Multi-statement text is always
// enabled so Execute behaves like on the other engines.
package mysql

import (
	"context"
	"database/sql"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/sqlguard/internal/database"
	"github.com/koustreak/sqlguard/internal/errs"
)

type engine struct{}

func init() {
	database.Register(engine{})
}

func (engine) Driver() database.Driver { return database.DriverMySQL }

func (engine) OpenDB(cfg *database.Config) (*sql.DB, error) {
	mcfg, err := gomysql.ParseDSN(cfg.Path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid DSN", err)
	}
	mcfg.MultiStatements = true
	if cfg.ConnectTimeout > 0 {
		mcfg.Timeout = cfg.ConnectTimeout
	}

	connector, err := gomysql.NewConnector(mcfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid DSN", err)
	}
	return sql.OpenDB(connector), nil
}

// BeginStatement uses START TRANSACTION; MySQL has no BEGIN TRANSACTION form.
func (engine) BeginStatement() string { return "START TRANSACTION" }

func (engine) MapError(err error, msg string) *errs.Error { return mapError(err, msg) }

// Open connects to the server at dsn.
func Open(ctx context.Context, dsn string, opts ...database.Option) (*database.Connection, error) {
	cfg := database.DefaultConfig(dsn)
	cfg.Driver = database.DriverMySQL
	return database.Open(ctx, cfg, opts...)
}
