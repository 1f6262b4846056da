// Package schema reads table and column metadata through a
// database.Connection. Catalog queries are plain SQL text for the
// connection's engine: sqlite_master and the pragma table functions on
// SQLite, information_schema on PostgreSQL and MySQL.
package schema

import (
	"context"
	"strings"

	"github.com/koustreak/sqlguard/internal/database"
	"github.com/koustreak/sqlguard/internal/errs"
)

// dialect renders the catalog queries of one engine family. Every query it
// returns is fully literal.
//
// Result shapes:
//
//	listTables:  name
//	tableExists: a single truthy/falsy value
//	columns:     name, type, nullable, has_default, default, primary_key, unique
//	foreignKeys: name, from_table, from_column, to_table, to_column
type dialect interface {
	defaultSchema() string
	listTables(schema string) string
	tableExists(schema, table string) string
	columns(schema, table string) string
	foreignKeys(schema string) string
}

// Inspector introspects the schema reachable through one Connection.
type Inspector struct {
	conn    *database.Connection
	dialect dialect
	schema  string
}

// New returns an Inspector for conn. schema selects the namespace to
// inspect; empty means the engine default ("main" on SQLite, "public" on
// PostgreSQL, the current database on MySQL).
func New(conn *database.Connection, schema string) (*Inspector, error) {
	if conn == nil || !conn.IsOpen() {
		return nil, errs.New(errs.ErrKindConnectionFailed, "schema inspector needs an open connection")
	}

	var d dialect
	switch conn.Driver() {
	case database.DriverSQLite, database.DriverSQLite3:
		d = sqliteDialect{}
	case database.DriverPostgres:
		d = postgresDialect{}
	case database.DriverMySQL:
		d = mysqlDialect{}
	default:
		return nil, errs.New(errs.ErrKindInvalidInput, "no schema support for driver "+string(conn.Driver()))
	}

	if schema == "" {
		schema = d.defaultSchema()
	}
	return &Inspector{conn: conn, dialect: d, schema: schema}, nil
}

// Schema returns the namespace this Inspector reads.
func (i *Inspector) Schema() string {
	return i.schema
}

// ListTables returns all user-defined table names, sorted.
func (i *Inspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := i.query(ctx, i.dialect.listTables(i.schema), "list tables")
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, r[0])
	}
	return tables, nil
}

// TableExists checks whether a specific table exists
func (i *Inspector) TableExists(ctx context.Context, table string) (bool, error) {
	rows, err := i.query(ctx, i.dialect.tableExists(i.schema, table), "table exists check")
	if err != nil {
		return false, err
	}
	return len(rows) == 1 && truthy(rows[0][0]), nil
}

// InspectTable returns column details for a single table, in declaration
// order. A table without columns is reported as not found.
func (i *Inspector) InspectTable(ctx context.Context, table string) (*TableInfo, error) {
	rows, err := i.query(ctx, i.dialect.columns(i.schema, table), "inspect table "+table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.ErrKindNotFound,
			"table "+i.schema+"."+table+" not found or has no columns")
	}

	info := &TableInfo{Schema: i.schema, Name: table}
	for _, r := range rows {
		col := ColumnInfo{
			Name:         r[0],
			DataType:     r[1],
			IsNullable:   truthy(r[2]),
			IsPrimaryKey: truthy(r[5]),
			IsUnique:     truthy(r[6]),
		}
		if truthy(r[3]) {
			def := r[4]
			col.DefaultValue = &def
		}
		info.Columns = append(info.Columns, col)
	}
	return info, nil
}

// ListForeignKeys returns all FK relationships in the schema
func (i *Inspector) ListForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	rows, err := i.query(ctx, i.dialect.foreignKeys(i.schema), "list foreign keys")
	if err != nil {
		return nil, err
	}

	fks := make([]ForeignKey, 0, len(rows))
	for _, r := range rows {
		fks = append(fks, ForeignKey{
			Name:       r[0],
			FromTable:  r[1],
			FromColumn: r[2],
			ToTable:    r[3],
			ToColumn:   r[4],
		})
	}
	return fks, nil
}

// InspectSchema returns all tables and foreign keys in the schema.
// It runs one catalog query per table; callers should cache the result.
func (i *Inspector) InspectSchema(ctx context.Context) (*SchemaInfo, error) {
	tables, err := i.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	info := &SchemaInfo{}
	for _, table := range tables {
		ti, err := i.InspectTable(ctx, table)
		if err != nil {
			return nil, err
		}
		info.Tables = append(info.Tables, *ti)
	}

	fks, err := i.ListForeignKeys(ctx)
	if err != nil {
		return nil, err
	}
	info.ForeignKeys = fks
	return info, nil
}

// query collects the rows of q. Unlike Connection.Query it tells an empty
// result apart from a failure.
func (i *Inspector) query(ctx context.Context, q, what string) ([]database.Row, error) {
	var rows []database.Row
	ok := i.conn.QueryWithCallback(ctx, q, func(r database.Row) bool {
		rows = append(rows, r)
		return true
	})
	if !ok {
		cause := i.conn.Err()
		return nil, errs.Wrap(errs.KindOf(cause), what+": "+i.conn.LastError(), cause)
	}
	return rows, nil
}

// truthy reads a boolean column rendered as text. Engines disagree on the
// spelling: SQLite and MySQL yield 1/0, PostgreSQL true/false.
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes":
		return true
	default:
		return false
	}
}

func literal(s string) string {
	lit, _ := database.QuoteLiteral(s)
	return lit
}
