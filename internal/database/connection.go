package database

import (
	"context"
	"database/sql"
	"errors"
	"iter"

	"github.com/koustreak/sqlguard/internal/errs"
	"github.com/koustreak/sqlguard/internal/logger"
)

const (
	errTextNotOpen     = "database not open"
	errTextOutOfMemory = "out of memory"
)

// handle is the exclusively owned engine handle: one dedicated connection
// taken from a *sql.DB that never opens a second one.
type handle struct {
	db   *sql.DB
	conn *sql.Conn
}

func (h *handle) close() error {
	return errors.Join(h.conn.Close(), h.db.Close())
}

// Connection owns one engine handle and runs statements on it.
//
// Operational failures never return errors: Execute and QueryWithCallback
// report false, Query reports no rows, and the cause is available from
// LastError. Only Open fails with an error.
//
// A Connection is not safe for concurrent use. Ownership moves with Move and
// Assign; never copy the struct.
type Connection struct {
	h      *handle
	path   string
	engine Engine
	log    *logger.Logger

	lastErr      error
	changes      int64
	lastInsertID int64
}

// Option configures a Connection at Open time.
type Option func(*Connection)

// WithLogger sets the logger used for statement failures and lifecycle
// events. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.log = l
		}
	}
}

// Open opens the engine selected by cfg.Driver on cfg.Path.
// On failure nothing stays allocated and the error is an *errs.Error.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Connection, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "database config is nil")
	}

	engine, ok := lookupEngine(cfg.driver())
	if !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, "unknown database driver: "+string(cfg.driver()))
	}

	c := &Connection{
		path:   cfg.Path,
		engine: engine,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	db, err := engine.OpenDB(cfg)
	if err != nil {
		return nil, openError(engine, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	openCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout())
	defer cancel()

	conn, err := db.Conn(openCtx)
	if err == nil {
		err = conn.PingContext(openCtx)
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, openError(engine, err)
	}
	c.h = &handle{db: db, conn: conn}

	for _, stmt := range cfg.Init {
		if !c.Execute(ctx, stmt) {
			cause := c.lastErr
			_ = c.Close()
			return nil, openError(engine, cause)
		}
	}

	c.log.DebugWith("database opened", map[string]any{
		"driver": string(engine.Driver()),
		"path":   c.path,
	})
	return c, nil
}

func openError(engine Engine, err error) *errs.Error {
	text := errTextOutOfMemory
	if err != nil && err.Error() != "" {
		text = err.Error()
	}
	mapped := engine.MapError(err, "failed to open database: "+text)
	if mapped == nil {
		return errs.New(errs.ErrKindConnectionFailed, "failed to open database: "+text)
	}
	if mapped.Kind != errs.ErrKindInvalidInput {
		mapped.Kind = errs.ErrKindConnectionFailed
	}
	return mapped
}

// IsOpen reports whether the connection still owns an engine handle.
func (c *Connection) IsOpen() bool {
	return c.h != nil
}

// Path returns the path or DSN the connection was opened with.
func (c *Connection) Path() string {
	return c.path
}

// Driver returns the engine the connection was opened with.
func (c *Connection) Driver() Driver {
	if c.engine == nil {
		return ""
	}
	return c.engine.Driver()
}

// Execute runs sql, which may hold several statements, discarding any rows.
// It reports whether every statement succeeded.
func (c *Connection) Execute(ctx context.Context, sql string) bool {
	if c.h == nil {
		return false
	}

	res, err := c.h.conn.ExecContext(ctx, sql)
	if err != nil {
		c.fail(err, "SQL error", sql)
		return false
	}
	c.lastErr = nil

	if n, err := res.RowsAffected(); err == nil {
		c.changes = n
	}
	if id, err := res.LastInsertId(); err == nil {
		c.lastInsertID = id
	}
	return true
}

// Query runs sql and returns every row it produces. The result is never nil.
// It is empty both when nothing matched and when the query failed; use
// QueryWithCallback or LastError to tell those apart.
func (c *Connection) Query(ctx context.Context, sql string) []Row {
	results := make([]Row, 0)
	c.QueryWithCallback(ctx, sql, func(row Row) bool {
		results = append(results, row)
		return true
	})
	return results
}

// QueryWithCallback prepares sql once and calls visit for each row in the
// engine's result order until the rows run out or visit returns false.
// It reports false only if the statement could not be prepared or stepping
// failed. The statement is released before QueryWithCallback returns.
func (c *Connection) QueryWithCallback(ctx context.Context, sql string, visit Visitor) bool {
	if c.h == nil {
		return false
	}

	rows, err := c.h.conn.QueryContext(ctx, sql)
	if err != nil {
		c.fail(err, "failed to prepare statement", sql)
		return false
	}

	ok := c.visitRows(rows, sql, visit)
	c.readCounters(ctx)
	if ok {
		c.lastErr = nil
	}
	return ok
}

// visitRows steps rows into visit and closes them.
func (c *Connection) visitRows(rows *sql.Rows, sql string, visit Visitor) bool {
	defer rows.Close()

	scanner, err := newRowScanner(rows, c.engine)
	if err != nil {
		c.fail(err, "failed to read columns", sql)
		return false
	}

	for rows.Next() {
		row, err := scanner.scan(rows)
		if err != nil {
			c.fail(err, "failed to read row", sql)
			return false
		}
		if !visit(row) {
			break
		}
	}

	if err := rows.Err(); err != nil {
		c.fail(err, "query execution failed", sql)
		return false
	}
	if err := rows.Close(); err != nil {
		c.fail(err, "query execution failed", sql)
		return false
	}
	return true
}

// readCounters refreshes Changes and LastInsertRowID from the engine, so
// DML run through a query (INSERT ... RETURNING) is reflected in them.
func (c *Connection) readCounters(ctx context.Context) {
	cc, ok := c.engine.(ChangeCounter)
	if !ok {
		return
	}

	var changes, lastID int64
	if err := c.h.conn.QueryRowContext(ctx, cc.CountersQuery()).Scan(&changes, &lastID); err != nil {
		c.log.DebugWith("failed to read change counters", map[string]any{"error": err.Error()})
		return
	}
	c.changes = changes
	c.lastInsertID = lastID
}

// All is QueryWithCallback as a range-over-func sequence:
//
//	for row := range conn.All(ctx, "SELECT id, name FROM users") {
//		if row[0] == "42" {
//			break
//		}
//	}
//
// Breaking out of the loop stops the query. A failure ends the sequence
// early and is reported by LastError.
func (c *Connection) All(ctx context.Context, sql string) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		c.QueryWithCallback(ctx, sql, Visitor(yield))
	}
}

// LastError returns the engine's error text for the most recent operation,
// "" if it succeeded, or "database not open" once the connection is closed.
func (c *Connection) LastError() string {
	if c.h == nil {
		return errTextNotOpen
	}
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Error()
}

// Err is LastError as a classified *errs.Error, or nil after a success.
func (c *Connection) Err() error {
	if c.h == nil {
		return errs.New(errs.ErrKindConnectionFailed, errTextNotOpen)
	}
	if c.lastErr == nil {
		return nil
	}
	return c.engine.MapError(c.lastErr, "statement failed")
}

// Changes returns the rows affected by the most recent INSERT, UPDATE or
// DELETE, as reported by the engine. 0 when closed.
func (c *Connection) Changes() int64 {
	if c.h == nil {
		return 0
	}
	return c.changes
}

// LastInsertRowID returns the id of the most recent insert, or 0 when closed
// or when nothing was inserted yet. Engines without insert ids leave it at 0.
func (c *Connection) LastInsertRowID() int64 {
	if c.h == nil {
		return 0
	}
	return c.lastInsertID
}

// BeginTransaction issues the engine's begin statement (BEGIN TRANSACTION on
// SQLite, START TRANSACTION on MySQL) and reports whether it succeeded.
func (c *Connection) BeginTransaction(ctx context.Context) bool {
	if c.engine == nil {
		return false
	}
	return c.Execute(ctx, c.engine.BeginStatement())
}

// CommitTransaction issues COMMIT.
func (c *Connection) CommitTransaction(ctx context.Context) bool {
	return c.Execute(ctx, "COMMIT")
}

// RollbackTransaction issues ROLLBACK.
func (c *Connection) RollbackTransaction(ctx context.Context) bool {
	return c.Execute(ctx, "ROLLBACK")
}

// Close releases the engine handle. It is safe to call more than once.
func (c *Connection) Close() error {
	if c.h == nil {
		return nil
	}
	h := c.h
	c.h = nil
	c.lastErr = nil
	c.changes = 0
	c.lastInsertID = 0

	if err := h.close(); err != nil {
		c.log.WarnWith("error closing database", err, map[string]any{"path": c.path})
		return errs.Wrap(errs.ErrKindConnectionFailed, "failed to close database", err)
	}
	c.log.DebugWith("database closed", map[string]any{"path": c.path})
	return nil
}

// Move transfers the handle and its state to a new Connection.
// Afterwards c reports closed and the returned Connection behaves exactly as
// c did.
func (c *Connection) Move() *Connection {
	moved := &Connection{}
	moved.take(c)
	return moved
}

// Assign closes c's own handle, then takes over src's handle and state,
// leaving src closed. Assigning a connection to itself does nothing.
func (c *Connection) Assign(src *Connection) {
	if c == src || src == nil {
		return
	}
	_ = c.Close()
	c.take(src)
}

func (c *Connection) take(src *Connection) {
	c.h = src.h
	c.path = src.path
	c.engine = src.engine
	c.log = src.log
	c.lastErr = src.lastErr
	c.changes = src.changes
	c.lastInsertID = src.lastInsertID
	if c.log == nil {
		c.log = logger.Nop()
	}

	src.h = nil
	src.path = ""
	src.lastErr = nil
	src.changes = 0
	src.lastInsertID = 0
}

func (c *Connection) fail(err error, msg, sql string) {
	c.lastErr = err
	c.log.ErrorWith(msg, err, map[string]any{
		"driver": string(c.engine.Driver()),
		"sql":    sql,
	})
}
