package database

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/koustreak/sqlguard/internal/errs"
)

// Engine adapts one SQL engine to Connection. Engine packages register
// themselves from init, so importing one is enough to make its Driver usable:
//
//	import _ "github.com/koustreak/sqlguard/internal/database/sqlite"
type Engine interface {
	// Driver is the name the engine is registered under.
	Driver() Driver

	// OpenDB returns an unconnected *sql.DB for cfg. No handle is acquired yet.
	OpenDB(cfg *Config) (*sql.DB, error)

	// BeginStatement is the SQL that starts a transaction on this engine.
	BeginStatement() string

	// MapError translates a native engine error into *errs.Error.
	MapError(err error, msg string) *errs.Error
}

// ValueFormatter is implemented by engines whose drivers decode column
// values into Go types. FormatValue renders v, read from a column declared
// as declType, as the engine's own text. Without it values are rendered
// with the database/sql string conversions.
type ValueFormatter interface {
	FormatValue(v any, declType string) string
}

// ChangeCounter is implemented by engines that keep their change counters
// on the connection. CountersQuery returns one row: rows changed by the
// most recent INSERT, UPDATE or DELETE, then the last inserted row id.
// The query must not disturb either counter.
type ChangeCounter interface {
	CountersQuery() string
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[Driver]Engine)
)

// Register makes an engine available to Open. It panics if called twice for
// the same driver, like database/sql.Register.
func Register(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()

	if e == nil {
		panic("database: Register engine is nil")
	}
	if _, dup := engines[e.Driver()]; dup {
		panic(fmt.Sprintf("database: Register called twice for driver %q", e.Driver()))
	}
	engines[e.Driver()] = e
}

// Drivers returns the sorted names of the registered engines.
func Drivers() []Driver {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	list := make([]Driver, 0, len(engines))
	for d := range engines {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func lookupEngine(d Driver) (Engine, bool) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, ok := engines[d]
	return e, ok
}
