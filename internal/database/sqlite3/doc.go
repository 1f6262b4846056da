// Package sqlite3 registers the cgo SQLite engine (mattn/go-sqlite3) under
// database.DriverSQLite3. Without cgo the package is empty and the driver
// stays unregistered.
package sqlite3
