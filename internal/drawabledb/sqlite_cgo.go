//go:build cgo
// +build cgo

package drawabledb

import (
	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriver = "sqlite3"

// mattn/go-sqlite3 DSN syntax; the driver applies a 5000ms busy timeout by
// default.
const sqliteDSNParams = "?_journal_mode=WAL&_foreign_keys=off"
