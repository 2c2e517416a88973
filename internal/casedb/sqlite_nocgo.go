//go:build !cgo
// +build !cgo

package casedb

import (
	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

// modernc.org/sqlite DSN syntax for the same settings as the cgo driver:
// WAL journal mode, foreign keys off, and mattn's default 5000ms busy
// timeout, which modernc does not apply on its own.
const sqliteDSNParams = "?_pragma=journal_mode(wal)&_pragma=foreign_keys(0)&_pragma=busy_timeout(5000)"
