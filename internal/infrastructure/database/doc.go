// Package database provides SQLite connectivity for the MDM core.
//
// This package manages:
//   - The database connection (WAL mode, busy timeout, foreign keys)
//   - Embedded, additive-only schema migrations
//   - Transaction helpers used by the device and command repositories
//
// Concurrency:
//
// The pool is pinned to a single connection and every transaction is
// opened with BEGIN IMMEDIATE (_txlock=immediate). Together these make each
// WithTx call a serialised read-modify-write, which is what the command
// queue relies on for at-most-once dispatch.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/mdm.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
