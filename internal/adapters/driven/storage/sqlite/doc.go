// Package sqlite provides the SQLite implementation of the driven storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database backs two ports:
//
//   - Store: entity tables (sales_orders, invoices, purchase_orders, bills) and line_items
//   - SchedulerStore: scheduled task state and run history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Record keys with no matching column are dropped on write.
//
// # Data Location
//
// By default, the database is stored at ~/.ledgersync/data/ledgersync.db
//
// # Thread Safety
//
// All operations are thread-safe. Writes are serialised on a single
// connection and the database runs in WAL mode.
package sqlite
