// Package domain defines the core business entities for ledgersync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Record: A source payload or storage row keyed by field name
//   - Principal: The identity a sync runs under
//   - SyncWindow: The trailing date range a historical sync covers
//   - SyncResult / HistoricalSyncResult: Outcomes reported to callers
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
