// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration with LEDGERSYNC_* environment
//     overrides and a Watch method that reloads on file changes
package file
