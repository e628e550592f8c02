// Package mcp provides an MCP (Model Context Protocol) server adapter for ledgersync.
// It lets AI assistants start and stop historical syncs, inspect progress and
// read cached transactions.
package mcp

import "errors"

// ErrMissingHistoricalSync is returned when the historical sync service is not provided.
var ErrMissingHistoricalSync = errors.New("mcp: historical sync service is required")
