package mcp

import (
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the MCP server.
type Ports struct {
	// Historical runs and controls historical syncs.
	Historical driving.HistoricalSync

	// Modules resolves module names for record lookups.
	Modules driven.ModuleRegistry

	// Cache builds a cache repository for a module.
	Cache func(desc driven.EntityDescriptor) driving.CacheRepository
}

// Validate ensures all required ports are set.
// Modules and Cache are optional; without them record lookups are disabled.
func (p *Ports) Validate() error {
	if p.Historical == nil {
		return ErrMissingHistoricalSync
	}
	return nil
}

func (p *Ports) recordsEnabled() bool {
	return p.Modules != nil && p.Cache != nil
}
