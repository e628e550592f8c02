package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

const (
	// URIScheme is the custom URI scheme for ledgersync resources.
	uriScheme = "ledgersync://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sync/latest",
		Name:        "latest-sync",
		Description: "Last write time per module in the local cache",
		MIMEType:    "application/json",
	}, s.handleLatestResource)

	if s.ports.recordsEnabled() {
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "records/{module}/{id}",
			Name:        "record",
			Description: "A cached transaction by module and source id",
			MIMEType:    "application/json",
		}, s.handleRecordResource)
	}
}

// handleLatestResource returns the last sync time per module.
func (s *Server) handleLatestResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	latest, err := s.ports.Historical.LatestSyncTimestamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading sync timestamps: %w", err)
	}

	data, err := json.MarshalIndent(latest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling timestamps: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleRecordResource returns a cached record.
func (s *Server) handleRecordResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	module, id := extractRecordRef(req.Params.URI)
	if module == "" || id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	desc, err := s.ports.Modules.Lookup(module)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rec, err := s.ports.Cache(desc).GetByID(ctx, id, nil, driving.GetOptions{})
	if rec == nil {
		if err != nil {
			return nil, fmt.Errorf("reading %s %s: %w", module, id, err)
		}
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling record: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractRecordRef extracts module and id from a URI like ledgersync://records/{module}/{id}.
func extractRecordRef(uri string) (module, id string) {
	const prefix = uriScheme + "records/"

	if !strings.HasPrefix(uri, prefix) {
		return "", ""
	}

	module, id, ok := strings.Cut(strings.TrimPrefix(uri, prefix), "/")
	if !ok || strings.Contains(id, "/") {
		return "", ""
	}
	return module, id
}
