package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

// SyncInput is the input schema for the sync tool.
type SyncInput struct {
	WindowDays int      `json:"window_days,omitempty" jsonschema:"number of trailing days to sync (default 30)"`
	Modules    []string `json:"modules,omitempty" jsonschema:"modules to sync: salesorders, invoices, purchaseorders, bills (default all)"`
}

// SyncOutput is the output schema for the sync tool.
type SyncOutput struct {
	WindowStart string         `json:"window_start"`
	WindowEnd   string         `json:"window_end"`
	Synced      map[string]int `json:"synced"`
	Total       int            `json:"total"`
	Stopped     bool           `json:"stopped"`
	Errors      []string       `json:"errors,omitempty"`
}

// StopOutput is the output schema for the stop tool.
type StopOutput struct {
	Accepted bool `json:"accepted"`
}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	Running     bool   `json:"running"`
	Module      string `json:"module,omitempty"`
	Page        int    `json:"page,omitempty"`
	RecordIndex int    `json:"record_index,omitempty"`
	StopPending bool   `json:"stop_pending,omitempty"`
}

// GetRecordInput is the input schema for the record lookup tool.
type GetRecordInput struct {
	Module string `json:"module" jsonschema:"module name, e.g. invoices"`
	ID     string `json:"id" jsonschema:"source id of the transaction"`
	Force  bool   `json:"force,omitempty" jsonschema:"bypass the local cache"`
}

// GetRecordOutput is the output schema for the record lookup tool.
type GetRecordOutput struct {
	Found  bool           `json:"found"`
	Record map[string]any `json:"record,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_recent_transactions",
		Description: "Sync transactions from the last N days into the local cache",
	}, s.handleSync)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stop_sync",
		Description: "Request the running historical sync to stop after the current record",
	}, s.handleStop)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Report progress of the running historical sync",
	}, s.handleStatus)

	if s.ports.recordsEnabled() {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "get_record",
			Description: "Look up a transaction by source id, fetching it from Zoho on a cache miss",
		}, s.handleGetRecord)
	}
}

// handleSync handles the sync tool invocation.
func (s *Server) handleSync(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SyncInput,
) (*mcp.CallToolResult, SyncOutput, error) {
	windowDays := input.WindowDays
	if windowDays <= 0 {
		windowDays = domain.DefaultSettings().Sync.WindowDays
	}

	result, err := s.ports.Historical.SyncRecentTransactions(ctx, windowDays, input.Modules, nil)
	if err != nil {
		return nil, SyncOutput{}, err
	}

	output := SyncOutput{
		WindowStart: result.Window.StartDate(),
		WindowEnd:   result.Window.EndDate(),
		Synced:      result.Synced,
		Total:       result.Total(),
		Stopped:     result.Stopped,
	}
	for _, e := range result.Errors {
		output.Errors = append(output.Errors, e.Error())
	}
	return nil, output, nil
}

// handleStop handles the stop tool invocation.
func (s *Server) handleStop(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, StopOutput, error) {
	return nil, StopOutput{Accepted: s.ports.Historical.RequestStop(nil)}, nil
}

// handleStatus handles the status tool invocation.
func (s *Server) handleStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, StatusOutput, error) {
	status, ok := s.ports.Historical.Status(nil)
	if !ok {
		return nil, StatusOutput{}, nil
	}
	return nil, StatusOutput{
		Running:     true,
		Module:      status.Module,
		Page:        status.Page,
		RecordIndex: status.RecordIndex,
		StopPending: status.StopPending,
	}, nil
}

// handleGetRecord handles the record lookup tool invocation.
func (s *Server) handleGetRecord(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetRecordInput,
) (*mcp.CallToolResult, GetRecordOutput, error) {
	desc, err := s.ports.Modules.Lookup(input.Module)
	if err != nil {
		return nil, GetRecordOutput{}, err
	}
	if input.ID == "" {
		return nil, GetRecordOutput{}, fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}

	rec, err := s.ports.Cache(desc).GetByID(ctx, input.ID, nil, driving.GetOptions{ForceRefresh: input.Force})
	if rec == nil {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, GetRecordOutput{}, err
		}
		return nil, GetRecordOutput{Found: false}, nil
	}
	return nil, GetRecordOutput{Found: true, Record: map[string]any(rec)}, nil
}
