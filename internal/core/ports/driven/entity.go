package driven

import "github.com/custodia-labs/ledgersync/internal/core/domain"

// EntityDescriptor describes one record type of the source system and how it
// maps onto a storage table. Descriptors are immutable and shared.
type EntityDescriptor interface {
	// TableName returns the storage table.
	TableName() string

	// SourceIDField returns the unique source identifier field, used in both
	// payloads and storage rows.
	SourceIDField() string

	// Service returns the source sub-system the endpoint belongs to.
	Service() domain.Service

	// Endpoint returns the base path for list and detail calls.
	Endpoint() string

	// Transform converts a source payload into a storage record.
	// Must be deterministic and side-effect free. Returns
	// *domain.TransformError on malformed input. parent is nil for
	// top-level entities.
	Transform(src domain.Record, parent *domain.ParentRef) (domain.Record, error)

	// Validate checks required fields before a write is attempted.
	Validate(rec domain.Record) domain.Validation

	// ExtractFromResponse normalises list and single-record response shapes
	// into a slice of source records.
	ExtractFromResponse(raw domain.Record) ([]domain.Record, error)

	// ConflictKeys returns the uniqueness key used for upserts.
	ConflictKeys() []string
}

// TransactionDescriptor is a parent transaction type that can be
// backfilled by date window and owns line items.
type TransactionDescriptor interface {
	EntityDescriptor

	// Module returns the module name used by callers, e.g. "invoices".
	Module() string

	// Kind returns the parent type stamped on line items, e.g. "invoice".
	Kind() string

	// DateField returns the transaction date field in list payloads.
	DateField() string

	// SortColumn returns the upstream sort column for newest-first paging.
	SortColumn() string

	// LineItemsKey returns the detail payload key holding line items.
	LineItemsKey() string

	// LineItems returns the descriptor for this transaction's line items.
	LineItems() EntityDescriptor
}
