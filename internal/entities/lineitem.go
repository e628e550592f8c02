package entities

import (
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// LineItemsTable stores line items for every parent type.
const LineItemsTable = "line_items"

// Ensure LineItems implements the interface.
var _ driven.EntityDescriptor = (*LineItems)(nil)

// LineItems describes the child rows embedded in a transaction's detail
// payload. The same source line_item_id can in degenerate inputs recur under
// a different parent, so rows are keyed on (parent_id, parent_type,
// line_item_id).
type LineItems struct {
	service  domain.Service
	endpoint string
}

// NewLineItems returns the line item descriptor for a parent endpoint.
func NewLineItems(service domain.Service, parentEndpoint string) *LineItems {
	return &LineItems{service: service, endpoint: parentEndpoint}
}

var lineItemFields = []field{
	text("item_id"),
	text("sku"),
	text("name"),
	text("description"),
	text("unit"),
	text("tax_id"),
	number("quantity"),
	number("rate"),
	number("discount"),
	number("item_total"),
}

func (l *LineItems) TableName() string       { return LineItemsTable }
func (l *LineItems) SourceIDField() string   { return "line_item_id" }
func (l *LineItems) Service() domain.Service { return l.service }
func (l *LineItems) Endpoint() string        { return l.endpoint }

// ConflictKeys returns the composite key.
func (l *LineItems) ConflictKeys() []string {
	return []string{domain.FieldParentID, domain.FieldParentType, "line_item_id"}
}

// Transform converts an embedded line item. parent is required.
func (l *LineItems) Transform(src domain.Record, parent *domain.ParentRef) (domain.Record, error) {
	id := src.String("line_item_id")
	if id == "" {
		return nil, &domain.TransformError{Table: LineItemsTable, Reason: "missing line_item_id"}
	}
	if parent == nil || parent.ID == "" || parent.Type == "" {
		return nil, &domain.TransformError{Table: LineItemsTable, SourceID: id, Reason: "missing parent"}
	}

	rec, err := mapFields(LineItemsTable, id, src, lineItemFields)
	if err != nil {
		return nil, err
	}
	rec["line_item_id"] = id
	rec[domain.FieldParentID] = parent.ID
	rec[domain.FieldParentType] = parent.Type
	return rec, nil
}

// Validate checks the composite key is complete.
func (l *LineItems) Validate(rec domain.Record) domain.Validation {
	return domain.RequireFields(rec, "line_item_id", domain.FieldParentID, domain.FieldParentType)
}

// ExtractFromResponse reads {"line_items": [...]} or a bare line item.
func (l *LineItems) ExtractFromResponse(raw domain.Record) ([]domain.Record, error) {
	return extract(raw, "line_items", "", "line_item_id")
}
