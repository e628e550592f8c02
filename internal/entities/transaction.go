package entities

import (
	"fmt"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// transaction is the shared implementation behind every parent transaction
// descriptor. Concrete types differ only in their static configuration.
type transaction struct {
	module     string
	kind       string
	table      string
	idField    string
	service    domain.Service
	endpoint   string
	listKey    string
	detailKey  string
	dateField  string
	sortColumn string
	fields     []field
	required   []string
	lineItems  *LineItems
}

// Ensure transaction implements the interface.
var _ driven.TransactionDescriptor = (*transaction)(nil)

func (t *transaction) TableName() string                 { return t.table }
func (t *transaction) SourceIDField() string             { return t.idField }
func (t *transaction) Service() domain.Service           { return t.service }
func (t *transaction) Endpoint() string                  { return t.endpoint }
func (t *transaction) Module() string                    { return t.module }
func (t *transaction) Kind() string                      { return t.kind }
func (t *transaction) DateField() string                 { return t.dateField }
func (t *transaction) SortColumn() string                { return t.sortColumn }
func (t *transaction) LineItemsKey() string              { return "line_items" }
func (t *transaction) LineItems() driven.EntityDescriptor { return t.lineItems }
func (t *transaction) ConflictKeys() []string            { return []string{t.idField} }

// Transform converts a list or detail payload into a storage row.
// Line items are not part of the parent row; they are written separately.
func (t *transaction) Transform(src domain.Record, _ *domain.ParentRef) (domain.Record, error) {
	id := src.String(t.idField)
	if id == "" {
		return nil, &domain.TransformError{Table: t.table, Reason: "missing " + t.idField}
	}

	rec, err := mapFields(t.table, id, src, t.fields)
	if err != nil {
		return nil, err
	}
	rec[t.idField] = id

	modified, err := convert(src, timestamp(domain.FieldLastModifiedTime))
	if err != nil {
		return nil, &domain.TransformError{Table: t.table, SourceID: id, Reason: err.Error()}
	}
	rec[domain.FieldLastModifiedTime] = modified
	return rec, nil
}

// Validate checks the source id, transaction date and any type-specific
// required columns.
func (t *transaction) Validate(rec domain.Record) domain.Validation {
	required := append([]string{t.idField, t.dateField}, t.required...)
	return domain.RequireFields(rec, required...)
}

// ExtractFromResponse accepts {"<list key>": [...]}, {"<detail key>": {...}}
// or a bare record carrying the source id.
func (t *transaction) ExtractFromResponse(raw domain.Record) ([]domain.Record, error) {
	return extract(raw, t.listKey, t.detailKey, t.idField)
}

func extract(raw domain.Record, listKey, detailKey, idField string) ([]domain.Record, error) {
	if raw == nil {
		return nil, nil
	}
	if v, ok := raw[listKey]; ok && v != nil {
		records, ok := raw.List(listKey)
		if !ok {
			return nil, fmt.Errorf("extract %s: expected array, got %T", listKey, v)
		}
		return records, nil
	}
	if detailKey != "" {
		if v, ok := raw[detailKey]; ok && v != nil {
			rec, ok := raw.Map(detailKey)
			if !ok {
				return nil, fmt.Errorf("extract %s: expected object, got %T", detailKey, v)
			}
			return []domain.Record{rec}, nil
		}
	}
	if raw.Has(idField) {
		return []domain.Record{raw}, nil
	}
	return []domain.Record{}, nil
}
