package entities

import (
	"fmt"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// kind is how a payload field is normalised before storage.
type kind int

const (
	kindText kind = iota
	kindNumber
	kindDate
	kindTimestamp
)

// field maps one payload key onto one storage column.
type field struct {
	source string
	column string
	kind   kind
}

func text(name string) field      { return field{source: name, column: name, kind: kindText} }
func number(name string) field    { return field{source: name, column: name, kind: kindNumber} }
func date(name string) field      { return field{source: name, column: name, kind: kindDate} }
func timestamp(name string) field { return field{source: name, column: name, kind: kindTimestamp} }

// mapFields copies fields from src into a new record, normalising each
// value. Absent fields are stored as nil so every row has the same shape.
func mapFields(table, sourceID string, src domain.Record, fields []field) (domain.Record, error) {
	out := make(domain.Record, len(fields)+4)
	for _, f := range fields {
		v, err := convert(src, f)
		if err != nil {
			return nil, &domain.TransformError{Table: table, SourceID: sourceID, Reason: err.Error()}
		}
		out[f.column] = v
	}
	return out, nil
}

func convert(src domain.Record, f field) (any, error) {
	raw, ok := src[f.source]
	if !ok || raw == nil {
		return nil, nil
	}
	if s, isString := raw.(string); isString && s == "" {
		return nil, nil
	}

	switch f.kind {
	case kindNumber:
		n, ok := src.Float(f.source)
		if !ok {
			return nil, fmt.Errorf("field %s: not a number: %v", f.source, raw)
		}
		return n, nil
	case kindDate:
		t, ok := src.Time(f.source)
		if !ok {
			return nil, fmt.Errorf("field %s: not a date: %v", f.source, raw)
		}
		return domain.FormatDate(t), nil
	case kindTimestamp:
		t, ok := src.Time(f.source)
		if !ok {
			return nil, fmt.Errorf("field %s: not a timestamp: %v", f.source, raw)
		}
		return t.UTC().Format(time.RFC3339), nil
	default:
		return src.String(f.source), nil
	}
}
