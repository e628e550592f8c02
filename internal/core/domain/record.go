package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Common storage column names shared by every synchronised table.
const (
	FieldID               = "id"
	FieldLastModifiedTime = "last_modified_time"
	FieldDeletedAt        = "deleted_at"
	FieldSyncedAt         = "synced_at"
	FieldParentID         = "parent_id"
	FieldParentType       = "parent_type"
	FieldExternalEmails   = "external_emails"
)

// dateLayout is the day-granularity format used by the source API.
const dateLayout = "2006-01-02"

// timestampLayouts are accepted when reading timestamps out of payloads.
// The source emits "2024-03-01T10:15:00+0530"; the store emits RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	dateLayout,
}

// Record is a single row, either as returned by the source API or as written
// to the store. Keys are field names.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the field as a string. Numbers are formatted; missing or
// nil fields return "".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the field as a float64.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Time returns the field as a time. Accepts time.Time values and strings in
// any of the source or store layouts.
func (r Record) Time(key string) (time.Time, bool) {
	return ParseTime(r[key])
}

// Has reports whether the field is present with a non-empty value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// Map returns a nested object field.
func (r Record) Map(key string) (Record, bool) {
	switch v := r[key].(type) {
	case Record:
		return v, true
	case map[string]any:
		return Record(v), true
	default:
		return nil, false
	}
}

// List returns a nested array-of-objects field. Non-object elements are
// skipped.
func (r Record) List(key string) ([]Record, bool) {
	switch v := r[key].(type) {
	case []Record:
		return v, true
	case []map[string]any:
		out := make([]Record, 0, len(v))
		for _, m := range v {
			out = append(out, Record(m))
		}
		return out, true
	case []any:
		out := make([]Record, 0, len(v))
		for _, item := range v {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, Record(m))
			case Record:
				out = append(out, m)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// IsDeleted reports whether the row carries a soft-delete marker.
func (r Record) IsDeleted() bool {
	return r.Has(FieldDeletedAt)
}

// ParseTime converts a payload or column value into a UTC time.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		if t == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// FormatDate renders t in the source API's yyyy-mm-dd form.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// StorageValue normalises a value for storage. Times become RFC 3339 UTC
// strings so that stores compare and order them as text.
func StorageValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
