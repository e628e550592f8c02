package domain

// Op is a filter predicate operator understood by every store.
type Op string

// Supported operators.
const (
	OpEq      Op = "eq"
	OpIn      Op = "in"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
)

// Predicate is a single filter condition on a column.
type Predicate struct {
	Field  string
	Op     Op
	Value  any
	Values []any
}

// Filter is a conjunction of predicates.
type Filter []Predicate

// Eq matches rows where field equals value.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// In matches rows where field is one of values.
func In(field string, values ...any) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// InStrings is In for a string slice.
func InStrings(field string, values []string) Predicate {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return In(field, vs...)
}

// IsNull matches rows where field is null.
func IsNull(field string) Predicate {
	return Predicate{Field: field, Op: OpIsNull}
}

// NotNull matches rows where field is not null.
func NotNull(field string) Predicate {
	return Predicate{Field: field, Op: OpNotNull}
}

// Live restricts a filter to rows that are not soft-deleted.
func Live(preds ...Predicate) Filter {
	return append(Filter(preds), IsNull(FieldDeletedAt))
}

// Query describes a select against a single table.
type Query struct {
	Filter  Filter
	OrderBy string
	Desc    bool
	// Limit of zero means unlimited.
	Limit int
}
