// Package query turns raw request query parameters into a storage-neutral
// Descriptor: ANDed filter predicates, a multi-key sort, a field projection
// and skip/limit pagination.
package query

// Op is a comparison operator.
type Op string

// Supported operators.
const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 100
	MaxLimit     = 1000
)

// VersionField is the internal version key hidden from default projections.
const VersionField = "__v"

// Predicate compares a stored field (storage name) with a value.
// For OpIn, Value is a []any.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality predicate.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Ne builds an inequality predicate.
func Ne(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpNe, Value: value}
}

// SortKey orders results by a stored field.
type SortKey struct {
	Field string
	Desc  bool
}

// Projection selects rendered fields by JSON name.
// Include wins when both lists are set; the identifier is always kept.
type Projection struct {
	Include []string
	Exclude []string
}

// Descriptor is the composed query executed against a collection.
// A zero Limit means no limit.
type Descriptor struct {
	Filter     []Predicate
	Sort       []SortKey
	Projection Projection
	Skip       int
	Limit      int
}

// With returns a copy of d with extra predicates ANDed in.
func (d Descriptor) With(preds ...Predicate) Descriptor {
	out := d
	out.Filter = make([]Predicate, 0, len(d.Filter)+len(preds))
	out.Filter = append(out.Filter, d.Filter...)
	out.Filter = append(out.Filter, preds...)
	return out
}
