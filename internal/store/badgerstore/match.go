package badgerstore

import (
	"cmp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tourbook/tourbook-server/internal/query"
)

// matchAll reports whether m satisfies every predicate. Comparison follows
// document-database rules: an array field matches when any element does, and
// a missing field is unequal to every non-null value.
func matchAll(m bson.M, preds []query.Predicate) bool {
	for _, p := range preds {
		if !match(m, p) {
			return false
		}
	}
	return true
}

func match(m bson.M, p query.Predicate) bool {
	v := m[p.Field]
	switch p.Op {
	case query.OpEq:
		return equals(v, p.Value)
	case query.OpNe:
		return !equals(v, p.Value)
	case query.OpIn:
		values, _ := p.Value.([]any)
		for _, want := range values {
			if equals(v, want) {
				return true
			}
		}
		return false
	case query.OpGt:
		return anyElement(v, p.Value, func(c int) bool { return c > 0 })
	case query.OpGte:
		return anyElement(v, p.Value, func(c int) bool { return c >= 0 })
	case query.OpLt:
		return anyElement(v, p.Value, func(c int) bool { return c < 0 })
	case query.OpLte:
		return anyElement(v, p.Value, func(c int) bool { return c <= 0 })
	default:
		return false
	}
}

func equals(field, want any) bool {
	want = normalize(want)
	if arr, ok := field.(primitive.A); ok {
		for _, e := range arr {
			if equalScalar(normalize(e), want) {
				return true
			}
		}
		return false
	}
	return equalScalar(normalize(field), want)
}

func equalScalar(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	c, ok := compareScalar(a, b)
	return ok && c == 0
}

func anyElement(field, want any, test func(int) bool) bool {
	want = normalize(want)
	elems := []any{field}
	if arr, ok := field.(primitive.A); ok {
		elems = arr
	}
	for _, e := range elems {
		if c, ok := compareScalar(normalize(e), want); ok && test(c) {
			return true
		}
	}
	return false
}

// normalize folds numeric types to float64 and dates to UTC time.Time.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

// compareScalar compares two normalized values of the same type.
func compareScalar(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return cmp.Compare(x, y), ok
	case string:
		y, ok := b.(string)
		return cmp.Compare(x, y), ok
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		return cmp.Compare(boolRank(x), boolRank(y)), true
	default:
		return 0, false
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// typeRank orders values of different types: null, numbers, strings,
// documents, arrays, booleans, dates.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bson.M, bson.D:
		return 3
	case primitive.A:
		return 4
	case bool:
		return 5
	case time.Time:
		return 6
	default:
		return 7
	}
}

// compareValues is the total order used for sorting. Arrays sort by their
// first element.
func compareValues(a, b any) int {
	a, b = sortable(a), sortable(b)
	if ra, rb := typeRank(a), typeRank(b); ra != rb {
		return cmp.Compare(ra, rb)
	}
	c, _ := compareScalar(a, b)
	return c
}

func sortable(v any) any {
	if arr, ok := v.(primitive.A); ok {
		if len(arr) == 0 {
			return nil
		}
		return normalize(arr[0])
	}
	return normalize(v)
}
