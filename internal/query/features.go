package query

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Reserved parameters never become filter predicates.
var reservedKeys = []string{"page", "sort", "limit", "fields"}

// Features composes a Descriptor from raw query parameters in four steps:
// Filter, Sort, LimitFields and Paginate. The first error wins.
type Features struct {
	raw       url.Values
	schema    Schema
	whitelist []string
	desc      Descriptor
	err       error
}

// New starts a builder from raw parameters on top of a base descriptor,
// e.g. one already scoped to a parent document.
func New(raw url.Values, base Descriptor, schema Schema) *Features {
	return &Features{
		raw:    Sanitize(raw),
		schema: schema,
		desc:   base.With(),
	}
}

// AllowRepeated lists parameters whose repeated values combine into an "in"
// predicate. All other repeated parameters keep their last value.
func (f *Features) AllowRepeated(fields ...string) *Features {
	f.whitelist = append(f.whitelist, fields...)
	return f
}

// Filter converts every non-reserved parameter into a predicate.
// "price[gte]=500" yields {price gte 500}; unknown fields are ignored.
func (f *Features) Filter() *Features {
	if f.err != nil {
		return f
	}

	keys := make([]string, 0, len(f.raw))
	for k := range f.raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		values := f.raw[key]
		name, op, ok := parseKey(key)
		if !ok || slices.Contains(reservedKeys, name) || len(values) == 0 {
			continue
		}
		field, ok := f.schema.Field(name)
		if !ok || field.Kind == KindOther {
			continue
		}

		if op == OpEq && len(values) > 1 && slices.Contains(f.whitelist, name) {
			in := make([]any, 0, len(values))
			for _, raw := range values {
				v, err := field.Cast(raw)
				if err != nil {
					f.err = err
					return f
				}
				in = append(in, v)
			}
			f.desc.Filter = append(f.desc.Filter, Predicate{Field: field.BSON, Op: OpIn, Value: in})
			continue
		}

		v, err := field.Cast(values[len(values)-1])
		if err != nil {
			f.err = err
			return f
		}
		f.desc.Filter = append(f.desc.Filter, Predicate{Field: field.BSON, Op: op, Value: v})
	}
	return f
}

// Sort applies "sort=price,-ratingsAverage". Without it results keep their
// natural order.
func (f *Features) Sort() *Features {
	if f.err != nil {
		return f
	}
	for _, part := range splitList(last(f.raw, "sort")) {
		desc := strings.HasPrefix(part, "-")
		field, ok := f.schema.Field(strings.TrimPrefix(part, "-"))
		if !ok {
			continue
		}
		f.desc.Sort = append(f.desc.Sort, SortKey{Field: field.BSON, Desc: desc})
	}
	return f
}

// LimitFields applies "fields=name,price" (inclusion) or "fields=-summary"
// (exclusion). Without it the internal version field is hidden.
func (f *Features) LimitFields() *Features {
	if f.err != nil {
		return f
	}
	parts := splitList(last(f.raw, "fields"))
	if len(parts) == 0 {
		f.desc.Projection = Projection{Exclude: []string{VersionField}}
		return f
	}

	var p Projection
	for _, part := range parts {
		if name, ok := strings.CutPrefix(part, "-"); ok {
			p.Exclude = append(p.Exclude, name)
		} else {
			p.Include = append(p.Include, part)
		}
	}
	f.desc.Projection = p
	return f
}

// Paginate applies "page" and "limit". Missing or unparsable values fall back
// to page 1 and 100 results; limit is capped at MaxLimit.
func (f *Features) Paginate() *Features {
	if f.err != nil {
		return f
	}
	page := positiveInt(last(f.raw, "page"), DefaultPage)
	limit := min(positiveInt(last(f.raw, "limit"), DefaultLimit), MaxLimit)

	f.desc.Skip = (page - 1) * limit
	f.desc.Limit = limit
	return f
}

// Descriptor returns the composed descriptor or the first cast error.
func (f *Features) Descriptor() (Descriptor, error) {
	if f.err != nil {
		return Descriptor{}, f.err
	}
	return f.desc, nil
}

// Build runs all four steps.
func Build(raw url.Values, base Descriptor, schema Schema, repeatable ...string) (Descriptor, error) {
	return New(raw, base, schema).
		AllowRepeated(repeatable...).
		Filter().
		Sort().
		LimitFields().
		Paginate().
		Descriptor()
}

// parseKey splits "price[gte]" into ("price", OpGte).
func parseKey(key string) (string, Op, bool) {
	name, rest, found := strings.Cut(key, "[")
	if !found {
		return key, OpEq, true
	}
	opName, ok := strings.CutSuffix(rest, "]")
	if !ok {
		return "", "", false
	}
	switch op := Op(opName); op {
	case OpGt, OpGte, OpLt, OpLte, OpNe, OpEq:
		return name, op, true
	default:
		return "", "", false
	}
}

func last(raw url.Values, key string) string {
	values := raw[key]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
