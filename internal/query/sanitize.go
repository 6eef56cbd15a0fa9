package query

import (
	"encoding/json"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Sanitize drops query parameters whose names could smuggle storage
// operators: names starting with "$" or containing ".".
func Sanitize(raw url.Values) url.Values {
	out := make(url.Values, len(raw))
	for k, v := range raw {
		if unsafeKey(k) {
			continue
		}
		out[k] = slices.Clone(v)
	}
	return out
}

// SanitizeBody removes "$"-prefixed and dotted keys from a decoded JSON
// body, recursively, and escapes "<" in string values so stored text cannot
// open markup. Password fields are compared as typed and stay untouched.
func SanitizeBody(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		if unsafeKey(k) {
			continue
		}
		out[k] = sanitizeValue(k, v)
	}
	return out
}

func sanitizeValue(key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		return SanitizeBody(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sanitizeValue(key, e)
		}
		return out
	case string:
		if strings.Contains(strings.ToLower(key), "password") {
			return t
		}
		return strings.ReplaceAll(t, "<", "&lt;")
	default:
		return v
	}
}

func unsafeKey(k string) bool {
	if strings.HasPrefix(k, "$") {
		return true
	}
	name, _, _ := strings.Cut(k, "[")
	return strings.Contains(name, ".")
}

// Project renders v as a JSON object restricted by p. The "id" key always
// survives an inclusion projection.
func Project(v any, p Projection) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if len(p.Include) > 0 {
		keep := make(map[string]any, len(p.Include)+1)
		for _, name := range append([]string{"id"}, p.Include...) {
			if val, ok := doc[name]; ok {
				keep[name] = val
			}
		}
		return keep, nil
	}

	out := maps.Clone(doc)
	for _, name := range p.Exclude {
		delete(out, name)
	}
	return out, nil
}

// ProjectAll applies Project to every element.
func ProjectAll[T any](items []T, p Projection) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		doc, err := Project(item, p)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
