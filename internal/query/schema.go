package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
)

// Kind is the scalar type a field's query values are cast to.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindTime
	KindOther // nested documents; not filterable
)

// Field describes one stored field of a document type.
type Field struct {
	JSON    string
	BSON    string
	GoName  string
	Kind    Kind
	List    bool
	Index   []int
	Mutable bool
}

// Schema is the reflected field table of a document type, keyed by JSON name.
type Schema struct {
	byJSON map[string]Field
	order  []string
}

var schemaCache sync.Map // reflect.Type -> Schema

// SchemaOf returns the schema of the struct type T.
func SchemaOf[T any]() Schema {
	typ := reflect.TypeFor[T]()
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(Schema)
	}
	s := Schema{byJSON: make(map[string]Field)}
	s.collect(typ, nil)
	schemaCache.Store(typ, s)
	return s
}

func (s *Schema) collect(typ reflect.Type, index []int) {
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		idx := append(append([]int{}, index...), i)

		bsonName, bsonOpts, _ := strings.Cut(sf.Tag.Get("bson"), ",")
		if sf.Anonymous && strings.Contains(bsonOpts, "inline") {
			s.collect(sf.Type, idx)
			continue
		}
		if bsonName == "-" {
			continue
		}
		jsonName, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if jsonName == "-" {
			// Internal fields are neither rendered nor queryable.
			continue
		}
		if jsonName == "" {
			jsonName = sf.Name
		}
		if bsonName == "" {
			bsonName = strings.ToLower(sf.Name)
		}

		kind, list := kindOf(sf.Type)
		f := Field{
			JSON:    jsonName,
			BSON:    bsonName,
			GoName:  sf.Name,
			Kind:    kind,
			List:    list,
			Index:   idx,
			Mutable: bsonName != "_id" && bsonName != VersionField,
		}
		s.byJSON[jsonName] = f
		s.order = append(s.order, jsonName)
	}
}

var timeType = reflect.TypeFor[time.Time]()

func kindOf(t reflect.Type) (Kind, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return KindTime, false
	}
	switch t.Kind() {
	case reflect.String:
		return KindString, false
	case reflect.Bool:
		return KindBool, false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber, false
	case reflect.Slice, reflect.Array:
		k, _ := kindOf(t.Elem())
		return k, true
	default:
		return KindOther, false
	}
}

// Field looks a field up by JSON name. Storage names are accepted too.
func (s Schema) Field(name string) (Field, bool) {
	if f, ok := s.byJSON[name]; ok {
		return f, true
	}
	for _, f := range s.byJSON {
		if f.BSON == name {
			return f, true
		}
	}
	return Field{}, false
}

// Fields returns every field in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byJSON[name])
	}
	return out
}

// Cast converts a raw query value into the field's scalar type.
// Failures are VALIDATION errors shaped like "Invalid price: abc.".
func (f Field) Cast(raw string) (any, error) {
	switch f.Kind {
	case KindNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, castError(f, raw)
		}
		return v, nil
	case KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, castError(f, raw)
		}
		return v, nil
	case KindTime:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
			if v, err := time.Parse(layout, raw); err == nil {
				return v.UTC(), nil
			}
		}
		return nil, castError(f, raw)
	case KindString:
		return raw, nil
	default:
		return nil, castError(f, raw)
	}
}

func castError(f Field, raw string) error {
	return domainerrors.Validation(fmt.Sprintf("Invalid %s: %s.", f.JSON, raw))
}
