// Package service implements the tour, review, user and authentication
// operations on top of the store.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"slices"

	"github.com/tourbook/tourbook-server/internal/domain"
	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
	"github.com/tourbook/tourbook-server/internal/validation"
)

// NotFoundMessage is reported when an id matches no document.
const NotFoundMessage = "Invalid ID, no document found"

// CreateHook runs on a validated document before it is inserted.
type CreateHook[T any] func(ctx context.Context, doc *T) error

// UpdateHook runs before an update. patch holds the decoded changes and set
// the storage-named fields about to be written; hooks may add to set.
type UpdateHook[T any] func(ctx context.Context, id string, patch *T, set map[string]any) error

// WriteHook runs after a document was inserted, updated or deleted.
type WriteHook[T any] func(ctx context.Context, doc *T)

// Page is a list result together with the projection its items are rendered with.
type Page[T any] struct {
	Items      []*T
	Projection query.Projection
}

// Factory runs the generic create, read, update and delete operations over a
// collection.
type Factory[T any] struct {
	coll       store.Collection[T]
	schema     query.Schema
	validator  *validation.Validator
	logger     *slog.Logger
	readOnly   []string
	repeatable []string

	beforeCreate []CreateHook[T]
	beforeUpdate []UpdateHook[T]
	afterWrite   []WriteHook[T]
	afterDelete  []WriteHook[T]
}

// FactoryOption configures a Factory.
type FactoryOption[T any] func(*Factory[T])

// WithBeforeCreate adds a hook run before insert.
func WithBeforeCreate[T any](h CreateHook[T]) FactoryOption[T] {
	return func(f *Factory[T]) { f.beforeCreate = append(f.beforeCreate, h) }
}

// WithBeforeUpdate adds a hook run before update.
func WithBeforeUpdate[T any](h UpdateHook[T]) FactoryOption[T] {
	return func(f *Factory[T]) { f.beforeUpdate = append(f.beforeUpdate, h) }
}

// WithAfterWrite adds a hook run after insert and update.
func WithAfterWrite[T any](h WriteHook[T]) FactoryOption[T] {
	return func(f *Factory[T]) { f.afterWrite = append(f.afterWrite, h) }
}

// WithAfterDelete adds a hook run after delete.
func WithAfterDelete[T any](h WriteHook[T]) FactoryOption[T] {
	return func(f *Factory[T]) { f.afterDelete = append(f.afterDelete, h) }
}

// WithReadOnly drops the named JSON fields from update payloads.
func WithReadOnly[T any](fields ...string) FactoryOption[T] {
	return func(f *Factory[T]) { f.readOnly = append(f.readOnly, fields...) }
}

// WithRepeatable whitelists fields whose repeated query values become an "in" filter.
func WithRepeatable[T any](fields ...string) FactoryOption[T] {
	return func(f *Factory[T]) { f.repeatable = append(f.repeatable, fields...) }
}

// WithLogger sets the factory logger.
func WithLogger[T any](logger *slog.Logger) FactoryOption[T] {
	return func(f *Factory[T]) { f.logger = logger }
}

// NewFactory creates a factory over coll.
func NewFactory[T any](coll store.Collection[T], v *validation.Validator, opts ...FactoryOption[T]) *Factory[T] {
	f := &Factory[T]{
		coll:      coll,
		schema:    query.SchemaOf[T](),
		validator: v,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Schema returns the reflected schema of T.
func (f *Factory[T]) Schema() query.Schema {
	return f.schema
}

// CreateOne decodes payload into a new document, validates and inserts it.
func (f *Factory[T]) CreateOne(ctx context.Context, payload map[string]any) (*T, error) {
	body := query.SanitizeBody(payload)
	for _, field := range f.schema.Fields() {
		if !field.Mutable {
			delete(body, field.JSON)
		}
	}

	doc := new(T)
	if err := decode(body, doc); err != nil {
		return nil, err
	}
	return f.Insert(ctx, doc)
}

// Insert applies defaults, validates and inserts doc.
func (f *Factory[T]) Insert(ctx context.Context, doc *T) (*T, error) {
	if d, ok := any(doc).(domain.Defaulter); ok {
		d.SetDefaults()
	}
	if err := f.validator.Validate(doc); err != nil {
		return nil, err
	}
	for _, h := range f.beforeCreate {
		if err := h(ctx, doc); err != nil {
			return nil, err
		}
	}

	if err := f.coll.Insert(ctx, doc); err != nil {
		return nil, f.translate(err)
	}
	if l, ok := any(doc).(domain.Loader); ok {
		l.AfterLoad()
	}

	for _, h := range f.afterWrite {
		h(ctx, doc)
	}
	return doc, nil
}

// UpdateOne applies the known, mutable fields of payload to the document id.
// Only the changed fields are validated.
func (f *Factory[T]) UpdateOne(ctx context.Context, id string, payload map[string]any) (*T, error) {
	body := query.SanitizeBody(payload)

	changes := make(map[string]any, len(body))
	fields := make([]query.Field, 0, len(body))
	for key, val := range body {
		field, ok := f.schema.Field(key)
		if !ok || !field.Mutable || slices.Contains(f.readOnly, field.JSON) {
			continue
		}
		changes[field.JSON] = val
		fields = append(fields, field)
	}

	patch := new(T)
	if err := decode(changes, patch); err != nil {
		return nil, err
	}

	goNames := make([]string, len(fields))
	for i, field := range fields {
		goNames[i] = field.GoName
	}
	if err := f.validator.ValidatePartial(patch, goNames...); err != nil {
		return nil, err
	}

	pv := reflect.ValueOf(patch).Elem()
	set := make(map[string]any, len(fields))
	for _, field := range fields {
		set[field.BSON] = pv.FieldByIndex(field.Index).Interface()
	}

	for _, h := range f.beforeUpdate {
		if err := h(ctx, id, patch, set); err != nil {
			return nil, err
		}
	}

	if len(set) == 0 {
		return f.GetOne(ctx, id)
	}

	doc, err := f.coll.FindByIDAndUpdate(ctx, id, set)
	if err != nil {
		return nil, f.translate(err)
	}
	for _, h := range f.afterWrite {
		h(ctx, doc)
	}
	return doc, nil
}

// DeleteOne removes the document id.
func (f *Factory[T]) DeleteOne(ctx context.Context, id string) error {
	doc, err := f.coll.FindByIDAndDelete(ctx, id)
	if err != nil {
		return f.translate(err)
	}
	for _, h := range f.afterDelete {
		h(ctx, doc)
	}
	return nil
}

// GetOne returns the document id.
func (f *Factory[T]) GetOne(ctx context.Context, id string) (*T, error) {
	doc, err := f.coll.FindByID(ctx, id)
	if err != nil {
		return nil, f.translate(err)
	}
	return doc, nil
}

// GetAll runs the query string raw over the collection. base carries
// predicates fixed by the route, such as the tour of a nested review list.
func (f *Factory[T]) GetAll(ctx context.Context, raw url.Values, base ...query.Predicate) (*Page[T], error) {
	desc, err := query.Build(raw, query.Descriptor{Filter: base}, f.schema, f.repeatable...)
	if err != nil {
		return nil, err
	}
	items, err := f.coll.Find(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return &Page[T]{Items: items, Projection: desc.Projection}, nil
}

// translate maps store errors onto domain errors.
func (f *Factory[T]) translate(err error) error {
	var dup *store.DuplicateKeyError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound(NotFoundMessage)
	case errors.As(err, &dup):
		return domainerrors.Validationf("Duplicate field value: %s. Please use another value!", dup.Value)
	case errors.Is(err, store.ErrDuplicate):
		return domainerrors.Validation("Duplicate field value. Please use another value!")
	default:
		f.logger.Error("store operation failed", "error", err)
		return err
	}
}

// decode converts a JSON object into doc. Type mismatches are validation errors.
func decode(body map[string]any, doc any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return domainerrors.Validation("Invalid input data.")
	}
	if err := json.Unmarshal(data, doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domainerrors.Validationf("Invalid input data. %s must be a %s", typeErr.Field, typeErr.Type.Kind())
		}
		return domainerrors.Validation("Invalid input data.")
	}
	return nil
}
