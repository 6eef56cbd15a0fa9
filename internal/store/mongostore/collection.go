package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/id"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
)

type collection[T any] struct {
	c    *mongo.Collection
	spec store.Spec
}

var _ store.Collection[domain.User] = (*collection[domain.User])(nil)

func newCollection[T any](db *mongo.Database, spec store.Spec) *collection[T] {
	return &collection[T]{c: db.Collection(spec.Name), spec: spec}
}

func (c *collection[T]) coll() *mongo.Collection { return c.c }

func (c *collection[T]) indexModels() []mongo.IndexModel {
	models := make([]mongo.IndexModel, 0, len(c.spec.Unique)+2)
	for _, fields := range c.spec.Unique {
		keys := bson.D{}
		for _, f := range fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)})
	}
	if c.spec.Name == store.ToursSpec.Name {
		models = append(models, tourIndexes()...)
	}
	return models
}

// scoped returns the filter document for preds ANDed with the collection scope.
func (c *collection[T]) scoped(preds ...query.Predicate) bson.D {
	all := make([]query.Predicate, 0, len(c.spec.Scope)+len(preds))
	all = append(all, c.spec.Scope...)
	all = append(all, preds...)
	return filterDoc(all)
}

// filterDoc translates predicates into a BSON filter.
func filterDoc(preds []query.Predicate) bson.D {
	if len(preds) == 0 {
		return bson.D{}
	}
	clauses := make(bson.A, 0, len(preds))
	for _, p := range preds {
		value := p.Value
		if p.Op == query.OpIn {
			values, _ := p.Value.([]any)
			value = bson.A(values)
		}
		clauses = append(clauses, bson.D{{Key: p.Field, Value: bson.D{{Key: "$" + string(p.Op), Value: value}}}})
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.D)
	}
	return bson.D{{Key: "$and", Value: clauses}}
}

func sortDoc(keys []query.SortKey) bson.D {
	sort := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: k.Field, Value: dir})
	}
	return sort
}

func afterLoad(doc any) {
	if l, ok := doc.(domain.Loader); ok {
		l.AfterLoad()
	}
}

// Insert implements store.Writer.
func (c *collection[T]) Insert(ctx context.Context, doc *T) error {
	d := any(doc).(store.Document)
	if d.GetID() == "" {
		d.SetID(id.New())
	}
	if _, err := c.c.InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	afterLoad(doc)
	return nil
}

// FindByID implements store.Reader.
func (c *collection[T]) FindByID(ctx context.Context, docID string) (*T, error) {
	return c.FindOne(ctx, query.Eq("_id", docID))
}

// FindByIDUnscoped implements store.Collection.
func (c *collection[T]) FindByIDUnscoped(ctx context.Context, docID string) (*T, error) {
	var doc T
	if err := c.c.FindOne(ctx, bson.D{{Key: "_id", Value: docID}}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	afterLoad(&doc)
	return &doc, nil
}

// FindOne implements store.Reader.
func (c *collection[T]) FindOne(ctx context.Context, filter ...query.Predicate) (*T, error) {
	var doc T
	if err := c.c.FindOne(ctx, c.scoped(filter...)).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	afterLoad(&doc)
	return &doc, nil
}

// Find implements store.Reader.
func (c *collection[T]) Find(ctx context.Context, d query.Descriptor) ([]*T, error) {
	opts := options.Find()
	if len(d.Sort) > 0 {
		opts.SetSort(sortDoc(d.Sort))
	}
	if d.Skip > 0 {
		opts.SetSkip(int64(d.Skip))
	}
	if d.Limit > 0 {
		opts.SetLimit(int64(d.Limit))
	}

	cur, err := c.c.Find(ctx, c.scoped(d.Filter...), opts)
	if err != nil {
		return nil, translate(err)
	}
	return decodeAll[T](ctx, cur)
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]*T, error) {
	var docs []T
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	out := make([]*T, len(docs))
	for i := range docs {
		afterLoad(&docs[i])
		out[i] = &docs[i]
	}
	return out, nil
}

// Count implements store.Reader.
func (c *collection[T]) Count(ctx context.Context, filter ...query.Predicate) (int, error) {
	n, err := c.c.CountDocuments(ctx, c.scoped(filter...))
	if err != nil {
		return 0, translate(err)
	}
	return int(n), nil
}

// FindByIDAndUpdate implements store.Writer.
func (c *collection[T]) FindByIDAndUpdate(ctx context.Context, docID string, set map[string]any) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc T
	err := c.c.FindOneAndUpdate(ctx, c.scoped(query.Eq("_id", docID)), bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return nil, translate(err)
	}
	afterLoad(&doc)
	return &doc, nil
}

// Save implements store.Collection.
func (c *collection[T]) Save(ctx context.Context, doc *T) error {
	docID := any(doc).(store.Document).GetID()
	res, err := c.c.ReplaceOne(ctx, bson.D{{Key: "_id", Value: docID}}, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindByIDAndDelete implements store.Writer.
func (c *collection[T]) FindByIDAndDelete(ctx context.Context, docID string) (*T, error) {
	var doc T
	if err := c.c.FindOneAndDelete(ctx, c.scoped(query.Eq("_id", docID))).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	afterLoad(&doc)
	return &doc, nil
}

// DeleteAll implements store.Collection.
func (c *collection[T]) DeleteAll(ctx context.Context) (int, error) {
	res, err := c.c.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, translate(err)
	}
	return int(res.DeletedCount), nil
}

var dupKeyPattern = regexp.MustCompile(`dup key: \{ (.*) \}`)

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return duplicateKey(err.Error())
	default:
		return fmt.Errorf("mongodb: %w", err)
	}
}

// duplicateKey parses `... dup key: { email: "a@b.c" }`.
func duplicateKey(msg string) *store.DuplicateKeyError {
	dup := &store.DuplicateKeyError{}
	m := dupKeyPattern.FindStringSubmatch(msg)
	if m == nil {
		return dup
	}
	var values []string
	for part := range strings.SplitSeq(m[1], ", ") {
		field, value, ok := strings.Cut(part, ": ")
		if !ok {
			continue
		}
		dup.Fields = append(dup.Fields, field)
		values = append(values, strings.Trim(value, `"`))
	}
	dup.Value = strings.Join(values, "+")
	return dup
}
