package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/id"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
)

// collection stores documents of type T under "<name>:<id>" and unique
// index entries under "<name>:idx:<fields>:<value>".
type collection[T any] struct {
	db     *badger.DB
	spec   store.Spec
	prefix string
}

var _ store.Collection[domain.User] = (*collection[domain.User])(nil)

func newCollection[T any](db *badger.DB, spec store.Spec) *collection[T] {
	return &collection[T]{db: db, spec: spec, prefix: spec.Name + ":"}
}

// record is a raw document with its decoded fields for matching.
type record struct {
	raw    []byte
	fields bson.M
}

func decodeRecord(raw []byte) (record, error) {
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return record{}, fmt.Errorf("failed to decode document: %w", err)
	}
	return record{raw: raw, fields: m}, nil
}

func (c *collection[T]) docKey(docID string) []byte {
	return []byte(c.prefix + docID)
}

func (c *collection[T]) decode(raw []byte) (*T, error) {
	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s document: %w", c.spec.Name, err)
	}
	afterLoad(&doc)
	return &doc, nil
}

func afterLoad(doc any) {
	if l, ok := doc.(domain.Loader); ok {
		l.AfterLoad()
	}
}

func (c *collection[T]) visible(rec record) bool {
	return matchAll(rec.fields, c.spec.Scope)
}

func (c *collection[T]) read(txn *badger.Txn, docID string) (record, error) {
	item, err := txn.Get(c.docKey(docID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, store.ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("failed to get key: %w", err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return record{}, fmt.Errorf("failed to read value: %w", err)
	}
	return decodeRecord(raw)
}

// scan calls fn for every document in the collection until fn returns false.
func (c *collection[T]) scan(ctx context.Context, txn *badger.Txn, fn func(record) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(c.prefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Skip index keys
		if strings.HasPrefix(string(it.Item().Key()[len(c.prefix):]), "idx:") {
			continue
		}

		raw, err := it.Item().ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read value: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if !fn(rec) {
			return nil
		}
	}
	return nil
}

// Insert implements store.Writer.
func (c *collection[T]) Insert(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d := any(doc).(store.Document)
	if d.GetID() == "" {
		d.SetID(id.New())
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", c.spec.Name, err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		key := c.docKey(d.GetID())
		_, err := txn.Get(key)
		if err == nil {
			return &store.DuplicateKeyError{Fields: []string{"_id"}, Value: d.GetID()}
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		if err := c.updateIndexes(txn, d.GetID(), nil, rec.fields); err != nil {
			return err
		}
		if err := txn.Set(key, raw); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	afterLoad(doc)
	return nil
}

// FindByID implements store.Reader.
func (c *collection[T]) FindByID(ctx context.Context, docID string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		rec, err := c.read(txn, docID)
		if err != nil {
			return err
		}
		if !c.visible(rec) {
			return store.ErrNotFound
		}
		raw = rec.raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.decode(raw)
}

// FindByIDUnscoped implements store.Collection.
func (c *collection[T]) FindByIDUnscoped(ctx context.Context, docID string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		rec, err := c.read(txn, docID)
		if err != nil {
			return err
		}
		raw = rec.raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.decode(raw)
}

// FindOne implements store.Reader. Documents are tried in natural order.
func (c *collection[T]) FindOne(ctx context.Context, filter ...query.Predicate) (*T, error) {
	docs, err := c.Find(ctx, query.Descriptor{Filter: filter, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return docs[0], nil
}

// Find implements store.Reader.
func (c *collection[T]) Find(ctx context.Context, d query.Descriptor) ([]*T, error) {
	recs, err := c.match(ctx, d.Filter)
	if err != nil {
		return nil, err
	}

	sortRecords(recs, d.Sort)

	start := min(d.Skip, len(recs))
	recs = recs[start:]
	if d.Limit > 0 && len(recs) > d.Limit {
		recs = recs[:d.Limit]
	}

	docs := make([]*T, 0, len(recs))
	for _, rec := range recs {
		doc, err := c.decode(rec.raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count implements store.Reader.
func (c *collection[T]) Count(ctx context.Context, filter ...query.Predicate) (int, error) {
	recs, err := c.match(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (c *collection[T]) match(ctx context.Context, filter []query.Predicate) ([]record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var recs []record
	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(ctx, txn, func(rec record) bool {
			if c.visible(rec) && matchAll(rec.fields, filter) {
				recs = append(recs, rec)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// FindByIDAndUpdate implements store.Writer.
func (c *collection[T]) FindByIDAndUpdate(ctx context.Context, docID string, set map[string]any) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc T
	err := c.db.Update(func(txn *badger.Txn) error {
		old, err := c.read(txn, docID)
		if err != nil {
			return err
		}
		if !c.visible(old) {
			return store.ErrNotFound
		}

		merged := maps.Clone(old.fields)
		maps.Copy(merged, set)
		merged["_id"] = docID

		// Round-trip through T so the stored bytes keep the document's shape.
		mergedRaw, err := bson.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to marshal update: %w", err)
		}
		if err := bson.Unmarshal(mergedRaw, &doc); err != nil {
			return fmt.Errorf("failed to apply update: %w", err)
		}
		raw, err := bson.Marshal(&doc)
		if err != nil {
			return fmt.Errorf("failed to marshal %s document: %w", c.spec.Name, err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}

		if err := c.updateIndexes(txn, docID, old.fields, rec.fields); err != nil {
			return err
		}
		if err := txn.Set(c.docKey(docID), raw); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	afterLoad(&doc)
	return &doc, nil
}

// Save implements store.Collection.
func (c *collection[T]) Save(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	docID := any(doc).(store.Document).GetID()
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", c.spec.Name, err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		old, err := c.read(txn, docID)
		if err != nil {
			return err
		}
		if err := c.updateIndexes(txn, docID, old.fields, rec.fields); err != nil {
			return err
		}
		if err := txn.Set(c.docKey(docID), raw); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return nil
	})
}

// FindByIDAndDelete implements store.Writer.
func (c *collection[T]) FindByIDAndDelete(ctx context.Context, docID string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := c.db.Update(func(txn *badger.Txn) error {
		old, err := c.read(txn, docID)
		if err != nil {
			return err
		}
		if !c.visible(old) {
			return store.ErrNotFound
		}
		if err := c.updateIndexes(txn, docID, old.fields, nil); err != nil {
			return err
		}
		if err := txn.Delete(c.docKey(docID)); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		raw = old.raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.decode(raw)
}

// DeleteAll implements store.Collection.
func (c *collection[T]) DeleteAll(ctx context.Context) (int, error) {
	n, err := c.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.db.DropPrefix([]byte(c.prefix)); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", c.spec.Name, err)
	}
	return n, nil
}

// updateIndexes moves the unique index entries of a document from old to
// updated. Either side may be nil.
func (c *collection[T]) updateIndexes(txn *badger.Txn, docID string, old, updated bson.M) error {
	for _, fields := range c.spec.Unique {
		oldValue, hadOld := indexValue(old, fields)
		newValue, hasNew := indexValue(updated, fields)
		if hadOld && hasNew && oldValue == newValue {
			continue
		}

		if hadOld {
			if err := txn.Delete(c.indexKey(fields, oldValue)); err != nil {
				return fmt.Errorf("failed to delete old index key: %w", err)
			}
		}
		if !hasNew {
			continue
		}

		key := c.indexKey(fields, newValue)
		item, err := txn.Get(key)
		switch {
		case err == nil:
			owner, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read index key: %w", err)
			}
			if string(owner) != docID {
				return &store.DuplicateKeyError{Fields: fields, Value: newValue}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to check index key: %w", err)
		}
		if err := txn.Set(key, []byte(docID)); err != nil {
			return fmt.Errorf("failed to set index key: %w", err)
		}
	}
	return nil
}

func (c *collection[T]) indexKey(fields []string, value string) []byte {
	return []byte(c.prefix + "idx:" + strings.Join(fields, "+") + ":" + value)
}

// indexValue renders the indexed fields of m. Documents missing any of the
// fields are not indexed.
func indexValue(m bson.M, fields []string) (string, bool) {
	if m == nil {
		return "", false
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v := normalize(m[f])
		if v == nil || v == "" {
			return "", false
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "+"), true
}

func sortRecords(recs []record, keys []query.SortKey) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(recs, func(a, b record) int {
		for _, k := range keys {
			c := compareValues(a.fields[k.Field], b.fields[k.Field])
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
