// Package badgerstore is the embedded document store. Documents are kept as
// BSON values in badger; filters, sorts and reports run in process.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/store"
)

// DB wraps a badger database holding the tours, users and reviews collections.
type DB struct {
	db     *badger.DB
	logger *slog.Logger

	tours   *tourCollection
	users   *collection[domain.User]
	reviews *reviewCollection
}

var _ store.Store = (*DB)(nil)

// Open opens (or creates) a badger database at path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}
	return newDB(db, logger), nil
}

// OpenInMemory opens a database that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}
	return newDB(db, logger), nil
}

func newDB(db *badger.DB, logger *slog.Logger) *DB {
	return &DB{
		db:      db,
		logger:  logger,
		tours:   &tourCollection{collection: newCollection[domain.Tour](db, store.ToursSpec)},
		users:   newCollection[domain.User](db, store.UsersSpec),
		reviews: &reviewCollection{collection: newCollection[domain.Review](db, store.ReviewsSpec)},
	}
}

// Tours returns the tours collection.
func (d *DB) Tours() store.TourCollection { return d.tours }

// Users returns the users collection.
func (d *DB) Users() store.Collection[domain.User] { return d.users }

// Reviews returns the reviews collection.
func (d *DB) Reviews() store.ReviewCollection { return d.reviews }

// Ping reports whether the database is still open.
func (d *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.logger != nil {
		d.logger.Info("Closing Badger database")
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger db: %w", err)
	}
	return nil
}
