// Package mongostore is the MongoDB document store. Descriptors become BSON
// filters and reports run as aggregation pipelines on the server.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/store"
)

const connectTimeout = 10 * time.Second

// DB is a connected MongoDB database.
type DB struct {
	client *mongo.Client
	logger *slog.Logger

	tours   *tourCollection
	users   *collection[domain.User]
	reviews *reviewCollection
}

var _ store.Store = (*DB)(nil)

// Connect dials uri, pings the primary and ensures the collection indexes.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*DB, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	d := &DB{
		client:  client,
		logger:  logger,
		tours:   &tourCollection{collection: newCollection[domain.Tour](db, store.ToursSpec)},
		users:   newCollection[domain.User](db, store.UsersSpec),
		reviews: &reviewCollection{collection: newCollection[domain.Review](db, store.ReviewsSpec)},
	}

	if err := d.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	if logger != nil {
		logger.Info("MongoDB connection established", "database", database)
	}
	return d, nil
}

func (d *DB) ensureIndexes(ctx context.Context) error {
	for _, c := range []interface {
		indexModels() []mongo.IndexModel
		coll() *mongo.Collection
	}{d.tours, d.users, d.reviews} {
		models := c.indexModels()
		if len(models) == 0 {
			continue
		}
		if _, err := c.coll().Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", c.coll().Name(), err)
		}
	}
	return nil
}

// Tours returns the tours collection.
func (d *DB) Tours() store.TourCollection { return d.tours }

// Users returns the users collection.
func (d *DB) Users() store.Collection[domain.User] { return d.users }

// Reviews returns the reviews collection.
func (d *DB) Reviews() store.ReviewCollection { return d.reviews }

// Ping checks the primary is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (d *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if d.logger != nil {
		d.logger.Info("Disconnecting from MongoDB")
	}
	return d.client.Disconnect(ctx)
}

// tourIndexes adds the geo index used by $geoNear and $geoWithin.
func tourIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
		{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
	}
}
