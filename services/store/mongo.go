package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sjsage522/purchasewatcher/internal/purchase"
	"sjsage522/purchasewatcher/logger"
)

// keyFields identify a purchase; a unique index is built over them
var keyFields = []string{"product_id", "customer_location", "purchase_date", "purchase_time"}

// MongoStore implements Store on a MongoDB collection.
// The client is connected lazily and dropped after a failed ping so the
// next call reconnects.
type MongoStore struct {
	uri        string
	database   string
	collection string
	timeout    time.Duration

	mu     sync.Mutex
	client *mongo.Client
	coll   *mongo.Collection
	log    *logger.Logger
}

// NewMongoStore creates a store for uri; no connection is made until first use
func NewMongoStore(uri, database, collection string) *MongoStore {
	return &MongoStore{
		uri:        uri,
		database:   database,
		collection: collection,
		timeout:    10 * time.Second,
		log:        logger.ForStore(),
	}
}

// handle returns the collection, connecting on first use
func (s *MongoStore) handle(ctx context.Context) (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coll != nil {
		return s.coll, nil
	}

	opts := options.Client().
		ApplyURI(s.uri).
		SetConnectTimeout(s.timeout).
		SetServerSelectionTimeout(s.timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	coll := client.Database(s.database).Collection(s.collection)

	keys := bson.D{}
	for _, f := range keyFields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true).SetName("purchase_key"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create purchase index: %w", err)
	}

	s.log.Info().
		Str("database", s.database).
		Str("collection", s.collection).
		Msg("Connected to MongoDB")

	s.client = client
	s.coll = coll
	return coll, nil
}

// reset drops failed so the next call reconnects. Calls still running on
// failed are cut short by the disconnect; they were using a connection that
// just failed its ping. A client that already replaced failed is kept.
func (s *MongoStore) reset(ctx context.Context, failed *mongo.Client) {
	s.mu.Lock()
	if s.client != failed {
		s.mu.Unlock()
		return
	}
	client := s.client
	s.client = nil
	s.coll = nil
	s.mu.Unlock()

	if client != nil {
		if err := client.Disconnect(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
		}
	}
}

// Upsert implements Store
func (s *MongoStore) Upsert(ctx context.Context, purchases []purchase.Purchase) ([]purchase.Purchase, error) {
	if len(purchases) == 0 {
		return nil, nil
	}

	coll, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	var inserted []purchase.Purchase
	for _, p := range purchases {
		filter := bson.D{
			{Key: "product_id", Value: p.ProductID},
			{Key: "customer_location", Value: p.CustomerLocation},
			{Key: "purchase_date", Value: p.PurchaseDate},
			{Key: "purchase_time", Value: p.PurchaseTime},
		}
		update := bson.D{{Key: "$setOnInsert", Value: p}}

		res, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if mongo.IsDuplicateKeyError(err) {
			// lost a race with a concurrent upsert of the same purchase
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("failed to upsert purchase %s: %w", p.Key(), err)
		}
		if res.UpsertedCount > 0 {
			inserted = append(inserted, p)
		}
	}

	return inserted, nil
}

// List implements Store
func (s *MongoStore) List(ctx context.Context) ([]purchase.Purchase, error) {
	coll, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "purchase_date", Value: -1},
		{Key: "purchase_time", Value: -1},
	})
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}

	var purchases []purchase.Purchase
	if err := cursor.All(ctx, &purchases); err != nil {
		return nil, fmt.Errorf("failed to decode purchases: %w", err)
	}
	return purchases, nil
}

// Stats implements Store
func (s *MongoStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	coll, err := s.handle(ctx)
	if err != nil {
		return stats, err
	}

	stats.TotalPurchases, err = coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return stats, fmt.Errorf("failed to count purchases: %w", err)
	}

	products, err := coll.Distinct(ctx, "product_id", bson.D{})
	if err != nil {
		return stats, fmt.Errorf("failed to list products: %w", err)
	}
	stats.UniqueProducts = len(products)

	if stats.DateRange.Oldest, err = s.edgeDate(ctx, coll, 1); err != nil {
		return stats, err
	}
	if stats.DateRange.Newest, err = s.edgeDate(ctx, coll, -1); err != nil {
		return stats, err
	}
	return stats, nil
}

// edgeDate returns the first purchase_date in the given sort direction
func (s *MongoStore) edgeDate(ctx context.Context, coll *mongo.Collection, direction int) (*string, error) {
	var p purchase.Purchase
	opts := options.FindOne().SetSort(bson.D{{Key: "purchase_date", Value: direction}})
	err := coll.FindOne(ctx, bson.D{}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read date range: %w", err)
	}
	return &p.PurchaseDate, nil
}

// Ping implements Store. A failed ping drops the connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	coll, err := s.handle(ctx)
	if err != nil {
		return err
	}
	client := coll.Database().Client()
	if err := client.Ping(ctx, nil); err != nil {
		s.reset(ctx, client)
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Close implements Store
func (s *MongoStore) Close(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.coll = nil
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
