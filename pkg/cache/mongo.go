package cache

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	perrors "github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/observability"
)

// Default MongoDB names.
const (
	DefaultMongoDatabase   = "projector"
	DefaultMongoCollection = "solutions"
)

// MongoCache stores entries as documents keyed by _id.
type MongoCache struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	ExpiresAt time.Time `bson:"expires_at,omitempty"`
}

// NewMongoCache creates a cache backed by database.collection on the server
// at uri. Empty names fall back to the defaults. The driver connects lazily,
// so an unreachable server surfaces on first use.
func NewMongoCache(ctx context.Context, uri, database, collection string) (*MongoCache, error) {
	if err := perrors.ValidateURL(uri, "mongodb", "mongodb+srv"); err != nil {
		return nil, err
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidArgument, err, "connect mongodb")
	}
	return &MongoCache{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// EnsureIndexes creates the TTL index that lets MongoDB expire entries.
func (c *MongoCache) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeNetwork, err, "create ttl index")
	}
	return nil
}

// Get retrieves a value. Expired documents the TTL monitor has not yet
// removed are reported as misses.
func (c *MongoCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry mongoEntry
	err := RetryWithBackoff(ctx, func() error {
		return classifyMongo(c.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&entry))
	})
	if errors.Is(err, ErrCacheMiss) {
		record(ctx, BackendMongo, false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		record(ctx, BackendMongo, false)
		return nil, false, nil
	}
	record(ctx, BackendMongo, true)
	return entry.Data, true, nil
}

// Set upserts a value.
func (c *MongoCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := mongoEntry{Key: key, Data: data}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl).UTC()
	}
	err := RetryWithBackoff(ctx, func() error {
		_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": key}, entry, options.Replace().SetUpsert(true))
		return classifyMongo(err)
	})
	if err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, BackendMongo, len(data))
	return nil
}

// Delete removes a value.
func (c *MongoCache) Delete(ctx context.Context, key string) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": key})
	return classifyMongo(err)
}

// Close disconnects the client.
func (c *MongoCache) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

func classifyMongo(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrCacheMiss
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return Retryable(perrors.Wrap(perrors.ErrCodeNetwork, err, "mongodb"))
	}
	return err
}

var _ Cache = (*MongoCache)(nil)
