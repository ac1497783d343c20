package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPrefix marks a document kept in the MongoDB collection.
const MongoPrefix = "mongo://"

type mongoDocument struct {
	Name      string    `bson:"_id"`
	Content   string    `bson:"content"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps each document in one collection record keyed by name.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and uses database.collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if collection == "" {
		collection = "dictionaries"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (s *MongoStore) Read(ctx context.Context, name string) ([]byte, error) {
	name = mongoName(name)

	var doc mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s%s", ErrNotFound, MongoPrefix, name)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return []byte(doc.Content), nil
}

func (s *MongoStore) Write(ctx context.Context, name string, data []byte) error {
	name = mongoName(name)
	if name == "" {
		return fmt.Errorf("document name is required")
	}

	update := bson.M{"$set": bson.M{
		"content":    string(data),
		"updated_at": time.Now().UTC(),
	}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": name}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{}
	if p := mongoName(prefix); p != "" {
		filter["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(p)}
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		names = append(names, MongoPrefix+doc.Name)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mongoName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), MongoPrefix))
}
