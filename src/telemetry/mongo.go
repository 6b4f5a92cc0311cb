package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecorder appends events to a MongoDB collection.
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectMongo dials uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return NewMongoRecorder(client, client.Database(database).Collection(collection)), nil
}

func NewMongoRecorder(client *mongo.Client, collection *mongo.Collection) *MongoRecorder {
	return &MongoRecorder{client: client, collection: collection}
}

func (r *MongoRecorder) Record(ctx context.Context, ev Event) error {
	if _, err := r.collection.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("failed to insert generation event: %w", err)
	}
	return nil
}

func (r *MongoRecorder) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
