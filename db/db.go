package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	ItineraryCollection      *mongo.Collection
	ItineraryItemsCollection *mongo.Collection
	PlacesCollection         *mongo.Collection
	Client                   *mongo.Client
)

// Connect dials MongoDB and binds the package collections to dbName.
// Transactions need a replica set or sharded cluster.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	database := client.Database(dbName)
	Client = client
	ItineraryCollection = database.Collection("itinerary")
	ItineraryItemsCollection = database.Collection("itinerary_items")
	PlacesCollection = database.Collection("places")
	return client, nil
}

// EnsureIndexes creates the lookup indexes and the unique (day, sort order)
// slot index that backs item ordering.
func EnsureIndexes(ctx context.Context) error {
	itemIdxs := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "itemid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_itemid"),
		},
		{
			Keys: bson.D{
				{Key: "itineraryid", Value: 1},
				{Key: "day_number", Value: 1},
				{Key: "sort_order", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("unique_day_slot"),
		},
	}
	if _, err := ItineraryItemsCollection.Indexes().CreateMany(ctx, itemIdxs); err != nil {
		return fmt.Errorf("itinerary item indexes: %w", err)
	}

	itinIdxs := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "itineraryid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_itineraryid"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "deleted", Value: 1}},
			Options: options.Index().SetName("user_deleted"),
		},
	}
	if _, err := ItineraryCollection.Indexes().CreateMany(ctx, itinIdxs); err != nil {
		return fmt.Errorf("itinerary indexes: %w", err)
	}

	_, err := PlacesCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "placeid", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_placeid"),
	})
	if err != nil {
		return fmt.Errorf("place indexes: %w", err)
	}
	return nil
}
