package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAddressBook is a read-only view of the address book owned by the profile service.
type MongoAddressBook struct {
	collection *mongo.Collection
}

func NewMongoAddressBook(db *mongo.Database) *MongoAddressBook {
	return &MongoAddressBook{collection: db.Collection("addresses")}
}

func (a *MongoAddressBook) AddressExists(ctx context.Context, customerID, addressID string) (bool, error) {
	filter := bson.M{"_id": addressID, "customer_id": customerID}
	n, err := a.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up address: %w", err)
	}
	return n > 0, nil
}
