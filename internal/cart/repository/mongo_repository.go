package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func (m *MongoRepository) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	var doc cartDocument

	filter := bson.M{"customer_id": customerID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain()
}

// ensureCart creates an empty cart document for the customer if there is none.
func (m *MongoRepository) ensureCart(ctx context.Context, customerID string, now time.Time) error {
	filter := bson.M{"customer_id": customerID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"customer_id": customerID,
			"items":       bson.A{},
			"created_at":  now,
		},
		"$set": bson.M{"updated_at": now},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) AddItem(ctx context.Context, customerID string, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now

	doc, err := toItemDocument(item)
	if err != nil {
		return err
	}

	if err := m.ensureCart(ctx, customerID, now); err != nil {
		return err
	}

	sameLine := bson.M{"product_id": item.ProductID, "variant_id": item.VariantID}

	// two attempts: a concurrent push of the same line turns the second push into an update
	for attempt := 0; attempt < 2; attempt++ {
		update := bson.M{
			"$set": bson.M{
				"items.$[elem].quantity":   doc.Quantity,
				"items.$[elem].unit_price": doc.UnitPrice,
				"items.$[elem].name":       doc.Name,
				"items.$[elem].sku":        doc.SKU,
				"items.$[elem].added_at":   now,
				"updated_at":               now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": item.ProductID, "elem.variant_id": item.VariantID},
			},
		})

		result, err := m.collection.UpdateOne(ctx,
			bson.M{"customer_id": customerID, "items": bson.M{"$elemMatch": sameLine}},
			update, arrayFilters)
		if err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
		if result.MatchedCount > 0 {
			return nil
		}

		push := bson.M{
			"$push": bson.M{"items": doc},
			"$set":  bson.M{"updated_at": now},
		}
		result, err = m.collection.UpdateOne(ctx,
			bson.M{"customer_id": customerID, "items": bson.M{"$not": bson.M{"$elemMatch": sameLine}}},
			push)
		if err != nil {
			return fmt.Errorf("failed to add new item: %w", err)
		}
		if result.MatchedCount > 0 {
			return nil
		}
	}

	return fmt.Errorf("failed to add item to cart %s: concurrent modification", customerID)
}

func (m *MongoRepository) UpdateItem(ctx context.Context, customerID string, item domain.CartItem) error {
	doc, err := toItemDocument(item)
	if err != nil {
		return err
	}

	filter := bson.M{
		"customer_id": customerID,
		"items.id":    item.ID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity":   doc.Quantity,
			"items.$[elem].unit_price": doc.UnitPrice,
			"items.$[elem].name":       doc.Name,
			"items.$[elem].sku":        doc.SKU,
			"updated_at":               time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.id": item.ID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (m *MongoRepository) RemoveItem(ctx context.Context, customerID string, itemID string) error {
	filter := bson.M{"customer_id": customerID, "items.id": itemID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"id": itemID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

func (m *MongoRepository) SetShippingAddress(ctx context.Context, customerID, addressID string) error {
	return m.setField(ctx, customerID, "shipping_address_id", addressID)
}

func (m *MongoRepository) SetBillingAddress(ctx context.Context, customerID, addressID string) error {
	return m.setField(ctx, customerID, "billing_address_id", addressID)
}

func (m *MongoRepository) setField(ctx context.Context, customerID, field, value string) error {
	now := time.Now()
	if err := m.ensureCart(ctx, customerID, now); err != nil {
		return err
	}

	_, err := m.collection.UpdateOne(ctx,
		bson.M{"customer_id": customerID},
		bson.M{"$set": bson.M{field: value, "updated_at": now}})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", field, err)
	}
	return nil
}

func (m *MongoRepository) ClearItems(ctx context.Context, customerID string) error {
	filter := bson.M{"customer_id": customerID}
	update := bson.M{
		"$set": bson.M{"items": bson.A{}, "updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, customerID string) error {
	filter := bson.M{"customer_id": customerID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return domain.ErrCartNotFound
	}

	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}
