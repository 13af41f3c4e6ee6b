package repository

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestDB(t *testing.T) (*MongoRepository, *mongo.Database, func()) {
	ctx := context.Background()

	// Start MongoDB container
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := OpenMongo(ctx, MongoOptions{URI: uri, Database: "testdb"})
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, db, cleanup
}

func newItem(id string, productID, variantID int64, qty int, price string) domain.CartItem {
	return domain.CartItem{
		ID:        id,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
		Name:      "product",
		SKU:       "SKU",
	}
}

func TestGetCart_NotFound(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestAddItem_NewCart(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.AddItem(ctx, "user123", newItem("i1", 1, 0, 3, "19.99"))
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", cart.CustomerID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("19.99").Equal(cart.Items[0].UnitPrice))
	assert.False(t, cart.CreatedAt.IsZero())
}

func TestAddItem_SameLineReplacesQuantityAndPrice(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", newItem("i1", 1, 0, 2, "10")))
	require.NoError(t, repo.AddItem(ctx, "user123", newItem("i1", 1, 0, 5, "12.50")))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("12.50").Equal(cart.Items[0].UnitPrice))
}

func TestAddItem_VariantsAreSeparateLines(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", newItem("i1", 1, 0, 1, "10")))
	require.NoError(t, repo.AddItem(ctx, "user123", newItem("i2", 1, 2, 1, "11")))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestUpdateItem(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", newItem("i1", 1, 0, 1, "10")))

	err := repo.UpdateItem(ctx, "user123", newItem("i1", 1, 0, 4, "9.50"))
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("9.50").Equal(cart.Items[0].UnitPrice))

	err = repo.UpdateItem(ctx, "user123", newItem("missing", 1, 0, 4, "9.50"))
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestRemoveItem(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", newItem("i1", 1, 0, 1, "10")))
	require.NoError(t, repo.AddItem(ctx, "user123", newItem("i2", 2, 0, 1, "20")))

	require.NoError(t, repo.RemoveItem(ctx, "user123", "i1"))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "i2", cart.Items[0].ID)

	assert.ErrorIs(t, repo.RemoveItem(ctx, "user123", "i1"), domain.ErrItemNotFound)
}

func TestSetAddresses_CreatesCartLazily(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SetShippingAddress(ctx, "user123", "addr-ship"))
	require.NoError(t, repo.SetBillingAddress(ctx, "user123", "addr-bill"))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "addr-ship", cart.ShippingAddressID)
	assert.Equal(t, "addr-bill", cart.BillingAddressID)
	assert.Empty(t, cart.Items)
}

func TestClearItems_KeepsCartAndAddresses(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", newItem("i1", 1, 0, 1, "10")))
	require.NoError(t, repo.SetShippingAddress(ctx, "user123", "addr-ship"))

	require.NoError(t, repo.ClearItems(ctx, "user123"))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, "addr-ship", cart.ShippingAddressID)

	assert.ErrorIs(t, repo.ClearItems(ctx, "nobody"), domain.ErrCartNotFound)
}

func TestDeleteCart(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "guest-1", newItem("i1", 1, 0, 1, "10")))
	require.NoError(t, repo.DeleteCart(ctx, "guest-1"))

	_, err := repo.GetCart(ctx, "guest-1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.ErrorIs(t, repo.DeleteCart(ctx, "guest-1"), domain.ErrCartNotFound)
}

func TestAddressBook_AddressExists(t *testing.T) {
	_, db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := db.Collection("addresses").InsertOne(ctx, bson.M{"_id": "addr-1", "customer_id": "user123"})
	require.NoError(t, err)

	book := NewMongoAddressBook(db)

	ok, err := book.AddressExists(ctx, "user123", "addr-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = book.AddressExists(ctx, "someone-else", "addr-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
