package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoAppName = "checkout-api"

// MongoOptions describes the cart store connection. Zero values fall back to the defaults below.
type MongoOptions struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

func (o MongoOptions) withDefaults() MongoOptions {
	if o.MaxPoolSize == 0 {
		o.MaxPoolSize = 50
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	return o
}

func (o MongoOptions) clientOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(o.URI).
		SetAppName(mongoAppName).
		SetConnectTimeout(o.ConnectTimeout).
		SetServerSelectionTimeout(o.ConnectTimeout).
		SetMaxPoolSize(o.MaxPoolSize).
		SetRetryWrites(true)
}

// OpenMongo connects and waits for the primary to answer before handing out the database.
// The client is disconnected again if the primary cannot be reached in time.
func OpenMongo(ctx context.Context, opts MongoOptions) (*mongo.Database, error) {
	opts = opts.withDefaults()
	if opts.Database == "" {
		return nil, errors.New("mongo: database name is required")
	}

	client, err := mongo.Connect(ctx, opts.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo ping primary: %w", err)
	}

	return client.Database(opts.Database), nil
}
