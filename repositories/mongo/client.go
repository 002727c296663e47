// Package mongo is the MongoDB alternative to the Badger store, selected with STORE_BACKEND=mongo.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client wraps the MongoDB client and hands out the repositories.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewClient connects and pings the server before returning.
func NewClient(ctx context.Context, uri, dbName string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		client:   client,
		database: client.Database(dbName),
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *Client) Messages() *MessageRepository {
	return NewMessageRepository(c.database)
}

func (c *Client) Users() *UserRepository {
	return NewUserRepository(c.database)
}

func (c *Client) Name() string { return "mongo" }

// Ping checks if the database connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}
