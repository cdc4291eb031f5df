package probe

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DatabaseRequest is the body of POST /setup/test-db.
type DatabaseRequest struct {
	URI    string `json:"uri"`
	DBName string `json:"dbName"`
}

func (r DatabaseRequest) Validate() error {
	if missing(r.URI, r.DBName) {
		return fmt.Errorf("%w: uri and dbName are required", ErrMissingFields)
	}
	return nil
}

// Database checks MongoDB connections.
type Database struct {
	Timeout time.Duration
}

func NewDatabase() *Database {
	return &Database{Timeout: 5 * time.Second}
}

// Check connects to r.URI and lists the collections of r.DBName.
func (d *Database) Check(ctx context.Context, r DatabaseRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}

	opts := options.Client().
		ApplyURI(r.URI).
		SetConnectTimeout(d.Timeout).
		SetServerSelectionTimeout(d.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	if _, err := client.Database(r.DBName).ListCollectionNames(ctx, bson.D{}); err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	return nil
}
