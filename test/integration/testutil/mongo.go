package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoURI     = "mongodb://localhost:27017"
	DefaultDatabaseName = "unimarket"
	ConnectionTimeout   = 10 * time.Second
	BookingsCollection  = "Bookings"
)

// MongoHelper provides MongoDB test utilities
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	DBName   string
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
		DBName:   dbName,
	}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// CleanDatabase removes every booking so each test starts from an empty ledger
func (m *MongoHelper) CleanDatabase(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := m.Database.Collection(BookingsCollection).DeleteMany(ctx, bson.M{}); err != nil {
		t.Fatalf("failed to clean bookings collection: %v", err)
	}
}

// CountBookings returns the number of records in the booking ledger
func (m *MongoHelper) CountBookings(t *testing.T) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(BookingsCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("failed to count bookings: %v", err)
	}
	return count
}

// FindBookingByTxRef fetches one raw booking document by payment reference
func (m *MongoHelper) FindBookingByTxRef(t *testing.T, txRef string) bson.M {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var doc bson.M
	err := m.Database.Collection(BookingsCollection).FindOne(ctx, bson.M{"tx_ref": txRef}).Decode(&doc)
	if err != nil {
		t.Fatalf("failed to find booking %s: %v", txRef, err)
	}
	return doc
}
