// Package mongostore is the MongoDB storage backend.  It offers the same
// operations and error values as the MySQL repositories so the services can
// run on either.
//
// Seat accounting relies on single-document atomicity: a seat is taken with
// a conditional $inc on the session document, and the "one non-cancelled
// booking per user and session" rule is a partial unique index on
// bookings {userId, sessionId} restricted to documents with active: true.
package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	SessionsCollection = "sessions"
	BookingsCollection = "bookings"
	UsersCollection    = "users"
	TokensCollection   = "refresh_tokens"
)

// EnsureIndexes creates the indexes the stores depend on.  It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		SessionsCollection: {
			{Keys: bson.D{{Key: "language", Value: 1}, {Key: "date", Value: 1}}},
			{Keys: bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}},
			{Keys: bson.D{{Key: "isActive", Value: 1}}},
		},
		BookingsCollection: {
			{
				Keys: bson.D{{Key: "userId", Value: 1}, {Key: "sessionId", Value: 1}},
				Options: options.Index().
					SetName("uq_active_user_session").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"active": true}),
			},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "status", Value: 1}}},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		TokensCollection: {
			{Keys: bson.D{{Key: "tokenHash", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
