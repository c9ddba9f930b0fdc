package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/repository"
)

// TokenStore keeps refresh token hashes.  Expired documents are removed by
// the TTL index on expiresAt.
type TokenStore struct {
	col *mongo.Collection
}

func NewTokenStore(db *mongo.Database) *TokenStore {
	return &TokenStore{col: db.Collection(TokensCollection)}
}

func (s *TokenStore) StoreRefresh(ctx context.Context, id, userID, tokenHash string, exp time.Time) error {
	_, err := s.col.InsertOne(ctx, model.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp.UTC(),
		CreatedAt: time.Now().UTC(),
	})
	return err
}

func (s *TokenStore) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	var t model.RefreshToken
	err := s.col.FindOne(ctx, bson.M{"tokenHash": tokenHash}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return "", repository.ErrNotFound
	}
	return t.UserID, nil
}

func (s *TokenStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"tokenHash": tokenHash, "revokedAt": nil},
		bson.M{"$set": bson.M{"revokedAt": time.Now().UTC()}})
	return err
}

func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.col.UpdateMany(ctx,
		bson.M{"userId": userID, "revokedAt": nil},
		bson.M{"$set": bson.M{"revokedAt": time.Now().UTC()}})
	return err
}
