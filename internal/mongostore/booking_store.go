package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/repository"
)

// bookingDoc is the stored shape of a booking.  Active mirrors "status is
// not cancelled" and is the field the partial unique index filters on.
type bookingDoc struct {
	model.Booking `bson:",inline"`
	Active        bool `bson:"active"`
}

// BookingStore keeps bookings and moves session seat counters.  Without
// multi-document transactions the seat decrement and the booking insert are
// two writes; a failed insert is compensated by giving the seat back, which
// keeps availableSeats within bounds at every step.
type BookingStore struct {
	bookings *mongo.Collection
	sessions *mongo.Collection
}

func NewBookingStore(db *mongo.Database) *BookingStore {
	return &BookingStore{
		bookings: db.Collection(BookingsCollection),
		sessions: db.Collection(SessionsCollection),
	}
}

// Reserve takes one seat of b.SessionID and inserts b as confirmed.  It
// returns repository.ErrNotFound, ErrCapacityExceeded or ErrConflict.
func (s *BookingStore) Reserve(ctx context.Context, b *model.Booking) error {
	now := time.Now().UTC()
	err := s.sessions.FindOneAndUpdate(ctx,
		bson.M{"_id": b.SessionID, "availableSeats": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"availableSeats": -1}, "$set": bson.M{"updatedAt": now}},
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.sessions.CountDocuments(ctx, bson.M{"_id": b.SessionID})
		if cerr != nil {
			return cerr
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrCapacityExceeded
	}
	if err != nil {
		return err
	}

	b.Status = model.BookingConfirmed
	b.CreatedAt, b.UpdatedAt = now, now
	if _, err := s.bookings.InsertOne(ctx, bookingDoc{Booking: *b, Active: true}); err != nil {
		if rerr := s.release(ctx, b.SessionID, now); rerr != nil {
			return errors.Join(err, rerr)
		}
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// Cancel marks the user's booking cancelled and releases its seat.  It
// returns repository.ErrNotFound or ErrInvalidState.
func (s *BookingStore) Cancel(ctx context.Context, bookingID, userID string, reason *string, at time.Time) (*model.Booking, error) {
	at = at.UTC()
	var doc bookingDoc
	err := s.bookings.FindOneAndUpdate(ctx,
		bson.M{"_id": bookingID, "userId": userID, "status": bson.M{"$ne": model.BookingCancelled}},
		bson.M{"$set": bson.M{
			"status":             model.BookingCancelled,
			"active":             false,
			"cancellationReason": reason,
			"cancelledAt":        at,
			"updatedAt":          at,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.bookings.CountDocuments(ctx, bson.M{"_id": bookingID, "userId": userID})
		if cerr != nil {
			return nil, cerr
		}
		if n == 0 {
			return nil, repository.ErrNotFound
		}
		return nil, repository.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	if err := s.release(ctx, doc.SessionID, at); err != nil {
		return nil, err
	}
	b := doc.Booking
	return &b, nil
}

// release gives one seat back unless the session is already full or gone.
func (s *BookingStore) release(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID, "$expr": bson.M{"$lt": bson.A{"$availableSeats", "$totalSeats"}}},
		bson.M{"$inc": bson.M{"availableSeats": 1}, "$set": bson.M{"updatedAt": at}},
	)
	return err
}

func (s *BookingStore) GetForUser(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	var doc bookingDoc
	err := s.bookings.FindOne(ctx, bson.M{"_id": bookingID, "userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc.Booking, nil
}

func (s *BookingStore) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Booking, int64, error) {
	filter := bson.M{"userId": userID}
	total, err := s.bookings.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.find(ctx, filter, newestFirst().SetSkip(int64(offset)).SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *BookingStore) ListActiveByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.find(ctx, bson.M{"userId": userID, "status": activeStatuses()}, newestFirst())
}

func (s *BookingStore) ListBySession(ctx context.Context, sessionID string) ([]model.Booking, error) {
	return s.find(ctx, bson.M{"sessionId": sessionID}, newestFirst())
}

func (s *BookingStore) CountActiveBySession(ctx context.Context, sessionID string) (int64, error) {
	return s.bookings.CountDocuments(ctx, bson.M{"sessionId": sessionID, "status": activeStatuses()})
}

func (s *BookingStore) HasActive(ctx context.Context, userID, sessionID string) (bool, error) {
	n, err := s.bookings.CountDocuments(ctx,
		bson.M{"userId": userID, "sessionId": sessionID, "status": activeStatuses()},
		options.Count().SetLimit(1))
	return n > 0, err
}

// CompletePast marks confirmed bookings of sessions that started before now
// as completed.  Candidate sessions are narrowed by date in the query and by
// start time in Go, since the time of day is stored as "HH:MM".
func (s *BookingStore) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	cur, err := s.sessions.Find(ctx,
		bson.M{"date": bson.M{"$lte": now}},
		options.Find().SetProjection(bson.M{"_id": 1, "date": 1, "time": 1}))
	if err != nil {
		return 0, err
	}
	var sessions []model.Session
	if err := cur.All(ctx, &sessions); err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(sessions))
	for i := range sessions {
		if sessions[i].IsPast(now) {
			ids = append(ids, sessions[i].ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.bookings.UpdateMany(ctx,
		bson.M{"sessionId": bson.M{"$in": ids}, "status": model.BookingConfirmed},
		bson.M{"$set": bson.M{"status": model.BookingCompleted, "updatedAt": now.UTC()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *BookingStore) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]model.Booking, error) {
	cur, err := s.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Booking, len(docs))
	for i := range docs {
		out[i] = docs[i].Booking
	}
	return out, nil
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
}

func activeStatuses() bson.M {
	return bson.M{"$in": bson.A{model.BookingConfirmed, model.BookingPending}}
}
