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

// SessionStore keeps sessions in the sessions collection.
type SessionStore struct {
	col *mongo.Collection
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{col: db.Collection(SessionsCollection)}
}

func (s *SessionStore) Create(ctx context.Context, sess *model.Session) error {
	now := time.Now().UTC()
	sess.AvailableSeats = sess.TotalSeats
	sess.CreatedAt, sess.UpdatedAt = now, now
	_, err := s.col.InsertOne(ctx, sess)
	return err
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Update rewrites the editable fields in one pipeline update.  Inside a
// single $set stage field paths resolve against the document before the
// stage, so "$totalSeats" is still the old capacity when the delta is
// applied to availableSeats.
func (s *SessionStore) Update(ctx context.Context, sess *model.Session) (*model.Session, error) {
	filter := bson.M{
		"_id": sess.ID,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$subtract": bson.A{"$totalSeats", "$availableSeats"}},
			sess.TotalSeats,
		}},
	}
	set := bson.M{
		"language":        literal(sess.Language),
		"date":            literal(sess.Date),
		"time":            literal(sess.Time),
		"location":        literal(sess.Location),
		"description":     literal(sess.Description),
		"level":           literal(sess.Level),
		"durationMinutes": literal(sess.DurationMinutes),
		"price":           literal(sess.Price),
		"isActive":        literal(sess.IsActive),
		"availableSeats": bson.M{"$add": bson.A{
			"$availableSeats",
			bson.M{"$subtract": bson.A{sess.TotalSeats, "$totalSeats"}},
		}},
		"totalSeats": literal(sess.TotalSeats),
		"updatedAt":  literal(time.Now().UTC()),
	}
	// A miss whose seat guard would now hold lost a race with a booking or
	// cancellation; it is retried once before reporting ErrConflict.
	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.col.UpdateOne(ctx, filter, mongo.Pipeline{{{Key: "$set", Value: set}}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount > 0 {
			return s.GetByID(ctx, sess.ID)
		}
		current, err := s.GetByID(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		if current.BookedSeats() > sess.TotalSeats {
			return nil, repository.ErrInvalidState
		}
	}
	return nil, repository.ErrConflict
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *SessionStore) ListAvailable(ctx context.Context, f repository.SessionFilter, today time.Time) ([]model.Session, int64, error) {
	filter := availableFilter(today)
	if f.Language != "" {
		filter["language"] = f.Language
	}
	if f.Level != "" {
		filter["level"] = f.Level
	}
	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit))
	items, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *SessionStore) ListAll(ctx context.Context, offset, limit int) ([]model.Session, int64, error) {
	total, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	items, err := s.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *SessionStore) Upcoming(ctx context.Context, today time.Time, limit int) ([]model.Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetLimit(int64(limit))
	return s.find(ctx, bson.M{"isActive": true, "date": bson.M{"$gte": today}}, opts)
}

func (s *SessionStore) CountAvailable(ctx context.Context, today time.Time) (int64, error) {
	return s.col.CountDocuments(ctx, availableFilter(today))
}

func (s *SessionStore) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]model.Session, error) {
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]model.Session, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func availableFilter(today time.Time) bson.M {
	return bson.M{
		"isActive":       true,
		"date":           bson.M{"$gte": today},
		"availableSeats": bson.M{"$gt": 0},
	}
}

// literal keeps user supplied values from being read as field paths or
// operators inside an aggregation pipeline.
func literal(v interface{}) bson.M {
	return bson.M{"$literal": v}
}
