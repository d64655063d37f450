package storage

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mposter-tg-bot/internal/ledger"
)

var ErrNotConfigured = errors.New("mongo not configured")

type Mongo struct {
	client   *mongo.Client
	markers  *mongo.Collection
	requests *mongo.Collection
}

// Request is one accepted poster request, kept for auditing and /list.
type Request struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	MovieTitle string             `bson:"movie_title"`
	FileSize   int64              `bson:"file_size,omitempty"`
	UserID     int64              `bson:"user_id,omitempty"`
	Timestamp  time.Time          `bson:"timestamp"`
	Processed  bool               `bson:"processed"`
}

func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI is empty")
	}
	if dbName == "" {
		dbName = "MPoster_bot"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(dbName)
	markers := db.Collection("processed_markers")
	requests := db.Collection("movie_requests")
	_, _ = markers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "kind", Value: 1}, bson.E{Key: "processed_at", Value: -1}}},
	})
	_, _ = requests.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{bson.E{Key: "timestamp", Value: -1}}})
	return &Mongo{client: client, markers: markers, requests: requests}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Get(ctx context.Context, key string) (*ledger.Marker, error) {
	if m == nil {
		return nil, ErrNotConfigured
	}
	var mk ledger.Marker
	err := m.markers.FindOne(ctx, bson.M{"key": key}).Decode(&mk)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mk, nil
}

func (m *Mongo) Put(ctx context.Context, key string, mk ledger.Marker) error {
	if m == nil {
		return ErrNotConfigured
	}
	_, err := m.markers.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{
			"key":          key,
			"kind":         mk.Kind,
			"name":         mk.Name,
			"season":       mk.Season,
			"processed_at": mk.ProcessedAt,
		}},
		options.Update().SetUpsert(true),
	)
	// A concurrent upsert on the unique key means the marker exists, which is all we need.
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (m *Mongo) Exists(ctx context.Context, key string) (bool, error) {
	if m == nil {
		return false, ErrNotConfigured
	}
	n, err := m.markers.CountDocuments(ctx, bson.M{"key": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *Mongo) DeleteAll(ctx context.Context, prefix string) (int64, error) {
	if m == nil {
		return 0, ErrNotConfigured
	}
	filter := bson.M{}
	if prefix != "" {
		filter["key"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	}
	res, err := m.markers.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListMarkersSince returns markers of kind processed at or after since, newest first.
func (m *Mongo) ListMarkersSince(ctx context.Context, kind string, since time.Time) ([]ledger.Marker, error) {
	if m == nil {
		return nil, ErrNotConfigured
	}
	opts := options.Find().SetSort(bson.D{bson.E{Key: "processed_at", Value: -1}}).SetLimit(2000)
	cur, err := m.markers.Find(ctx, bson.M{"kind": kind, "processed_at": bson.M{"$gte": since}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]ledger.Marker, 0, 64)
	for cur.Next(ctx) {
		var mk ledger.Marker
		if err := cur.Decode(&mk); err != nil {
			continue
		}
		out = append(out, mk)
	}
	return out, cur.Err()
}

func (m *Mongo) LogRequest(ctx context.Context, r Request) error {
	if m == nil {
		return nil
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.MovieTitle = strings.TrimSpace(r.MovieTitle)
	_, err := m.requests.InsertOne(ctx, r)
	return err
}

// MarkRequestsProcessed flags every open request for the title.
func (m *Mongo) MarkRequestsProcessed(ctx context.Context, movieTitle string) (int64, error) {
	if m == nil {
		return 0, nil
	}
	res, err := m.requests.UpdateMany(ctx,
		bson.M{"movie_title": strings.TrimSpace(movieTitle), "processed": false},
		bson.M{"$set": bson.M{"processed": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (m *Mongo) RecentRequests(ctx context.Context, window time.Duration) ([]Request, error) {
	if m == nil {
		return nil, ErrNotConfigured
	}
	opts := options.Find().SetSort(bson.D{bson.E{Key: "timestamp", Value: -1}}).SetLimit(500)
	cur, err := m.requests.Find(ctx, bson.M{"timestamp": bson.M{"$gte": time.Now().Add(-window)}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	items := make([]Request, 0, 32)
	for cur.Next(ctx) {
		var r Request
		if err := cur.Decode(&r); err != nil {
			continue
		}
		items = append(items, r)
	}
	return items, cur.Err()
}
