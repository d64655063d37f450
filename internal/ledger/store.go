package ledger

import (
	"context"
	"time"
)

const (
	KindMovie  = "movie"
	KindSeries = "series"
)

// Marker is a durable proof that a movie or a series season was handled.
type Marker struct {
	Key         string    `bson:"key" json:"key"`
	Kind        string    `bson:"kind" json:"kind"`
	Name        string    `bson:"name" json:"name"`
	Season      int       `bson:"season,omitempty" json:"season,omitempty"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
}

// Store is the document store contract the ledger depends on.
// Get returns nil, nil when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*Marker, error)
	Put(ctx context.Context, key string, m Marker) error
	Exists(ctx context.Context, key string) (bool, error)
	DeleteAll(ctx context.Context, prefix string) (int64, error)
}

// Clock supplies the current time; tests inject a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
