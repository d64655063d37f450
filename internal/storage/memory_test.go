package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mposter-tg-bot/internal/ledger"
)

var (
	_ ledger.Store = (*Memory)(nil)
	_ ledger.Store = (*Mongo)(nil)
)

func TestMemory_StoreContract(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	got, err := m.Get(ctx, "movie:heat")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	require.NoError(t, m.Put(ctx, "movie:heat", ledger.Marker{Kind: ledger.KindMovie, Name: "Heat", ProcessedAt: now}))
	require.NoError(t, m.Put(ctx, "series:dark:s1", ledger.Marker{Kind: ledger.KindSeries, Name: "Dark", Season: 1, ProcessedAt: now}))

	got, err = m.Get(ctx, "movie:heat")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "movie:heat", got.Key)
	assert.Equal(t, "Heat", got.Name)

	ok, err := m.Exists(ctx, "series:dark:s1")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := m.DeleteAll(ctx, "series:")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, _ = m.Exists(ctx, "series:dark:s1")
	assert.False(t, ok)
	ok, _ = m.Exists(ctx, "movie:heat")
	assert.True(t, ok)
}

func TestMemory_ListMarkersSince(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	_ = m.Put(ctx, "movie:old", ledger.Marker{Kind: ledger.KindMovie, Name: "Old", ProcessedAt: now.Add(-48 * time.Hour)})
	_ = m.Put(ctx, "movie:a", ledger.Marker{Kind: ledger.KindMovie, Name: "A", ProcessedAt: now.Add(-2 * time.Hour)})
	_ = m.Put(ctx, "movie:b", ledger.Marker{Kind: ledger.KindMovie, Name: "B", ProcessedAt: now.Add(-time.Hour)})
	_ = m.Put(ctx, "series:c:s1", ledger.Marker{Kind: ledger.KindSeries, Name: "C", ProcessedAt: now})

	out, err := m.ListMarkersSince(ctx, ledger.KindMovie, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "B", out[0].Name)
	assert.Equal(t, "A", out[1].Name)
}

func TestMemory_Requests(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.LogRequest(ctx, Request{MovieTitle: " Heat ", UserID: 7}))
	require.NoError(t, m.LogRequest(ctx, Request{MovieTitle: "Heat", UserID: 8}))
	require.NoError(t, m.LogRequest(ctx, Request{MovieTitle: "Old", Timestamp: time.Now().Add(-48 * time.Hour)}))

	n, err := m.MarkRequestsProcessed(ctx, "Heat")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recent, err := m.RecentRequests(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].Processed)
	assert.Equal(t, int64(8), recent[0].UserID)
}

func TestMongo_NilReceiver(t *testing.T) {
	ctx := context.Background()
	var m *Mongo

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, m.Put(ctx, "k", ledger.Marker{}), ErrNotConfigured)
	assert.NoError(t, m.LogRequest(ctx, Request{MovieTitle: "x"}))
	assert.NoError(t, m.Close(ctx))
}

func TestNewMongo_EmptyURI(t *testing.T) {
	_, err := NewMongo(context.Background(), "", "")
	assert.Error(t, err)
}
