package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordLedgerCommit(t *testing.T) {
	ok := testutil.ToFloat64(LedgerCommitsTotal.WithLabelValues("movie", "ok"))
	failed := testutil.ToFloat64(LedgerCommitsTotal.WithLabelValues("movie", "error"))

	RecordLedgerCommit("movie", nil)
	RecordLedgerCommit("movie", errors.New("down"))

	assert.Equal(t, ok+1, testutil.ToFloat64(LedgerCommitsTotal.WithLabelValues("movie", "ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(LedgerCommitsTotal.WithLabelValues("movie", "error")))
}

func TestRecordEviction_SkipsZero(t *testing.T) {
	before := testutil.ToFloat64(LedgerEvictionsTotal.WithLabelValues("capacity"))
	RecordEviction("capacity", 0)
	RecordEviction("capacity", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(LedgerEvictionsTotal.WithLabelValues("capacity")))
}

func TestRecordProviderCall(t *testing.T) {
	before := testutil.ToFloat64(ProviderRequestsTotal.WithLabelValues("tmdb", "search_movies", "ok"))
	RecordProviderCall("tmdb", "search_movies", "ok", 120*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ProviderRequestsTotal.WithLabelValues("tmdb", "search_movies", "ok")))
}
