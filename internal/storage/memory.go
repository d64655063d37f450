package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mposter-tg-bot/internal/ledger"
)

// Memory is a process-local store used when no MONGODB_URI is configured.
type Memory struct {
	mu       sync.RWMutex
	markers  map[string]ledger.Marker
	requests []Request
}

func NewMemory() *Memory {
	return &Memory{markers: make(map[string]ledger.Marker)}
}

func (m *Memory) Get(_ context.Context, key string) (*ledger.Marker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.markers[key]
	if !ok {
		return nil, nil
	}
	return &mk, nil
}

func (m *Memory) Put(_ context.Context, key string, mk ledger.Marker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk.Key = key
	m.markers[key] = mk
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.markers[key]
	return ok, nil
}

func (m *Memory) DeleteAll(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.markers {
		if strings.HasPrefix(k, prefix) {
			delete(m.markers, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListMarkersSince(_ context.Context, kind string, since time.Time) ([]ledger.Marker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Marker, 0, len(m.markers))
	for _, mk := range m.markers {
		if mk.Kind == kind && !mk.ProcessedAt.Before(since) {
			out = append(out, mk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessedAt.After(out[j].ProcessedAt) })
	return out, nil
}

func (m *Memory) LogRequest(_ context.Context, r Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.MovieTitle = strings.TrimSpace(r.MovieTitle)
	m.requests = append(m.requests, r)
	return nil
}

func (m *Memory) MarkRequestsProcessed(_ context.Context, movieTitle string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	movieTitle = strings.TrimSpace(movieTitle)
	var n int64
	for i := range m.requests {
		if m.requests[i].MovieTitle == movieTitle && !m.requests[i].Processed {
			m.requests[i].Processed = true
			n++
		}
	}
	return n, nil
}

func (m *Memory) RecentRequests(_ context.Context, window time.Duration) ([]Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	since := time.Now().Add(-window)
	out := make([]Request, 0, len(m.requests))
	for i := len(m.requests) - 1; i >= 0; i-- {
		if !m.requests[i].Timestamp.Before(since) {
			out = append(out, m.requests[i])
		}
	}
	return out, nil
}
