// Package cached fronts any store.Store with an in-process LRU and counts
// hits, misses and origin traffic.
package cached

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"dirsummary/internal/cache/store"
)

type MetricsSnapshot struct {
	Hits           uint64
	Misses         uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type metrics struct {
	hits           atomic.Uint64
	misses         atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:           m.hits.Load(),
		Misses:         m.misses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

type Store struct {
	origin  store.Store
	front   *lru.Cache[string, []byte]
	metrics metrics
}

func NewStore(origin store.Store, maxEntries int) (*Store, error) {
	if origin == nil {
		return nil, fmt.Errorf("origin store is nil")
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	front, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("init lru: %w", err)
	}
	return &Store{origin: origin, front: front}, nil
}

func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, bool, error) {
	k := key.String()
	if raw, ok := s.front.Get(k); ok {
		s.metrics.hits.Add(1)
		return append([]byte(nil), raw...), true, nil
	}
	s.metrics.misses.Add(1)
	s.metrics.originReads.Add(1)

	raw, found, err := s.origin.Get(ctx, key)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	s.front.Add(k, append([]byte(nil), raw...))
	return raw, true, nil
}

// Put writes through to the origin and only then refreshes the front cache,
// so a failed write never leaves a payload the origin does not hold.
func (s *Store) Put(ctx context.Context, key store.Key, payload []byte, force bool) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, key, payload, force); err != nil {
		s.metrics.originWriteErr.Add(1)
		s.front.Remove(key.String())
		return err
	}
	s.front.Add(key.String(), append([]byte(nil), payload...))
	return nil
}

func (s *Store) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}
