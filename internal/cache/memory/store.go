// Package memory keeps payloads in a bounded in-process LRU.
package memory

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"dirsummary/internal/cache/store"
)

const DefaultMaxEntries = 1024

// Store is a threadsafe store that forgets the least recently used entry
// once MaxEntries is exceeded.
type Store struct {
	mu    sync.Mutex
	items *lru.Cache[string, []byte]
}

func NewStore(maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	items, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("init lru: %w", err)
	}
	return &Store{items: items}, nil
}

func (s *Store) Get(_ context.Context, key store.Key) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("store is nil")
	}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	raw, ok := s.items.Get(key.String())
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (s *Store) Put(_ context.Context, key store.Key, payload []byte, force bool) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	if !force && s.items.Contains(k) {
		return fmt.Errorf("%s: %w", k, store.ErrExists)
	}
	s.items.Add(k, append([]byte(nil), payload...))
	return nil
}

// Len reports the number of cached payloads.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return s.items.Len()
}
