// Package disk persists payloads as files under a root directory, with a JSON
// index that drives TTL expiry and LRU eviction.
package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dirsummary/internal/cache/store"
)

const (
	DefaultTTL        = 30 * 24 * time.Hour
	DefaultMaxEntries = 4096
)

type Config struct {
	Root       string
	IndexFile  string
	MaxEntries int
	MaxBytes   int64
	TTL        time.Duration
}

type indexEntry struct {
	File       string    `json:"file"`
	Size       int64     `json:"size"`
	ExpiresAt  time.Time `json:"expires_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

type index struct {
	Entries map[string]indexEntry `json:"entries"`
}

// Store keeps one file per key. Entries past their TTL read as missing.
type Store struct {
	mu sync.Mutex

	dataDir   string
	indexPath string

	maxEntries int
	maxBytes   int64
	ttl        time.Duration
	now        func() time.Time

	totalBytes int64
	entries    map[string]indexEntry
}

func NewStore(cfg Config) (*Store, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	indexFile := strings.TrimSpace(cfg.IndexFile)
	if indexFile == "" {
		indexFile = "index.json"
	}

	s := &Store{
		dataDir:    filepath.Join(root, "data"),
		indexPath:  filepath.Join(root, indexFile),
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
		ttl:        cfg.TTL,
		now:        time.Now,
		entries:    map[string]indexEntry{},
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, err
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	if err := s.evictLocked(s.now()); err != nil {
		return nil, err
	}
	if err := s.persistIndexLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key store.Key) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("store is nil")
	}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	k := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	ent, ok := s.entries[k]
	if !ok {
		return nil, false, nil
	}
	if now.After(ent.ExpiresAt) {
		s.removeLocked(k, ent)
		return nil, false, s.persistIndexLocked()
	}
	raw, err := os.ReadFile(filepath.Join(s.dataDir, ent.File))
	if err != nil {
		if os.IsNotExist(err) {
			s.removeLocked(k, ent)
			return nil, false, s.persistIndexLocked()
		}
		return nil, false, err
	}
	ent.AccessedAt = now
	s.entries[k] = ent
	if err := s.persistIndexLocked(); err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *Store) Put(_ context.Context, key store.Key, payload []byte, force bool) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := key.Validate(); err != nil {
		return err
	}
	k := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	old, replacing := s.entries[k]
	if replacing && !force && !now.After(old.ExpiresAt) {
		return fmt.Errorf("%s: %w", k, store.ErrExists)
	}
	file := hashedName(k)
	tmp := filepath.Join(s.dataDir, file+".tmp")
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.dataDir, file)); err != nil {
		return err
	}
	// the old entry keeps its bytes counted until the new file is in place
	if replacing {
		s.totalBytes -= old.Size
	}
	s.entries[k] = indexEntry{
		File:       file,
		Size:       int64(len(payload)),
		ExpiresAt:  now.Add(s.ttl),
		AccessedAt: now,
	}
	s.totalBytes += int64(len(payload))

	if err := s.evictLocked(now); err != nil {
		return err
	}
	return s.persistIndexLocked()
}

// Len reports the number of live entries in the index.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) loadIndex() error {
	raw, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return fmt.Errorf("read index %s: %w", s.indexPath, err)
	}
	if idx.Entries != nil {
		s.entries = idx.Entries
	}
	s.totalBytes = 0
	for _, ent := range s.entries {
		s.totalBytes += ent.Size
	}
	return nil
}

func (s *Store) evictLocked(now time.Time) error {
	for k, ent := range s.entries {
		if now.After(ent.ExpiresAt) {
			s.removeLocked(k, ent)
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dataDir, ent.File)); err != nil {
			if os.IsNotExist(err) {
				s.removeLocked(k, ent)
				continue
			}
			return err
		}
	}
	for s.overLimitLocked() {
		k, ent, ok := s.oldestLocked()
		if !ok {
			break
		}
		s.removeLocked(k, ent)
	}
	return nil
}

func (s *Store) overLimitLocked() bool {
	if len(s.entries) == 0 {
		return false
	}
	return len(s.entries) > s.maxEntries || (s.maxBytes > 0 && s.totalBytes > s.maxBytes)
}

func (s *Store) oldestLocked() (string, indexEntry, bool) {
	if len(s.entries) == 0 {
		return "", indexEntry{}, false
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := s.entries[keys[i]].AccessedAt, s.entries[keys[j]].AccessedAt
		if li.Equal(lj) {
			return keys[i] < keys[j]
		}
		return li.Before(lj)
	})
	return keys[0], s.entries[keys[0]], true
}

func (s *Store) removeLocked(k string, ent indexEntry) {
	delete(s.entries, k)
	s.totalBytes = max(s.totalBytes-ent.Size, 0)
	_ = os.Remove(filepath.Join(s.dataDir, ent.File))
}

func (s *Store) persistIndexLocked() error {
	raw, err := json.MarshalIndent(index{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.indexPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.indexPath)
}

func hashedName(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:]) + ".json"
}
