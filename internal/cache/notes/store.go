// Package notes keeps payloads as git notes on the summarized commit, one
// notes ref per summary mode.
package notes

import (
	"bytes"
	"context"
	"fmt"

	"dirsummary/internal/cache/store"
	"dirsummary/internal/snapshot"
)

const refPrefix = "refs/notes/"

// Ref returns the notes ref holding payloads for key's mode.
func Ref(key store.Key) string {
	return refPrefix + key.Namespace()
}

type Store struct {
	repo *snapshot.Repo
}

func NewStore(repo *snapshot.Repo) *Store {
	return &Store{repo: repo}
}

func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, bool, error) {
	if s == nil || s.repo == nil {
		return nil, false, fmt.Errorf("store is nil")
	}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	note, found, err := s.repo.Note(ctx, Ref(key), key.Snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("read note %s: %w", Ref(key), err)
	}
	// git terminates every note with a newline
	return bytes.TrimRight(note, "\n"), found, nil
}

func (s *Store) Put(ctx context.Context, key store.Key, payload []byte, force bool) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("store is nil")
	}
	if err := key.Validate(); err != nil {
		return err
	}
	if !force {
		_, found, err := s.repo.Note(ctx, Ref(key), key.Snapshot)
		if err != nil {
			return fmt.Errorf("read note %s: %w", Ref(key), err)
		}
		if found {
			return fmt.Errorf("%s: %w", key, store.ErrExists)
		}
	}
	if err := s.repo.AddNote(ctx, Ref(key), key.Snapshot, payload, force); err != nil {
		return fmt.Errorf("write note %s: %w", Ref(key), err)
	}
	return nil
}
