// Package store defines the persistence contract for encoded summaries.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dirsummary/internal/snapshot"
)

// ErrExists is returned by a non-forced Put when the key already holds a payload.
var ErrExists = errors.New("cache entry already exists")

const (
	NamespaceDirect    = "dir-summary"
	NamespaceRecursive = "dir-summary-recursive"
)

// Key identifies one cached payload. Direct and recursive summaries of the
// same snapshot live under different namespaces.
type Key struct {
	Snapshot  snapshot.ID
	Recursive bool
}

func (k Key) Namespace() string {
	if k.Recursive {
		return NamespaceRecursive
	}
	return NamespaceDirect
}

func (k Key) String() string {
	return k.Namespace() + "/" + string(k.Snapshot)
}

// Validate rejects keys that cannot be stored safely.
func (k Key) Validate() error {
	id := strings.TrimSpace(string(k.Snapshot))
	if id == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("invalid snapshot id: %s", id)
	}
	return nil
}

// Store persists payloads by key. Get reports found=false, not an error, for
// a missing entry. Put with force replaces any existing entry unconditionally.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Put(ctx context.Context, key Key, payload []byte, force bool) error
}
