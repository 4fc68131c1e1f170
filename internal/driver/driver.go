// Package driver runs one summary invocation: resolve the reference, decide
// whether the cached payload can be reused, and otherwise recompute and write
// the new payload back.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log"

	"dirsummary/internal/cache/store"
	"dirsummary/internal/classify"
	"dirsummary/internal/snapshot"
	"dirsummary/internal/summary"
)

// Decision is the terminal state of the validity check.
type Decision int

const (
	Recompute Decision = iota
	Reuse
)

func (d Decision) String() string {
	if d == Reuse {
		return "reuse"
	}
	return "recompute"
}

var (
	// ErrCacheDisabled is the miss reason when caching was bypassed.
	ErrCacheDisabled = errors.New("cache disabled")
	// ErrNotCached is the miss reason when the store has no entry.
	ErrNotCached = errors.New("no cached entry")
)

// Decide reports whether a stored payload can be returned as is. When it
// cannot, reason says why; it is informational, never fatal.
func Decide(noCache bool, stored []byte, found bool) (d Decision, r summary.Result, reason error) {
	if noCache {
		return Recompute, summary.Result{}, ErrCacheDisabled
	}
	if !found {
		return Recompute, summary.Result{}, ErrNotCached
	}
	r, decodeErr := summary.Decode(stored)
	if err := summary.Validate(r, decodeErr, summary.CurrentVersion); err != nil {
		return Recompute, summary.Result{}, err
	}
	return Reuse, r, nil
}

// Snapshots resolves references and lists snapshot contents.
type Snapshots interface {
	Resolve(ctx context.Context, ref string) (snapshot.ID, error)
	ListFiles(ctx context.Context, id snapshot.ID) ([]string, error)
}

type Request struct {
	// Reference defaults to HEAD.
	Reference string
	NoCache   bool
	Recursive bool
}

type Outcome struct {
	Snapshot snapshot.ID
	Decision Decision
	Result   summary.Result
	// Payload is the stored payload on reuse, or the freshly encoded one.
	Payload []byte
	// MissReason is set when Decision is Recompute.
	MissReason error
	// WriteErr is set when the recomputed payload could not be stored. The
	// result is still valid; reporting it is left to the caller.
	WriteErr error
}

type Driver struct {
	Snapshots Snapshots
	// Store may be nil, which behaves like NoCache.
	Store store.Store
	// NewClassifier builds the classifier for one snapshot. Defaults to
	// classify.Extensions.
	NewClassifier func(ctx context.Context, id snapshot.ID) summary.Classifier
	Workers       int
	Logger        *log.Logger
}

func (d *Driver) Run(ctx context.Context, req Request) (*Outcome, error) {
	if d == nil || d.Snapshots == nil {
		return nil, fmt.Errorf("driver has no snapshot source")
	}
	id, err := d.Snapshots.Resolve(ctx, req.Reference)
	if err != nil {
		return nil, err
	}
	key := store.Key{Snapshot: id, Recursive: req.Recursive}
	noCache := req.NoCache || d.Store == nil

	var (
		stored []byte
		found  bool
	)
	if !noCache {
		d.logf("fetching %s from cache", key)
		stored, found, err = d.Store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read cache %s: %w", key, err)
		}
	}

	decision, result, reason := Decide(noCache, stored, found)
	out := &Outcome{Snapshot: id, Decision: decision}
	if decision == Reuse {
		d.logf("reusing cached summary for %s", key)
		out.Result = result
		out.Payload = stored
		return out, nil
	}
	d.logf("recomputing %s: %v", key, reason)
	out.MissReason = reason

	files, err := d.Snapshots.ListFiles(ctx, id)
	if err != nil {
		return nil, err
	}
	out.Result, err = summary.Build(ctx, files, d.classifier(ctx, id), summary.Options{
		Recursive: req.Recursive,
		Workers:   d.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", id, err)
	}
	out.Payload, err = summary.Encode(out.Result)
	if err != nil {
		return nil, err
	}

	if !noCache {
		// force: the prior entry may be stale or in an older format
		if err := d.Store.Put(ctx, key, out.Payload, true); err != nil {
			out.WriteErr = fmt.Errorf("write cache %s: %w", key, err)
		}
	}
	return out, nil
}

func (d *Driver) classifier(ctx context.Context, id snapshot.ID) summary.Classifier {
	if d.NewClassifier != nil {
		return d.NewClassifier(ctx, id)
	}
	return classify.Extensions{}
}

func (d *Driver) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
