// Package app wires configuration, the repository and the cache backend into
// a ready driver.
package app

import (
	"context"
	"log"

	"dirsummary/internal/cache/cached"
	"dirsummary/internal/cache/store"
	"dirsummary/internal/classify"
	"dirsummary/internal/config"
	"dirsummary/internal/driver"
	"dirsummary/internal/snapshot"
	"dirsummary/internal/summary"
)

type App struct {
	Repo   *snapshot.Repo
	Store  store.Store
	Driver *driver.Driver

	closeStore func() error
}

type Options struct {
	// Workers overrides cfg.Workers when positive.
	Workers int
	// NoCache skips opening the store entirely; the driver then never reads
	// or writes a cache.
	NoCache bool
}

// New opens the repository at repoDir and, unless opts.NoCache, the
// configured store.
func New(ctx context.Context, cfg *config.Config, repoDir string, opts Options) (*App, error) {
	if cfg == nil {
		cfg = &config.Config{Store: config.StoreNotes}
	}
	repo := snapshot.Open(repoDir)
	a := &App{Repo: repo, closeStore: func() error { return nil }}
	if !opts.NoCache {
		st, closeFn, err := openStore(ctx, cfg, repo)
		if err != nil {
			return nil, err
		}
		a.Store, a.closeStore = st, closeFn
		log.Printf("summary store: %s (front cache entries=%d)", storeName(cfg.Store), cfg.FrontCacheEntries)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = cfg.Workers
	}
	a.Driver = &driver.Driver{
		Snapshots:     repo,
		Store:         a.Store,
		NewClassifier: sniffer(repo),
		Workers:       workers,
	}
	return a, nil
}

// Metrics reports front cache counters, if a front cache is configured.
func (a *App) Metrics() (cached.MetricsSnapshot, bool) {
	if c, ok := a.Store.(*cached.Store); ok {
		return c.Metrics(), true
	}
	return cached.MetricsSnapshot{}, false
}

func (a *App) Close() error {
	if a == nil || a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// sniffer classifies by name and falls back to the blob's leading bytes at
// the snapshot being summarized.
func sniffer(repo *snapshot.Repo) func(ctx context.Context, id snapshot.ID) summary.Classifier {
	return func(ctx context.Context, id snapshot.ID) summary.Classifier {
		return classify.Sniffer{Head: func(p string) ([]byte, error) {
			return repo.ReadHead(ctx, id, p, classify.SniffBytes)
		}}
	}
}

func storeName(kind config.StoreKind) string {
	if kind == "" {
		return string(config.StoreNotes)
	}
	return string(kind)
}
