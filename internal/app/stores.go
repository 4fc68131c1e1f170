package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"dirsummary/internal/cache/cached"
	"dirsummary/internal/cache/disk"
	"dirsummary/internal/cache/memory"
	"dirsummary/internal/cache/notes"
	"dirsummary/internal/cache/postgres"
	"dirsummary/internal/cache/s3"
	"dirsummary/internal/cache/store"
	"dirsummary/internal/config"
	"dirsummary/internal/snapshot"
)

// openStore builds the configured backend, optionally fronted by an
// in-process cache. closeFn releases backend resources.
func openStore(ctx context.Context, cfg *config.Config, repo *snapshot.Repo) (st store.Store, closeFn func() error, err error) {
	closeFn = func() error { return nil }

	var origin store.Store
	switch cfg.Store {
	case config.StoreNotes, "":
		origin = notes.NewStore(repo)
	case config.StoreDisk:
		root := strings.TrimSpace(cfg.Disk.Root)
		if root == "" {
			gitDir, err := repo.GitDir(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("locate git dir for disk store: %w", err)
			}
			root = filepath.Join(gitDir, "dir-summary")
		}
		origin, err = disk.NewStore(disk.Config{
			Root:       root,
			TTL:        cfg.Disk.TTL,
			MaxEntries: cfg.Disk.MaxEntries,
			MaxBytes:   cfg.Disk.MaxBytes,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize disk store: %w", err)
		}
		log.Printf("summary store: disk root=%s", root)
	case config.StoreMemory:
		origin, err = memory.NewStore(cfg.MemoryEntries)
		if err != nil {
			return nil, nil, err
		}
	case config.StorePostgres:
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		origin, closeFn = pg, pg.Close
	case config.StoreS3:
		origin, err = s3.NewStore(s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize s3 store: %w", err)
		}
		log.Printf("summary store: s3 bucket=%s endpoint=%s", cfg.S3.Bucket, cfg.S3.Endpoint)
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.FrontCacheEntries > 0 {
		front, err := cached.NewStore(origin, cfg.FrontCacheEntries)
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		return front, closeFn, nil
	}
	return origin, closeFn, nil
}
