// Package config reads settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StoreKind string

const (
	StoreNotes    StoreKind = "notes"
	StoreDisk     StoreKind = "disk"
	StoreMemory   StoreKind = "memory"
	StorePostgres StoreKind = "postgres"
	StoreS3       StoreKind = "s3"
)

type Config struct {
	Store StoreKind
	Disk  DiskConfig
	S3    S3Config

	PostgresDSN string
	// Workers is the number of classification batches run in parallel.
	Workers int
	// FrontCacheEntries sizes the in-process cache in front of the store. 0 disables it.
	FrontCacheEntries int
	// MemoryEntries bounds the memory store.
	MemoryEntries int
}

type DiskConfig struct {
	// Root may be empty; the caller then picks a directory inside the repository.
	Root       string
	TTL        time.Duration
	MaxEntries int
	MaxBytes   int64
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// CanUseS3 reports whether enough is configured to build a client.
func (c S3Config) CanUseS3() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	kind := StoreKind(strings.ToLower(firstNonEmpty(get("DIRSUMMARY_STORE"), string(StoreNotes))))
	switch kind {
	case StoreNotes, StoreDisk, StoreMemory, StorePostgres, StoreS3:
	default:
		return nil, fmt.Errorf("unknown store %q (want notes, disk, memory, postgres or s3)", kind)
	}

	cfg := &Config{
		Store: kind,
		Disk: DiskConfig{
			Root:       get("DIRSUMMARY_DISK_ROOT"),
			TTL:        parseDuration("DIRSUMMARY_DISK_TTL", get("DIRSUMMARY_DISK_TTL"), 30*24*time.Hour),
			MaxEntries: parseInt("DIRSUMMARY_DISK_MAX_ENTRIES", get("DIRSUMMARY_DISK_MAX_ENTRIES"), 4096),
			MaxBytes:   int64(parseInt("DIRSUMMARY_DISK_MAX_BYTES", get("DIRSUMMARY_DISK_MAX_BYTES"), 0)),
		},
		S3: S3Config{
			Endpoint:  get("DIRSUMMARY_S3_ENDPOINT"),
			Region:    firstNonEmpty(get("DIRSUMMARY_S3_REGION"), "us-east-1"),
			AccessKey: firstNonEmpty(get("DIRSUMMARY_S3_ACCESS_KEY"), get("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(get("DIRSUMMARY_S3_SECRET_KEY"), get("MINIO_ROOT_PASSWORD")),
			Bucket:    firstNonEmpty(get("DIRSUMMARY_S3_BUCKET"), "dir-summaries"),
			Prefix:    get("DIRSUMMARY_S3_PREFIX"),
			UseSSL:    parseBool("DIRSUMMARY_S3_USE_SSL", get("DIRSUMMARY_S3_USE_SSL"), true),
		},
		PostgresDSN:       get("DIRSUMMARY_PG_DSN"),
		Workers:           parseInt("DIRSUMMARY_WORKERS", get("DIRSUMMARY_WORKERS"), 1),
		FrontCacheEntries: parseInt("DIRSUMMARY_FRONT_CACHE", get("DIRSUMMARY_FRONT_CACHE"), 0),
		MemoryEntries:     parseInt("DIRSUMMARY_MEMORY_ENTRIES", get("DIRSUMMARY_MEMORY_ENTRIES"), 1024),
	}

	if cfg.Store == StorePostgres && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("DIRSUMMARY_PG_DSN is required for the postgres store")
	}
	if cfg.Store == StoreS3 && !cfg.S3.CanUseS3() {
		return nil, fmt.Errorf("s3 store needs DIRSUMMARY_S3_ENDPOINT, access key, secret key and bucket")
	}
	return cfg, nil
}

func parseInt(name, raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("config: ignoring %s=%q, using %d", name, raw, def)
		return def
	}
	return v
}

func parseDuration(name, raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.Printf("config: ignoring %s=%q, using %s", name, raw, def)
		return def
	}
	return v
}

func parseBool(name, raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: ignoring %s=%q, using %v", name, raw, def)
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
