package app

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"dirsummary/internal/cache/cached"
	"dirsummary/internal/cache/disk"
	"dirsummary/internal/cache/memory"
	"dirsummary/internal/cache/notes"
	"dirsummary/internal/config"
	"dirsummary/internal/driver"
)

func TestOpenStoreMemory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreMemory, MemoryEntries: 8}
	a, err := New(context.Background(), cfg, t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	if _, ok := a.Store.(*memory.Store); !ok {
		t.Fatalf("store = %T, want *memory.Store", a.Store)
	}
	if _, ok := a.Metrics(); ok {
		t.Fatalf("metrics reported without a front cache")
	}
}

func TestOpenStoreDiskExplicitRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	cfg := &config.Config{Store: config.StoreDisk, Disk: config.DiskConfig{Root: root}}
	a, err := New(context.Background(), cfg, t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	if _, ok := a.Store.(*disk.Store); !ok {
		t.Fatalf("store = %T, want *disk.Store", a.Store)
	}
}

func TestOpenStoreFrontCache(t *testing.T) {
	cfg := &config.Config{Store: config.StoreMemory, FrontCacheEntries: 4}
	a, err := New(context.Background(), cfg, t.TempDir(), Options{Workers: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	if _, ok := a.Store.(*cached.Store); !ok {
		t.Fatalf("store = %T, want *cached.Store", a.Store)
	}
	if _, ok := a.Metrics(); !ok {
		t.Fatalf("expected front cache metrics")
	}
	if a.Driver.Workers != 3 {
		t.Fatalf("workers = %d, want 3", a.Driver.Workers)
	}
}

func TestOpenStoreDefaultsToNotes(t *testing.T) {
	a, err := New(context.Background(), &config.Config{Workers: 2}, t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := a.Store.(*notes.Store); !ok {
		t.Fatalf("store = %T, want *notes.Store", a.Store)
	}
	if a.Driver.Workers != 2 {
		t.Fatalf("workers = %d, want 2 from config", a.Driver.Workers)
	}
}

func TestNoCacheSkipsStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	cfg := &config.Config{
		Store:       config.StoreDisk,
		Disk:        config.DiskConfig{Root: root},
		PostgresDSN: "postgres://127.0.0.1:1/none",
	}
	a, err := New(context.Background(), cfg, t.TempDir(), Options{NoCache: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Store != nil || a.Driver.Store != nil {
		t.Fatalf("store opened with NoCache: %T", a.Store)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("disk root touched with NoCache: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cfg.Store = config.StorePostgres
	if _, err := New(context.Background(), cfg, t.TempDir(), Options{NoCache: true}); err != nil {
		t.Fatalf("unreachable postgres with NoCache: %v", err)
	}
}

func TestOpenStoreUnknownKind(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Store: "tape"}, t.TempDir(), Options{})
	if err == nil || !strings.Contains(err.Error(), "tape") {
		t.Fatalf("err = %v, want unknown store error", err)
	}
}

func TestRunAgainstRealRepository(t *testing.T) {
	dir := initRepo(t, map[string]string{
		"a/x.png":   "\x89PNG\r\n\x1a\n",
		"a/b/y.png": "\x89PNG\r\n\x1a\n",
		"a/b/z.txt": "hello\n",
		"README.md": "# readme\n",
	})
	ctx := context.Background()

	for _, kind := range []config.StoreKind{config.StoreNotes, config.StoreDisk} {
		t.Run(string(kind), func(t *testing.T) {
			a, err := New(ctx, &config.Config{Store: kind}, dir, Options{})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer a.Close()

			first, err := a.Driver.Run(ctx, driver.Request{Recursive: true})
			if err != nil {
				t.Fatalf("first run: %v", err)
			}
			if first.Decision != driver.Recompute || first.WriteErr != nil {
				t.Fatalf("first run decision=%v writeErr=%v", first.Decision, first.WriteErr)
			}
			if got := first.Result.Directories["a"]["png"].Count; got != 2 {
				t.Fatalf("a png count = %d, want 2", got)
			}

			second, err := a.Driver.Run(ctx, driver.Request{Recursive: true})
			if err != nil {
				t.Fatalf("second run: %v", err)
			}
			if second.Decision != driver.Reuse {
				t.Fatalf("second run decision = %v, want reuse", second.Decision)
			}
			if string(second.Payload) != string(first.Payload) {
				t.Fatalf("payload changed between runs")
			}
		})
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "dir-summary")); err != nil {
		t.Fatalf("disk store root not created under git dir: %v", err)
	}
}

func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	t.Setenv("GIT_AUTHOR_NAME", "test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	for _, args := range [][]string{{"init", "-q"}, {"add", "-A"}, {"commit", "-q", "-m", "initial"}} {
		out, err := exec.Command("git", append([]string{"-C", root}, args...)...).CombinedOutput()
		if err != nil {
			t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, out)
		}
	}
	return root
}
