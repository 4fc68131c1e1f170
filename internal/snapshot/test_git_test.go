package snapshot

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"testing"
)

func TestResolveDefaultsToHEAD(t *testing.T) {
	calls := stubGit(t, func(args []string, _ []byte) ([]byte, error) {
		return []byte("0123abcd\n"), nil
	})
	id, err := Open("").Resolve(context.Background(), "  ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "0123abcd" {
		t.Fatalf("id=%q", id)
	}
	want := []string{"rev-parse", "--verify", "--quiet", "HEAD^{commit}"}
	if !slices.Equal((*calls)[0], want) {
		t.Fatalf("args=%v want %v", (*calls)[0], want)
	}
}

func TestResolveFailureNamesReference(t *testing.T) {
	stubGit(t, func([]string, []byte) ([]byte, error) { return nil, errors.New("exit status 1") })
	_, err := Open(".").Resolve(context.Background(), "no-such-branch")
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "no-such-branch") {
		t.Fatalf("error does not name the reference: %q", got)
	}
}

func TestListFilesParsesTree(t *testing.T) {
	out := "100644 blob aaa\ta/x.png\x00" +
		"100644 blob bbb\ta/b/with space.txt\x00" +
		"160000 commit ccc\tvendor/sub\x00" +
		"100755 blob ddd\tc.sh\x00"
	stubGit(t, func([]string, []byte) ([]byte, error) { return []byte(out), nil })
	files, err := Open(".").ListFiles(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a/x.png", "a/b/with space.txt", "c.sh"}
	if !slices.Equal(files, want) {
		t.Fatalf("files=%v want %v", files, want)
	}
}

func TestListFilesFailure(t *testing.T) {
	stubGit(t, func([]string, []byte) ([]byte, error) { return nil, errors.New("bad object") })
	if _, err := Open(".").ListFiles(context.Background(), "deadbeef"); !errors.Is(err, ErrListing) {
		t.Fatalf("expected ErrListing, got %v", err)
	}
}

func TestNoteMissingIsNotAnError(t *testing.T) {
	stubGit(t, func([]string, []byte) ([]byte, error) {
		return nil, errors.New("git notes show: exit status 1: error: no note found for object deadbeef.")
	})
	_, found, err := Open(".").Note(context.Background(), "refs/notes/x", "deadbeef")
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
}

func TestGitCommandPinsLocale(t *testing.T) {
	t.Setenv("LC_ALL", "de_DE.UTF-8")
	cmd := gitCommand(context.Background(), "/repo", "notes", "show")
	if want := []string{"git", "-C", "/repo", "notes", "show"}; !slices.Equal(cmd.Args, want) {
		t.Fatalf("args=%v want %v", cmd.Args, want)
	}
	last := ""
	for _, kv := range cmd.Env {
		if strings.HasPrefix(kv, "LC_ALL=") {
			last = kv
		}
	}
	if last != "LC_ALL=C" {
		t.Fatalf("effective LC_ALL=%q want LC_ALL=C", last)
	}
}

func TestReadHeadUsesLimitedReader(t *testing.T) {
	var gotN int
	prev := readGitHead
	readGitHead = func(_ context.Context, _ string, n int, args ...string) ([]byte, error) {
		gotN = n
		if want := []string{"cat-file", "blob", "abc:a/x.bin"}; !slices.Equal(args, want) {
			t.Fatalf("args=%v want %v", args, want)
		}
		return []byte("head"), nil
	}
	t.Cleanup(func() { readGitHead = prev })
	calls := stubGit(t, func([]string, []byte) ([]byte, error) {
		t.Fatalf("full read used for a bounded head")
		return nil, nil
	})

	head, err := Open(".").ReadHead(context.Background(), "abc", "a/x.bin", 3072)
	if err != nil || string(head) != "head" || gotN != 3072 {
		t.Fatalf("head=%q n=%d err=%v", head, gotN, err)
	}
	if len(*calls) != 0 {
		t.Fatalf("unexpected full reads: %v", *calls)
	}
}

func TestReadHeadLargeBlob(t *testing.T) {
	big := bytes.Repeat([]byte("0123456789abcdef"), 1<<18) // 4 MiB
	root := initRepo(t, map[string]string{
		"big.bin":   string(big),
		"short.txt": "hi",
	})
	ctx := context.Background()
	repo := Open(root)
	id, err := repo.Resolve(ctx, "HEAD")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	head, err := repo.ReadHead(ctx, id, "big.bin", 3072)
	if err != nil || !bytes.Equal(head, big[:3072]) {
		t.Fatalf("big head len=%d err=%v", len(head), err)
	}
	short, err := repo.ReadHead(ctx, id, "short.txt", 3072)
	if err != nil || string(short) != "hi" {
		t.Fatalf("short head=%q err=%v", short, err)
	}
	if _, err := repo.ReadHead(ctx, id, "missing.txt", 3072); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestMissingNoteUnderForeignLocale(t *testing.T) {
	root := initRepo(t, map[string]string{"a.txt": "a"})
	t.Setenv("LC_ALL", "de_DE.UTF-8")
	t.Setenv("LANG", "de_DE.UTF-8")
	ctx := context.Background()
	repo := Open(root)
	id, err := repo.Resolve(ctx, "HEAD")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, found, err := repo.Note(ctx, "refs/notes/test", id); err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
}

func TestRealRepository(t *testing.T) {
	root := initRepo(t, map[string]string{
		"a/x.png":   "png",
		"a/b/z.png": "png",
		"c.txt":     "hello",
	})
	ctx := context.Background()
	repo := Open(root)

	id, err := repo.Resolve(ctx, "HEAD")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	files, err := repo.ListFiles(ctx, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(files)
	if want := []string{"a/b/z.png", "a/x.png", "c.txt"}; !slices.Equal(files, want) {
		t.Fatalf("files=%v want %v", files, want)
	}

	head, err := repo.ReadHead(ctx, id, "c.txt", 3)
	if err != nil || string(head) != "hel" {
		t.Fatalf("head=%q err=%v", head, err)
	}

	const ref = "refs/notes/test"
	if _, found, err := repo.Note(ctx, ref, id); err != nil || found {
		t.Fatalf("before add: found=%v err=%v", found, err)
	}
	if err := repo.AddNote(ctx, ref, id, []byte(`{"version": 1}`), false); err != nil {
		t.Fatalf("add note: %v", err)
	}
	if err := repo.AddNote(ctx, ref, id, []byte(`{"version": 2}`), false); err == nil {
		t.Fatalf("expected refusal without force")
	}
	if err := repo.AddNote(ctx, ref, id, []byte(`{"version": 2}`), true); err != nil {
		t.Fatalf("force add: %v", err)
	}
	note, found, err := repo.Note(ctx, ref, id)
	if err != nil || !found {
		t.Fatalf("after add: found=%v err=%v", found, err)
	}
	if string(note) != "{\"version\": 2}\n" {
		t.Fatalf("note=%q", note)
	}

	if _, err := repo.Resolve(ctx, "missing-ref"); !errors.Is(err, ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}
