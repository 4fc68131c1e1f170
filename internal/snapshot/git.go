// Package snapshot resolves references to commits and lists the files a
// commit contains, using the git binary.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

var (
	// ErrResolution means a reference does not name a commit.
	ErrResolution = errors.New("unable to resolve reference")
	// ErrListing means the files of a snapshot could not be enumerated.
	ErrListing = errors.New("unable to list snapshot")
)

// ID is a resolved commit hash.
type ID string

func (id ID) String() string { return string(id) }

// runGit is injectable in tests.
var runGit = func(ctx context.Context, dir string, stdin []byte, args ...string) ([]byte, error) {
	cmd := gitCommand(ctx, dir, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// readGitHead runs git and keeps at most n bytes of stdout; the process is
// killed once n bytes have been read. Injectable in tests.
var readGitHead = func(ctx context.Context, dir string, n int, args ...string) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmd := gitCommand(ctx, dir, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	head, readErr := io.ReadAll(io.LimitReader(stdout, int64(n)))
	full := readErr == nil && len(head) == n
	if full {
		cancel()
	}
	waitErr := cmd.Wait()
	if full {
		return head, nil
	}
	if waitErr != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), waitErr, strings.TrimSpace(stderr.String()))
	}
	if readErr != nil {
		return nil, readErr
	}
	return head, nil
}

// gitCommand pins the C locale so stderr matching does not depend on the
// user's language.
func gitCommand(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "LC_ALL=C", "LANGUAGE=C")
	return cmd
}

// Repo is a git working copy or bare repository.
type Repo struct {
	Dir string
}

func Open(dir string) *Repo {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	return &Repo{Dir: dir}
}

// Resolve maps a human reference such as HEAD, a branch or a short hash to
// the commit it names.
func (r *Repo) Resolve(ctx context.Context, ref string) (ID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = "HEAD"
	}
	out, err := runGit(ctx, r.Dir, nil, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("%w %s: %v", ErrResolution, ref, err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("%w %s", ErrResolution, ref)
	}
	return ID(id), nil
}

// ListFiles returns every blob path in the snapshot, slash separated and
// relative to the tree root. Submodule entries are skipped.
func (r *Repo) ListFiles(ctx context.Context, id ID) ([]string, error) {
	out, err := runGit(ctx, r.Dir, nil, "ls-tree", "-r", "-z", "--full-tree", string(id))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrListing, id, err)
	}
	var files []string
	for _, rec := range bytes.Split(out, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		// <mode> SP <type> SP <object> TAB <path>
		meta, p, ok := bytes.Cut(rec, []byte{'\t'})
		if !ok {
			return nil, fmt.Errorf("%w %s: unexpected ls-tree record %q", ErrListing, id, rec)
		}
		fields := bytes.Fields(meta)
		if len(fields) < 2 || string(fields[1]) != "blob" {
			continue
		}
		files = append(files, string(p))
	}
	return files, nil
}

// ReadHead returns at most n bytes of the blob at p in the snapshot without
// reading the rest of it. n <= 0 reads the whole blob.
func (r *Repo) ReadHead(ctx context.Context, id ID, p string, n int) ([]byte, error) {
	args := []string{"cat-file", "blob", string(id) + ":" + p}
	if n <= 0 {
		return runGit(ctx, r.Dir, nil, args...)
	}
	return readGitHead(ctx, r.Dir, n, args...)
}

// Note returns the note attached to id under notesRef. found is false when
// the object has no note.
func (r *Repo) Note(ctx context.Context, notesRef string, id ID) (note []byte, found bool, err error) {
	out, err := runGit(ctx, r.Dir, nil, "notes", "--ref", notesRef, "show", string(id))
	if err != nil {
		if strings.Contains(err.Error(), "no note found") {
			return nil, false, nil
		}
		return nil, false, err
	}
	return out, true, nil
}

// AddNote attaches content to id under notesRef. Without force an existing
// note makes git refuse the write.
func (r *Repo) AddNote(ctx context.Context, notesRef string, id ID, content []byte, force bool) error {
	args := []string{"notes", "--ref", notesRef, "add"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, "-F", "-", string(id))
	_, err := runGit(ctx, r.Dir, content, args...)
	return err
}

// GitDir returns the absolute path of the repository's git directory.
func (r *Repo) GitDir(ctx context.Context) (string, error) {
	out, err := runGit(ctx, r.Dir, nil, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
