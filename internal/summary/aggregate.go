package summary

import (
	"context"
	"strings"
	"sync"
)

// Options controls how Build aggregates.
type Options struct {
	// Recursive rolls each directory's counts up into every ancestor.
	Recursive bool
	// Workers > 1 classifies files concurrently in that many batches.
	Workers int
}

// CleanPath strips a leading "./" and trailing "/" from a repo-relative path.
// Every other byte is kept, since git allows it in a file name. The root
// becomes "".
func CleanPath(p string) string {
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimRight(p, "/")
	if p == "." {
		return RootDir
	}
	return p
}

// ParentDir returns p with its final "/" segment removed, or RootDir when p
// has no parent.
func ParentDir(p string) string {
	p = CleanPath(p)
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return RootDir
	}
	return CleanPath(p[:i])
}

// BuildDirect classifies every path and counts each classified file against
// its immediate parent directory. Unclassified files touch nothing.
func BuildDirect(paths []string, c Classifier) map[string]DirectoryCounts {
	out := map[string]DirectoryCounts{}
	for _, p := range paths {
		fc := c.Classify(p)
		if fc.TypeLabel == "" {
			continue
		}
		add(out, ParentDir(p), fc.TypeLabel, fc.DisplayLabel, 1)
	}
	return out
}

// RollUp adds every directory's counts into itself and each of its ancestors
// up to RootDir. The input must hold direct counts; applying RollUp to its own
// output double counts.
func RollUp(direct map[string]DirectoryCounts) map[string]DirectoryCounts {
	out := make(map[string]DirectoryCounts, len(direct))
	for dir, counts := range direct {
		for typeLabel, info := range counts {
			cur := CleanPath(dir)
			for {
				add(out, cur, typeLabel, info.DisplayLabel, info.Count)
				if cur == RootDir {
					break
				}
				cur = ParentDir(cur)
			}
		}
	}
	return out
}

// Build produces the versioned summary for a flat listing of file paths.
func Build(ctx context.Context, paths []string, c Classifier, opts Options) (Result, error) {
	direct, err := buildDirectConcurrent(ctx, paths, c, opts.Workers)
	if err != nil {
		return Result{}, err
	}
	res := NewResult()
	if opts.Recursive {
		res.Directories = RollUp(direct)
	} else {
		res.Directories = direct
	}
	return res, nil
}

// buildDirectConcurrent splits paths into contiguous batches, folds each batch
// on its own goroutine and merges the partials in batch order. Merging in order
// keeps the first-seen display label identical to a sequential fold.
func buildDirectConcurrent(ctx context.Context, paths []string, c Classifier, workers int) (map[string]DirectoryCounts, error) {
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return BuildDirect(paths, c), nil
	}

	size := (len(paths) + workers - 1) / workers
	partials := make([]map[string]DirectoryCounts, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		lo := i * size
		hi := min(lo+size, len(paths))
		go func(i, lo, hi int) {
			defer wg.Done()
			if lo >= hi || ctx.Err() != nil {
				return
			}
			partials[i] = BuildDirect(paths[lo:hi], c)
		}(i, lo, hi)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := map[string]DirectoryCounts{}
	for _, part := range partials {
		for dir, counts := range part {
			for typeLabel, info := range counts {
				add(out, dir, typeLabel, info.DisplayLabel, info.Count)
			}
		}
	}
	return out, nil
}

// Totals returns the number of classified files per type in the whole
// snapshot. A recursive result already holds that at the root.
func Totals(r Result, recursive bool) map[string]int64 {
	out := map[string]int64{}
	if recursive {
		for typeLabel, info := range r.Directories[RootDir] {
			out[typeLabel] = info.Count
		}
		return out
	}
	for _, counts := range r.Directories {
		for typeLabel, info := range counts {
			out[typeLabel] += info.Count
		}
	}
	return out
}
