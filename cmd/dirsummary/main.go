package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"dirsummary/internal/app"
	"dirsummary/internal/config"
	"dirsummary/internal/driver"
	"dirsummary/internal/render"
	"dirsummary/internal/summary"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirsummary [reference]",
		Short: "Summarize file types per directory at a git snapshot",
		Long: `dirsummary counts files by type in every directory of a commit.

Results are cached per commit, so asking again for the same snapshot is
answered from the cache until the summary format changes.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().Bool("no-cache", false, "Always recompute and never touch the cache")
	cmd.Flags().Bool("recursive", false, "Include every descendant in each directory's counts")
	cmd.Flags().String("repo", ".", "Path to the repository")
	cmd.Flags().String("format", string(render.FormatJSON), "Output format: json|yaml|text")
	cmd.Flags().Int("workers", 0, "Classification workers (defaults to DIRSUMMARY_WORKERS)")
	cmd.Flags().Bool("stats", false, "Log per-type totals and cache metrics")
	return cmd
}

func runSummary(cmd *cobra.Command, args []string, stdout, stderr io.Writer) error {
	flags := cmd.Flags()
	noCache, _ := flags.GetBool("no-cache")
	recursive, _ := flags.GetBool("recursive")
	repoDir, _ := flags.GetString("repo")
	formatRaw, _ := flags.GetString("format")
	workers, _ := flags.GetInt("workers")
	stats, _ := flags.GetBool("stats")

	format, err := render.ParseFormat(formatRaw)
	if err != nil {
		return err
	}
	ref := "HEAD"
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		ref = args[0]
	}

	log.SetOutput(stderr)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, repoDir, app.Options{Workers: workers, NoCache: noCache})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	out, err := a.Driver.Run(ctx, driver.Request{Reference: ref, NoCache: noCache, Recursive: recursive})
	if err != nil {
		return err
	}
	if out.WriteErr != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", out.WriteErr)
	}
	if stats {
		logStats(a, out, recursive)
	}
	return render.Write(stdout, format, out.Payload, out.Result)
}

func logStats(a *app.App, out *driver.Outcome, recursive bool) {
	totals := summary.Totals(out.Result, recursive)
	labels := make([]string, 0, len(totals))
	for l := range totals {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%d", l, totals[l]))
	}
	log.Printf("snapshot %s: %s, %d directories, totals: %s",
		out.Snapshot, out.Decision, len(out.Result.Directories), strings.Join(parts, " "))
	if m, ok := a.Metrics(); ok {
		log.Printf("front cache: hits=%d misses=%d origin_reads=%d origin_writes=%d",
			m.Hits, m.Misses, m.OriginReads, m.OriginWrites)
	}
}
