package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/gitaicfg"
	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/proxy"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that git-ai is correctly configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runDoctor(cmd)
			return nil
		},
	}
}

func runDoctor(cmd *cobra.Command) {
	out := cmd.OutOrStdout()

	cfg, err := gitaicfg.Load(selfPath())
	switch {
	case err != nil:
		fmt.Fprintf(out, "✗ config: %v\n", err)
	default:
		if info, statErr := os.Stat(cfg.GitPath); statErr == nil && !info.IsDir() {
			fmt.Fprintf(out, "✓ git_path: %s\n", cfg.GitPath)
		} else {
			fmt.Fprintf(out, "✗ git_path: %s does not resolve to an executable\n", cfg.GitPath)
		}
	}

	store, err := gitstore.Open()
	if err != nil {
		fmt.Fprintf(out, "✗ repository: %v\n", err)
	} else {
		fmt.Fprintln(out, "✓ repository found")
		if _, resolveErr := store.ResolveCommit("refs/notes/ai"); resolveErr != nil {
			fmt.Fprintln(out, "  refs/notes/ai: not present yet (no commits have been checkpointed)")
		} else {
			fmt.Fprintln(out, "✓ refs/notes/ai present")
		}
		if branch := store.DefaultBranch(); branch != "" {
			fmt.Fprintf(out, "  default branch: %s\n", branch)
		}
	}

	samples := proxy.RecentOverhead()
	if len(samples) == 0 {
		fmt.Fprintln(out, "  proxy overhead: no samples recorded by this process")
		return
	}
	var total int64
	for _, d := range samples {
		total += d.Nanoseconds()
	}
	avg := total / int64(len(samples))
	fmt.Fprintf(out, "✓ proxy overhead: avg %dµs over last %d invocation(s)\n", avg/1000, len(samples))
}
