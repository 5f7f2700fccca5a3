package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/note"
)

// fileStats summarizes one file's note for `stats`/`--json` output.
type fileStats struct {
	Path       string `json:"path"`
	HumanLines int    `json:"human_lines"`
	AgentLines int    `json:"agent_lines"`
}

type statsReport struct {
	Commit     string      `json:"commit"`
	Files      []fileStats `json:"files"`
	TotalFiles int         `json:"total_files"`
}

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats [commit]",
		Short: "Summarize a commit's recorded human/AI line attribution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}

			store, err := gitstore.Open()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return Silent(err)
			}
			commitHash, err := store.ResolveCommit(rev)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return Silent(err)
			}

			n, ok, err := note.NewManager(store).Read(commitHash)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return Silent(err)
			}

			report := statsReport{Commit: commitHash}
			if ok {
				report.Files = summarize(n)
			}
			if tree, treeErr := store.CommitTree(commitHash); treeErr == nil {
				if treePaths, pathsErr := store.TreePaths(tree); pathsErr == nil {
					report.TotalFiles = len(treePaths)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printStats(cmd, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable JSON instead of plain text")
	return cmd
}

func summarize(n model.AuthorshipNote) []fileStats {
	paths := make([]string, 0, len(n.Files))
	for p := range n.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	stats := make([]fileStats, 0, len(paths))
	for _, p := range paths {
		fn := n.Files[p]
		var fs fileStats
		fs.Path = p
		for _, r := range fn.Runs {
			if r.Author == model.Agent {
				fs.AgentLines += r.Len
			} else {
				fs.HumanLines += r.Len
			}
		}
		stats = append(stats, fs)
	}
	return stats
}

func printStats(cmd *cobra.Command, report statsReport) {
	out := cmd.OutOrStdout()
	if len(report.Files) == 0 {
		fmt.Fprintf(out, "%s: no recorded attribution\n", report.Commit)
		return
	}
	var totalHuman, totalAgent int
	for _, fs := range report.Files {
		fmt.Fprintf(out, "%-40s human=%-6d agent=%-6d\n", fs.Path, fs.HumanLines, fs.AgentLines)
		totalHuman += fs.HumanLines
		totalAgent += fs.AgentLines
	}
	total := totalHuman + totalAgent
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(totalAgent) / float64(total)
	}
	fmt.Fprintf(out, "\n%s: %d human, %d agent (%.1f%% agent)\n", report.Commit, totalHuman, totalAgent, pct)
	if report.TotalFiles > 0 {
		fmt.Fprintf(out, "%d/%d files have recorded attribution\n", len(report.Files), report.TotalFiles)
	}
}
