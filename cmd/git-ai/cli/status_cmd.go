package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/worklog"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current branch's pending working log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	store, err := gitstore.Open()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return Silent(err)
	}

	branch, err := store.CurrentBranch()
	if err != nil {
		fmt.Fprintln(out, "HEAD is detached; no working log to report")
		return nil
	}

	log, err := worklog.Load(branch)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return Silent(err)
	}

	if len(log.Entries) == 0 {
		fmt.Fprintf(out, "%s: no pending checkpoints\n", branch)
		return nil
	}

	last := log.Entries[len(log.Entries)-1]
	fmt.Fprintf(out, "%s: %d pending checkpoint(s), last at %s\n", branch, len(log.Entries), last.WallTime.Format("2006-01-02 15:04:05"))

	touched := map[string]struct{}{}
	for _, e := range log.Entries {
		for path := range e.PerFile {
			touched[path] = struct{}{}
		}
	}
	fmt.Fprintf(out, "%d file(s) touched since last commit\n", len(touched))
	return nil
}
