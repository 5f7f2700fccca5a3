package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/flusher"
	"github.com/git-ai/git-ai/internal/gitaicfg"
)

// newFlushLogsCmd drains any pending telemetry once, through the same
// flusher.RunDetached call (bounded by WallClockCap) that NewRootCmd's
// PersistentPostRun makes after every command. Exits non-zero only when
// config itself is bad;
// a telemetry endpoint being unreachable is swallowed, same as everywhere
// else in git-ai's best-effort telemetry.
func newFlushLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "flush-logs",
		Hidden: true,
		Short:  "Drain any pending telemetry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlushLogs(cmd)
		},
	}
}

func runFlushLogs(cmd *cobra.Command) error {
	cfg, err := gitaicfg.Load(selfPath())
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return Silent(err)
	}

	enabled := !cfg.IgnorePrompts
	client := flusher.NewClient(Version, enabled)
	flusher.RunDetached(func() { client.Close() })

	fmt.Fprintln(cmd.OutOrStdout(), "✓ telemetry flushed")
	return nil
}
