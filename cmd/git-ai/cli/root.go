// Package cli implements git-ai's command-line surface: the cobra command
// tree invoked directly (checkpoint, status, blame, doctor, install-hooks,
// ...) and RunProxy, the entrypoint used when the binary is invoked under
// the name "git".
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/flusher"
	"github.com/git-ai/git-ai/internal/gitaicfg"
	"github.com/git-ai/git-ai/internal/proxy"
	"github.com/git-ai/git-ai/internal/versioncheck"
)

const gettingStarted = `

Getting Started:
  Run 'git-ai install-hooks' to put git-ai in front of your real git
  binary, then use git exactly as you always have. Every commit, merge,
  revert, and cherry-pick will carry per-line human/AI attribution.

`

// Version and Commit are overridden at release build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// NewRootCmd builds git-ai's command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git-ai",
		Short: "Track per-line human/AI authorship across your git history",
		Long:  "git-ai tracks who wrote each line of code, human or AI agent, and keeps that attribution attached through rebases, squashes, and cherry-picks." + gettingStarted,
		// main.go handles error printing, to avoid printing it twice.
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			cfg, _ := gitaicfg.Load(selfPath())
			enabled := cfg != nil && !cfg.IgnorePrompts
			client := flusher.NewClient(Version, enabled)
			flusher.RunDetached(func() { client.Close() })
			_ = cmd
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newCheckpointCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newBlameCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newInstallHooksCmd())
	cmd.AddCommand(newFlushLogsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newHookPostRewriteCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("git-ai %s (%s)\n", Version, Commit)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			if nudge := versioncheck.Nudge(Version, os.Getenv("GIT_AI_LATEST_VERSION")); nudge != "" {
				fmt.Println(nudge)
			}
		},
	}
}

// selfPath returns the path of the running executable, best-effort, for the
// config's proxy-recursion guard.
func selfPath() string {
	p, err := os.Executable()
	if err != nil {
		return ""
	}
	return p
}

// RunProxy is the entrypoint used when the binary is invoked as "git": it
// loads the user's configured real-git path and hands argv straight to
// internal/proxy, which execs it transparently.
func RunProxy(ctx context.Context, argv []string) (int, error) {
	cfg, err := gitaicfg.Load(selfPath())
	if err != nil {
		return 1, err
	}
	return proxy.New(cfg.GitPath).Run(ctx, argv)
}
