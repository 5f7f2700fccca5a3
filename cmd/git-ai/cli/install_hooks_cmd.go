package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/gitaicfg"
	"github.com/git-ai/git-ai/internal/paths"
)

// postRewriteHookScript shells out to this same binary's hidden
// hook-post-rewrite command, forwarding the old/new sha pairs git writes to
// its stdin per githooks(5).
const postRewriteHookScript = `#!/bin/sh
exec "%s" hook-post-rewrite
`

func newInstallHooksCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "install-hooks",
		Short: "Configure git-ai's real-git path and the post-rewrite notes hook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstallHooks(cmd, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "reinstall even if already configured")
	return cmd
}

func runInstallHooks(cmd *cobra.Command, force bool) error {
	out := cmd.OutOrStdout()
	self := selfPath()

	existing, _ := gitaicfg.Load(self)
	if existing != nil && !force {
		fmt.Fprintf(out, "git-ai is already configured (git_path=%s). Use --force to reconfigure.\n", existing.GitPath)
		return installPostRewriteHook(out, self)
	}

	gitPath, err := gitaicfg.DiscoverGitPath(self)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return Silent(err)
	}

	if !confirmInstall(gitPath) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	cfg := &gitaicfg.Config{GitPath: gitPath}
	if err := gitaicfg.Save(cfg); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return Silent(err)
	}
	fmt.Fprintf(out, "✓ git_path configured (%s)\n", gitPath)

	return installPostRewriteHook(out, self)
}

func confirmInstall(gitPath string) bool {
	confirmed := true
	form := NewAccessibleForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Install git-ai in front of %s?", gitPath)).
				Description("git-ai will record this as the real git it wraps when invoked as \"git\", and install a post-rewrite hook in this repository.").
				Affirmative("Yes").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false //nolint:nilerr // user cancelled or non-interactive; treat as declined
	}
	return confirmed
}

// installPostRewriteHook writes .git/hooks/post-rewrite so rebases,
// amends, and filter-branch runs carry notes forward to their new commit
// ids instead of leaving them orphaned on the rewritten-away hash.
func installPostRewriteHook(out io.Writer, self string) error {
	gitDir, err := paths.GitDir()
	if err != nil {
		return err
	}
	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0o750); err != nil {
		return fmt.Errorf("creating hooks dir: %w", err)
	}

	hookPath := filepath.Join(hooksDir, "post-rewrite")
	script := fmt.Sprintf(postRewriteHookScript, self)
	if err := os.WriteFile(hookPath, []byte(script), 0o755); err != nil { //nolint:gosec // hook scripts must be executable
		return fmt.Errorf("writing post-rewrite hook: %w", err)
	}

	fmt.Fprintln(out, "✓ post-rewrite hook installed")
	return nil
}
