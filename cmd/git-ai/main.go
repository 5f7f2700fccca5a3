// Command git-ai is both a CLI (checkpoint, status, doctor, install-hooks,
// ...) and, when invoked under the name "git", a transparent proxy in
// front of the real git binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/cmd/git-ai/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if proxied, code := maybeRunAsGit(ctx); proxied {
		cancel()
		os.Exit(code)
	}

	rootCmd := cli.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var silent *cli.SilentError
		switch {
		case errors.As(err, &silent):
			// the command already printed its own error
		case strings.Contains(err.Error(), "unknown command") || strings.Contains(err.Error(), "unknown flag"):
			showSuggestion(rootCmd, err)
		default:
			fmt.Fprintln(rootCmd.OutOrStderr(), err)
		}
		cancel()
		os.Exit(1)
	}
	cancel()
}

// maybeRunAsGit detects whether this binary was invoked under the name
// "git" (the transparent-proxy entrypoint, used when this binary sits on
// PATH as "git" ahead of the real git; `git-ai install-hooks` records the
// real git's path but does not place the binary on PATH) and, if so, runs
// the proxy and reports whether it handled the invocation.
func maybeRunAsGit(ctx context.Context) (handled bool, exitCode int) {
	name := filepath.Base(os.Args[0])
	if name != "git" && name != "git.exe" {
		return false, 0
	}
	code, err := cli.RunProxy(ctx, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return true, 1
	}
	return true, code
}

func showSuggestion(cmd *cobra.Command, err error) {
	fmt.Fprint(cmd.OutOrStderr(), cmd.UsageString())
	fmt.Fprintf(cmd.OutOrStderr(), "\nError: Invalid usage: %v\n", err)
}
