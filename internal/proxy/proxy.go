// Package proxy implements git-ai's transparent git wrapper: it receives
// the exact argv the user (or their shell alias) intended for git, execs
// the real git binary with that argv (adjusted only where a subcommand
// needs a refspec injected), and folds any pending working-log checkpoints
// into a commit note once a commit-creating subcommand succeeds.
package proxy

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/logging"
	"github.com/git-ai/git-ai/internal/materializer"
	"github.com/git-ai/git-ai/internal/refspec"
)

// handler describes how one git subcommand is treated by the proxy.
type handler struct {
	// inject rewrites argv before exec, e.g. to add the notes refspec.
	inject func(argv []string) []string
	// materialize runs once the real git command exits 0, folding pending
	// attribution into a note. argv is the original (pre-inject) argv, so
	// it can be inspected for subcommand-specific flags like --squash.
	materialize func(p *Proxy, argv []string) error
}

// dispatch maps a subcommand name to its handler. Subcommands not listed
// here (checkout, switch, status, log, diff, ...) are passed through
// untouched: full transparency is the default, special-casing is the
// exception.
var dispatch = map[string]handler{
	"commit":      {materialize: (*Proxy).materializeCommit},
	"merge":       {materialize: (*Proxy).materializeMerge},
	"revert":      {materialize: (*Proxy).materializeSimple},
	"cherry-pick": {materialize: (*Proxy).materializeSimple},
	"fetch":       {inject: refspec.InjectFetch},
	"pull":        {inject: refspec.InjectFetch},
	"push":        {inject: refspec.InjectPush},
}

// Proxy wraps a real git binary.
type Proxy struct {
	GitPath string
}

// New returns a Proxy that execs the real git at gitPath.
func New(gitPath string) *Proxy {
	return &Proxy{GitPath: gitPath}
}

// Run executes argv (git's own argv, i.e. not including "git" itself)
// against the real git binary, applying any subcommand-specific refspec
// injection and post-success materialization, and returns the process's
// exit code.
func (p *Proxy) Run(ctx context.Context, argv []string) (int, error) {
	start := time.Now()
	sub := subcommand(argv)
	h := dispatch[sub]

	realArgv := argv
	if h.inject != nil {
		realArgv = h.inject(argv)
	}
	overhead := time.Since(start)

	code, err := p.exec(ctx, realArgv)
	if err != nil {
		return code, err
	}

	if code == 0 && h.materialize != nil {
		matStart := time.Now()
		if merr := h.materialize(p, argv); merr != nil {
			logging.Error(ctx, "post-command materialization failed", "subcommand", sub, "error", merr.Error())
		}
		overhead += time.Since(matStart)
	}
	recordOverhead(overhead)

	return code, nil
}

// overheadRingSize bounds how many recent per-invocation timings `git-ai
// doctor` can report; older samples are simply overwritten.
const overheadRingSize = 32

var (
	overheadMu  sync.Mutex
	overheadBuf [overheadRingSize]time.Duration
	overheadLen int
	overheadPos int
)

func recordOverhead(d time.Duration) {
	overheadMu.Lock()
	defer overheadMu.Unlock()
	overheadBuf[overheadPos] = d
	overheadPos = (overheadPos + 1) % overheadRingSize
	if overheadLen < overheadRingSize {
		overheadLen++
	}
}

// RecentOverhead returns the proxy's own recent per-invocation overhead
// (refspec injection plus post-success materialization, excluding the
// wrapped git process's own runtime), newest first.
func RecentOverhead() []time.Duration {
	overheadMu.Lock()
	defer overheadMu.Unlock()
	out := make([]time.Duration, overheadLen)
	for i := 0; i < overheadLen; i++ {
		idx := (overheadPos - 1 - i + overheadRingSize) % overheadRingSize
		out[i] = overheadBuf[idx]
	}
	return out
}

// subcommand returns the first non-flag argument, which is conventionally
// git's subcommand name (this ignores git's own global flags like -C or
// --git-dir, which can precede the subcommand).
func subcommand(argv []string) string {
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if a == "" || a[0] != '-' {
			return a
		}
		// Global flags that take a separate value argument; skip both.
		switch a {
		case "-C", "--git-dir", "--work-tree", "-c":
			i++
		}
	}
	return ""
}

// exec runs the real git binary with realArgv, connecting it to a pty when
// stdin is a terminal (so editors, credential prompts, and `rebase -i`
// behave exactly as they would without git-ai in the path) and to plain
// inherited stdio otherwise.
func (p *Proxy) exec(ctx context.Context, realArgv []string) (int, error) {
	cmd := exec.CommandContext(ctx, p.GitPath, realArgv...)
	cmd.Env = os.Environ()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return p.execInteractive(cmd)
	}
	return p.execDirect(cmd)
}

func (p *Proxy) execDirect(cmd *exec.Cmd) (int, error) {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return exitCodeOf(err)
	}
	return 0, nil
}

func (p *Proxy) execInteractive(cmd *exec.Cmd) (int, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 1, fmt.Errorf("allocating pty: %w", err)
	}
	defer ptmx.Close() //nolint:errcheck // pty teardown; nothing actionable on error

	var restore func()
	if stdinFd := int(os.Stdin.Fd()); term.IsTerminal(stdinFd) {
		if old, err := term.MakeRaw(stdinFd); err == nil {
			restore = func() { _ = term.Restore(stdinFd, old) }
			defer restore()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, resizeSignal())
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	_ = pty.InheritSize(os.Stdin, ptmx)

	go func() { _, _ = io.Copy(ptmx, os.Stdin) }()
	outDone := make(chan struct{})
	go func() {
		_, _ = io.Copy(os.Stdout, ptmx)
		close(outDone)
	}()

	err = cmd.Wait()
	<-outDone
	if err != nil {
		return exitCodeOf(err)
	}
	return 0, nil
}

func exitCodeOf(err error) (int, error) {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}

// materializeSimple folds the current branch's pending working log into a
// note on HEAD. Used for subcommands that always create a normal commit
// (revert, cherry-pick) whose parent-note baseline already captures
// whatever history it builds on.
func (p *Proxy) materializeSimple(_ []string) error {
	return p.materializeHead()
}

// materializeCommit handles `git commit`. If a prior `git merge --squash`
// left component commits pending, this commit is the squash's actual
// commit (its tree is the union target): fold the union instead of the
// ordinary single-parent materialization. Otherwise this is an ordinary
// commit and behaves like materializeSimple.
func (p *Proxy) materializeCommit(_ []string) error {
	components, ok, err := loadPendingSquash()
	if err != nil {
		return err
	}
	if !ok {
		return p.materializeHead()
	}

	store, err := gitstore.Open()
	if err != nil {
		return err
	}
	branch, err := store.CurrentBranch()
	if err != nil {
		return clearPendingSquash() //nolint:nilerr // detached HEAD has no branch log to fold either
	}
	head, err := store.Head()
	if err != nil {
		return err
	}
	if merr := materializer.New(store).MaterializeSquash(branch, components, head.Hash().String()); merr != nil {
		return merr
	}
	return clearPendingSquash()
}

// materializeMerge handles `git merge`. A squash merge (`--squash`) doesn't
// create a commit by itself, so there is nothing to materialize yet: record
// the component commits being folded together for the `commit` that will
// follow. Any other merge produces a real commit immediately and is
// materialized like materializeSimple.
func (p *Proxy) materializeMerge(argv []string) error {
	source, ok := squashSource(argv)
	if !ok {
		return p.materializeHead()
	}

	store, err := gitstore.Open()
	if err != nil {
		return err
	}
	head, err := store.Head()
	if err != nil {
		return err
	}
	components, err := store.ComponentCommits(head.Hash().String(), source)
	if err != nil {
		return fmt.Errorf("resolving squash component commits: %w", err)
	}
	return savePendingSquash(components)
}

// squashSource reports whether argv (a `merge` subcommand's own argv,
// including "merge" itself) invokes a squash merge and, if so, the revision
// being squashed.
func squashSource(argv []string) (string, bool) {
	squash := false
	rev := ""
	for _, a := range argv[1:] {
		switch {
		case a == "--squash":
			squash = true
		case strings.HasPrefix(a, "-"):
			continue
		default:
			rev = a
		}
	}
	return rev, squash && rev != ""
}

// materializeHead folds the current branch's pending working log into a
// note on HEAD. Called after commit-creating subcommands succeed.
func (p *Proxy) materializeHead() error {
	store, err := gitstore.Open()
	if err != nil {
		return err
	}
	branch, err := store.CurrentBranch()
	if err != nil {
		return nil //nolint:nilerr // detached HEAD after a commit-creating command has no branch log to fold
	}
	head, err := store.Head()
	if err != nil {
		return err
	}
	return materializer.New(store).Materialize(branch, head.Hash().String())
}

