package cli

import (
	"bufio"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/gitaicfg"
	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/note"
)

// blameLine is one line of `git blame --porcelain` output, augmented with
// the authorship note's verdict for the commit that introduced it.
type blameLine struct {
	commit  string
	lineNum int
	text    string
	author  model.AuthorKind
	agentID string
}

func newBlameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                "blame <file> [blame-options...]",
		Short:              "Show per-line human/AI attribution alongside git blame",
		DisableFlagParsing: true,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := runBlame(args)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return Silent(err)
			}
			store, err := gitstore.Open()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return Silent(err)
			}
			notes := note.NewManager(store)
			cache := map[string]model.AuthorshipNote{}

			path := args[len(args)-1]
			out := cmd.OutOrStdout()
			for _, bl := range lines {
				attribute(&bl, path, notes, cache)
				tag := "human"
				if bl.author == model.Agent {
					tag = "agent"
					if bl.agentID != "" {
						tag = "agent:" + bl.agentID
					}
				}
				fmt.Fprintf(out, "%s %-12s %5d) %s\n", bl.commit[:min(8, len(bl.commit))], tag, bl.lineNum, bl.text)
			}
			return nil
		},
	}
	return cmd
}

func runBlame(args []string) ([]blameLine, error) {
	cfg, err := gitaicfg.Load(selfPath())
	if err != nil {
		return nil, err
	}

	blameArgs := append([]string{"blame", "--porcelain"}, args...)
	cmd := exec.Command(cfg.GitPath, blameArgs...) //nolint:gosec // git_path is operator-configured, not attacker input
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running git blame: %w", err)
	}
	return parsePorcelain(out), nil
}

// parsePorcelain extracts just enough of `git blame --porcelain`'s format to
// drive attribution: the commit hash heading each hunk, the line numbers it
// covers, and the literal line content ("\t"-prefixed).
func parsePorcelain(data []byte) []blameLine {
	var lines []blameLine
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var curCommit string
	var curLineNum int
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "\t") {
			lines = append(lines, blameLine{commit: curCommit, lineNum: curLineNum, text: line[1:]})
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 3 && len(fields[0]) >= 7 && isHex(fields[0]) {
			curCommit = fields[0]
			if n, err := strconv.Atoi(fields[2]); err == nil {
				curLineNum = n
			}
		}
	}
	return lines
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func attribute(bl *blameLine, path string, notes *note.Manager, cache map[string]model.AuthorshipNote) {
	n, ok := cache[bl.commit]
	if !ok {
		var err error
		n, ok, err = notes.Read(bl.commit)
		if err != nil || !ok {
			n = model.AuthorshipNote{}
		}
		cache[bl.commit] = n
	}
	fn, ok := n.Files[path]
	if !ok {
		return // no note entry for this path: default to human, already zero value
	}
	line := 1
	for _, r := range fn.Runs {
		if bl.lineNum >= line && bl.lineNum < line+r.Len {
			bl.author = r.Author
			bl.agentID = r.AgentID
			return
		}
		line += r.Len
	}
}
