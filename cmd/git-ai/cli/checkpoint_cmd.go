package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/checkpoint"
	"github.com/git-ai/git-ai/internal/gitaicfg"
	"github.com/git-ai/git-ai/internal/hookinput"
	"github.com/git-ai/git-ai/internal/logging"
	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/paths"
	"github.com/git-ai/git-ai/internal/redact"
	"github.com/git-ai/git-ai/internal/snapshot"
)

func newCheckpointCmd() *cobra.Command {
	var hookInput string
	var allowDetached bool

	cmd := &cobra.Command{
		Use:   "checkpoint [agent-id]",
		Short: "Record a checkpoint of uncommitted authorship for the current branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := checkpointRequest(args, hookInput, allowDetached)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStderr(), err)
				return Silent(err)
			}

			engine, err := checkpoint.NewEngine(".")
			if err != nil {
				fmt.Fprintln(cmd.OutOrStderr(), err)
				return Silent(err)
			}

			entry, err := engine.Run(*req)
			if err != nil {
				logging.Error(cmd.Context(), "checkpoint failed", "error", err.Error())
				// Checkpoint failures are local and non-fatal to the caller's
				// surrounding workflow; report but exit 0, per spec.
				fmt.Fprintln(cmd.OutOrStderr(), err)
				return nil
			}
			if entry == nil {
				return nil // no-op: throttled or nothing changed
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checkpoint %d recorded (%d files)\n", entry.Seq, len(entry.PerFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&hookInput, "hook-input", "", "read the checkpoint payload as JSON from \"stdin\" or a file path")
	cmd.Flags().BoolVar(&allowDetached, "allow-detached", false, "allow checkpointing on a detached HEAD")
	return cmd
}

func checkpointRequest(args []string, hookInput string, allowDetached bool) (*checkpoint.Request, error) {
	if hookInput == "" {
		req := &checkpoint.Request{Author: model.Human, AllowDetached: allowDetached}
		if len(args) == 1 {
			req.Author = model.Agent
			req.AgentID = args[0]
		}
		return req, nil
	}

	raw, err := readHookInput(hookInput)
	if err != nil {
		return nil, err
	}
	in, err := hookinput.Parse(raw)
	if err != nil {
		return nil, err
	}

	req := &checkpoint.Request{
		Author:        model.Human,
		AgentID:       in.AgentID,
		AllowDetached: allowDetached || in.AllowDetached,
	}
	if in.Author == "agent" {
		req.Author = model.Agent
	}
	if in.Prompt != "" {
		if cfg, cfgErr := gitaicfg.Load(selfPath()); cfgErr == nil && cfg.IgnorePrompts {
			return req, nil
		}
		ref, err := storePrompt(in.Prompt)
		if err != nil {
			return nil, err
		}
		req.PromptRef = ref
	}
	return req, nil
}

func readHookInput(source string) ([]byte, error) {
	if source == "stdin" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(source) //nolint:gosec // path is operator-supplied via --hook-input
}

// storePrompt scrubs a prompt transcript and writes it as a content-addressed
// companion object, returning its hash for CheckpointEntry.PromptRef.
func storePrompt(prompt string) (string, error) {
	scrubbed, err := redact.Transcript([]byte(prompt))
	if err != nil {
		return "", fmt.Errorf("redacting prompt: %w", err)
	}
	hash := snapshot.BlobHash(scrubbed)
	p, err := paths.ContentPath(hash)
	if err != nil {
		return "", err
	}
	if err := paths.WriteFileAtomic(p, scrubbed, 0o644); err != nil {
		return "", fmt.Errorf("storing prompt transcript: %w", err)
	}
	return hash, nil
}
