// Package hookinput parses and validates the JSON payload git-ai's
// checkpoint command reads from stdin when invoked by an agent integration
// (as opposed to a plain CLI flag invocation). Validation uses a JSON
// schema so malformed agent-side payloads fail with a precise error
// instead of a confusing downstream panic or silent zero-value.
package hookinput

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// pathSafe matches the characters git-ai allows in an agent id, since the
// id ends up as a path component (the agent-id string table entry and,
// historically, on-disk session files).
var pathSafe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// schema describes the checkpoint stdin contract.
const schema = `{
  "type": "object",
  "required": ["author"],
  "properties": {
    "author": {"type": "string", "enum": ["human", "agent"]},
    "agent_id": {"type": "string"},
    "prompt": {"type": "string"},
    "allow_detached": {"type": "boolean"}
  },
  "additionalProperties": false
}`

var schemaLoader = gojsonschema.NewStringLoader(schema)

// CheckpointInput is the parsed, validated payload for `git-ai
// checkpoint --hook-input`.
type CheckpointInput struct {
	Author        string `json:"author"`
	AgentID       string `json:"agent_id,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
	AllowDetached bool   `json:"allow_detached,omitempty"`
}

// Parse validates raw against the checkpoint schema and decodes it into a
// CheckpointInput, additionally enforcing the path-safety rule on AgentID
// that the schema alone can't express.
func Parse(raw []byte) (CheckpointInput, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return CheckpointInput{}, fmt.Errorf("hook input: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return CheckpointInput{}, fmt.Errorf("hook input: %s", strings.Join(msgs, "; "))
	}

	var in CheckpointInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return CheckpointInput{}, fmt.Errorf("hook input: decoding: %w", err)
	}

	if in.AgentID != "" && !pathSafe.MatchString(in.AgentID) {
		return CheckpointInput{}, fmt.Errorf("hook input: agent_id %q must be alphanumeric with underscores/hyphens only", in.AgentID)
	}
	if in.Author == "agent" && in.AgentID == "" {
		return CheckpointInput{}, errors.New("hook input: agent_id is required when author is \"agent\"")
	}

	return in, nil
}
