package proxy

import (
	"encoding/json"
	"os"

	"github.com/git-ai/git-ai/internal/paths"
)

// savePendingSquash records the component commits of an in-progress squash
// merge so the commit that follows can fold them into a union note.
func savePendingSquash(components []string) error {
	p, err := paths.PendingSquashPath()
	if err != nil {
		return err
	}
	data, err := json.Marshal(components)
	if err != nil {
		return err
	}
	return paths.WriteFileAtomic(p, data, 0o644)
}

// loadPendingSquash reads back the component commits saved by
// savePendingSquash, reporting ok=false if none are pending.
func loadPendingSquash() ([]string, bool, error) {
	p, err := paths.PendingSquashPath()
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // fixed path under .git/ai
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var components []string
	if err := json.Unmarshal(data, &components); err != nil {
		return nil, false, err
	}
	return components, true, nil
}

// clearPendingSquash removes the pending-squash record once it has been
// consumed (or found not to apply, e.g. a detached-HEAD commit).
func clearPendingSquash() error {
	p, err := paths.PendingSquashPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
