// Package gitaicfg loads and saves git-ai's user configuration file at
// ~/.git-ai/config.json, as specified in spec.md §6.
package gitaicfg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDirName and ConfigFileName make up ~/.git-ai/config.json.
const (
	ConfigDirName  = ".git-ai"
	ConfigFileName = "config.json"
)

// ErrGitPathRequired is returned when git_path is missing from the config.
var ErrGitPathRequired = errors.New("config: git_path is required")

// ErrGitPathIsSelf is returned when git_path resolves to the git-ai binary itself.
var ErrGitPathIsSelf = errors.New("config: git_path points at git-ai itself")

// Config is the on-disk user configuration.
type Config struct {
	// GitPath is the absolute path to the real git binary. Required.
	GitPath string `json:"git_path"`
	// IgnorePrompts disables storing prompt transcripts as companion objects.
	IgnorePrompts bool `json:"ignore_prompts,omitempty"`
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ConfigDirName, ConfigFileName), nil
}

// Load reads and validates the config file. A missing git_path, or one
// pointing back at the running binary, is a fatal config error per spec.md §6.
func Load(selfPath string) (*Config, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p) //nolint:gosec // fixed, user-owned config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrGitPathRequired, p)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.GitPath == "" {
		return nil, ErrGitPathRequired
	}

	if err := rejectSelf(cfg.GitPath, selfPath); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// rejectSelf canonicalizes both paths and fails if they coincide, guarding
// against the proxy-recursion risk called out in spec.md §9.
func rejectSelf(gitPath, selfPath string) error {
	if selfPath == "" {
		return nil
	}
	realGit, err1 := filepath.EvalSymlinks(gitPath)
	realSelf, err2 := filepath.EvalSymlinks(selfPath)
	if err1 != nil || err2 != nil {
		// Can't resolve either path; fall back to a direct comparison.
		if gitPath == selfPath {
			return ErrGitPathIsSelf
		}
		return nil
	}
	if realGit == realSelf {
		return ErrGitPathIsSelf
	}
	return nil
}

// Save writes the config file, creating ~/.git-ai if needed.
func Save(cfg *Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	//nolint:gosec // G306: config file contains only a path and a bool, not secrets
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DiscoverGitPath locates the real git binary, searching PATH entries for a
// candidate that isn't the git-ai binary itself. Used by `install-hooks` to
// seed a first config.
func DiscoverGitPath(selfPath string) (string, error) {
	pathEnv := os.Getenv("PATH")
	for _, dir := range filepath.SplitList(pathEnv) {
		candidate := filepath.Join(dir, "git")
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if rejectSelf(candidate, selfPath) == nil {
			real, err := filepath.EvalSymlinks(candidate)
			if err == nil {
				return real, nil
			}
			return candidate, nil
		}
	}
	return "", errors.New("config: no real git binary found on PATH")
}
