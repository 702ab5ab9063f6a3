package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qwtool/qw/internal/errors"
)

const (
	// DirName is the per-repository qw directory, created next to .git.
	DirName = ".qw"
	// FileName is the configuration file inside DirName.
	FileName = "conf.json"
	// DefaultTokenEnv names the environment variable holding the API token.
	DefaultTokenEnv = "GITHUB_TOKEN"
)

// Config holds the per-repository configuration written by `qw init`.
type Config struct {
	// RepoURL is the remote address of the repository holding the issues
	RepoURL string `json:"repo_url"`

	// RepoName is the repository name parsed from RepoURL
	RepoName string `json:"repo_name"`

	// Service is the issue service hosting the repository ("github", "gitlab", ...)
	Service string `json:"service"`

	// UserName is the owner (user or organisation) of the repository
	UserName string `json:"user_name"`

	// TokenEnv names the environment variable the API token is read from.
	// Tokens are never written to disk.
	TokenEnv string `json:"token_env,omitempty"`

	// APIBaseURL overrides the service's API endpoint (e.g. GitHub Enterprise).
	APIBaseURL string `json:"api_base_url,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		TokenEnv: DefaultTokenEnv,
	}
}

// Token returns the API token from the configured environment variable.
func (c *Config) Token() string {
	name := c.TokenEnv
	if name == "" {
		name = DefaultTokenEnv
	}
	return os.Getenv(name)
}

// String implements fmt.Stringer without exposing the token.
func (c *Config) String() string {
	return fmt.Sprintf("service=%s user=%s repo=%s url=%s", c.Service, c.UserName, c.RepoName, c.RepoURL)
}

// FindGitBaseDir walks upward from startDir to the nearest directory containing .git.
func FindGitBaseDir(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return "", errors.NewNotInitialized(fmt.Sprintf("%s is not inside a git repository", startDir))
		}
		dir = parent
	}
}

// GetOrCreateQwDir returns baseDir/.qw, creating it if needed.
// An existing directory is an error unless force is set.
func GetOrCreateQwDir(baseDir string, force bool) (string, error) {
	qwDir := filepath.Join(baseDir, DirName)
	info, err := os.Stat(qwDir)
	switch {
	case err == nil && !info.IsDir():
		return "", errors.NewAlreadyExists(fmt.Sprintf("%s exists and is not a directory", qwDir))
	case err == nil && !force:
		return "", errors.NewAlreadyExists(fmt.Sprintf("%s already initialised; use --force to replace the configuration", baseDir))
	case err != nil && !stderrors.Is(err, os.ErrNotExist):
		return "", errors.NewInternal(err)
	}
	if err := os.MkdirAll(qwDir, 0o755); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create %s: %w", qwDir, err))
	}
	return qwDir, nil
}

// Load loads configuration from qwDir/conf.json.
// A missing file means the repository has not been initialised.
func Load(qwDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(qwDir, FileName))
	if err != nil {
		return nil, err
	}
	if cfg == nil || strings.TrimSpace(cfg.Service) == "" {
		return nil, errors.NewNotInitialized("Configuration is corrupt. Please run `qw init`")
	}
	return Merge(Default(), cfg), nil
}

// Write stores cfg as qwDir/conf.json.
func Write(qwDir string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := os.WriteFile(filepath.Join(qwDir, FileName), append(data, '\n'), 0o644); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns nil config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.NewInternal(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewNotInitialized(fmt.Sprintf("Configuration is corrupt (%v). Please run `qw init`", err))
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence when non-empty.
func Merge(base, overlay *Config) *Config {
	return &Config{
		RepoURL:    pick(overlay.RepoURL, base.RepoURL),
		RepoName:   pick(overlay.RepoName, base.RepoName),
		Service:    pick(overlay.Service, base.Service),
		UserName:   pick(overlay.UserName, base.UserName),
		TokenEnv:   pick(overlay.TokenEnv, base.TokenEnv),
		APIBaseURL: pick(overlay.APIBaseURL, base.APIBaseURL),
		// Arrays: merge and deduplicate
		DisabledTools: mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
	}
}

func pick(overlay, base string) string {
	if s := strings.TrimSpace(overlay); s != "" {
		return s
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
