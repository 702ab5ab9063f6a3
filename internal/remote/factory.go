package remote

import (
	"log/slog"
	"strings"

	"github.com/qwtool/qw/internal/config"
	"github.com/qwtool/qw/internal/errors"
)

// NewService returns the GitService configured for the repository.
// A configuration without a service is treated as corrupt.
func NewService(cfg *config.Config, logger *slog.Logger) (GitService, error) {
	if cfg == nil || strings.TrimSpace(cfg.Service) == "" {
		return nil, errors.NewNotInitialized("Configuration is corrupt. Please run `qw init`")
	}

	switch Service(strings.ToLower(cfg.Service)) {
	case GitHub:
		logger.Debug("connecting to github",
			slog.String("user", cfg.UserName),
			slog.String("repo", cfg.RepoName),
			slog.Bool("token", cfg.Token() != ""),
		)
		return NewGitHubService(GitHubOptions{
			BaseURL: cfg.APIBaseURL,
			Owner:   cfg.UserName,
			Repo:    cfg.RepoName,
			Token:   cfg.Token(),
		}, logger), nil
	case Test:
		return NewMemoryService(), nil
	}
	return nil, errors.NewUnsupportedService(cfg.Service)
}
