package ops

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/qwtool/qw/internal/config"
	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/remote"
)

// InitInput contains parameters for the Init operation.
type InitInput struct {
	// Dir is any directory inside the git working tree.
	Dir string
	// Repo is the address or remote name of the repository holding the
	// issues. When empty the remotes "upstream" and "origin" are tried.
	Repo string
	// Service overrides the service guessed from the repository host.
	Service string
	// Force replaces an existing configuration.
	Force bool
	// Templates writes the qw issue forms into the working tree.
	Templates bool
}

// InitOutput contains the result of the Init operation.
type InitOutput struct {
	BaseDir   string         `json:"base_dir"`
	QwDir     string         `json:"qw_dir"`
	Config    *config.Config `json:"config"`
	Templates []string       `json:"templates"`
}

// Init configures qw for the git repository containing input.Dir and
// creates its record store.
func Init(ctx context.Context, input InitInput) (*InitOutput, error) {
	logger := logging.FromContext(ctx)

	base, err := config.FindGitBaseDir(input.Dir)
	if err != nil {
		return nil, err
	}
	repoURL, err := remote.RepoURL(ctx, base, input.Repo, logger)
	if err != nil {
		return nil, err
	}
	host, user, repo, err := remote.ParseRemoteAddress(repoURL)
	if err != nil {
		return nil, err
	}

	var svc remote.Service
	if strings.TrimSpace(input.Service) != "" {
		svc, err = remote.ParseService(input.Service)
	} else {
		svc, err = remote.HostnameToService(host)
	}
	if err != nil {
		return nil, err
	}

	qwDir, err := config.GetOrCreateQwDir(base, input.Force)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	cfg.RepoURL = repoURL
	cfg.RepoName = repo
	cfg.Service = string(svc)
	cfg.UserName = user
	if err := config.Write(qwDir, cfg); err != nil {
		return nil, err
	}

	database, err := db.Init(qwDir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	database.Close()

	out := &InitOutput{BaseDir: base, QwDir: qwDir, Config: cfg, Templates: []string{}}
	if input.Templates {
		paths, err := writeTemplates(base)
		if err != nil {
			return nil, err
		}
		out.Templates = paths
	}

	logger.Info("initialised", slog.String("dir", base), slog.String("config", cfg.String()))
	return out, nil
}

// writeTemplates writes the issue forms below base and returns their paths.
func writeTemplates(base string) ([]string, error) {
	templates, err := remote.IssueTemplates()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, tpl := range templates {
		path := filepath.Join(base, filepath.FromSlash(tpl.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err))
		}
		if err := os.WriteFile(path, tpl.Content, 0o644); err != nil {
			return nil, errors.NewInternal(err)
		}
		paths = append(paths, tpl.Path)
	}
	return paths, nil
}
