package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"

	"github.com/qwtool/qw/internal/errors"
)

// Service names an issue-tracking service.
type Service string

const (
	GitHub Service = "github"
	GitLab Service = "gitlab"
	// Test is an in-memory service for local dry runs and tests.
	Test Service = "test"
)

// Services lists every known service.
var Services = []Service{GitHub, GitLab, Test}

// ParseService maps a name to a Service.
func ParseService(s string) (Service, error) {
	svc := Service(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Services {
		if svc == known {
			return svc, nil
		}
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown service %q (want github, gitlab or test)", s))
}

// HostnameToService guesses the service from a remote's hostname.
func HostnameToService(host string) (Service, error) {
	h := strings.ToLower(host)
	switch {
	case strings.HasPrefix(h, "github."), strings.Contains(h, ".github."):
		return GitHub, nil
	case strings.HasPrefix(h, "gitlab."), strings.Contains(h, ".gitlab."):
		return GitLab, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("cannot tell which service hosts %s; pass --service", host))
}

// ParseRemoteAddress splits a git remote address into host, user and repository
// name. Accepted forms:
//
//	git@github.com:user/repo.git
//	https://github.com/user/repo(.git)
//	ssh://git@github.com/user/repo.git
func ParseRemoteAddress(address string) (host, user, repo string, err error) {
	address = strings.TrimSpace(address)
	var path string

	if strings.Contains(address, "://") {
		u, perr := url.Parse(address)
		if perr != nil || u.Host == "" {
			return "", "", "", errors.NewInvalidRequest(fmt.Sprintf("cannot parse remote address %q", address))
		}
		host = u.Hostname()
		path = u.Path
	} else {
		// scp-like syntax: [user@]host:path
		at := strings.Index(address, "@")
		colon := strings.Index(address, ":")
		if colon < 0 || colon < at {
			return "", "", "", errors.NewInvalidRequest(fmt.Sprintf("cannot parse remote address %q", address))
		}
		host = address[at+1 : colon]
		path = address[colon+1:]
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if host == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", errors.NewInvalidRequest(fmt.Sprintf("remote address %q is not of the form host/user/repo", address))
	}
	return host, parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// defaultRemotes are tried in order when no repository is given.
var defaultRemotes = []string{"upstream", "origin"}

// RepoURL resolves the repository address used for issues. candidate may be
// a full address or the name of a git remote; when empty the remotes
// "upstream" and "origin" are tried in that order.
func RepoURL(ctx context.Context, dir, candidate string, logger *slog.Logger) (string, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate != "" {
		if _, _, _, err := ParseRemoteAddress(candidate); err == nil {
			return candidate, nil
		}
		return remoteURL(ctx, dir, candidate, logger)
	}

	for _, name := range defaultRemotes {
		u, err := remoteURL(ctx, dir, name, logger)
		if err == nil {
			return u, nil
		}
		logger.Debug("remote not usable", slog.String("remote", name), slog.Any("error", err))
	}
	return "", errors.NewInvalidRequest("no repository given and neither 'upstream' nor 'origin' remote is set; pass --repo")
}

// remoteURL asks git for the address of a named remote.
func remoteURL(ctx context.Context, dir, name string, logger *slog.Logger) (string, error) {
	logger.Debug("executing git", slog.String("args", "remote get-url "+name), slog.String("dir", dir))

	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", name)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("git remote %q: %s", name, strings.TrimSpace(string(out))))
	}
	return strings.TrimSpace(string(out)), nil
}
