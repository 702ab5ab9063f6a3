package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/stage"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

const (
	githubPageSize       = 100
	githubMaxFailures    = 3
	githubBreakerCooloff = 30 * time.Second
)

// GitHubService reads issues through the GitHub REST API.
// Calls go through a circuit breaker so a failing API is not hammered
// while `qw check` walks many records.
type GitHubService struct {
	httpClient *http.Client
	baseURL    string
	owner      string
	repo       string
	token      string
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// GitHubOptions configures a GitHubService.
type GitHubOptions struct {
	BaseURL string // defaults to DefaultGitHubAPI
	Owner   string
	Repo    string
	Token   string // optional; unauthenticated requests are rate limited
	Timeout time.Duration
}

// NewGitHubService creates a GitHub client for one repository.
func NewGitHubService(opts GitHubOptions, logger *slog.Logger) *GitHubService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGitHubAPI
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "github",
		Timeout: githubBreakerCooloff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= githubMaxFailures
		},
		// A missing issue is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errors.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &GitHubService{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		owner:      opts.Owner,
		repo:       opts.Repo,
		token:      opts.Token,
		breaker:    cb,
		logger:     logger,
	}
}

// githubIssue mirrors the fields of the REST issue object qw reads.
type githubIssue struct {
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	Body    *string `json:"body"`
	HTMLURL string  `json:"html_url"`
	Labels  []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *json.RawMessage `json:"pull_request,omitempty"`
}

func (g githubIssue) toIssue() *Issue {
	is := &Issue{Number: g.Number, Title: g.Title, URL: g.HTMLURL}
	if g.Body != nil {
		is.Body = *g.Body
	}
	for _, l := range g.Labels {
		is.Labels = append(is.Labels, l.Name)
	}
	return is
}

// GetIssue implements GitService.
func (s *GitHubService) GetIssue(ctx context.Context, n int) (*Issue, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", url.PathEscape(s.owner), url.PathEscape(s.repo), n)
	data, err := s.get(ctx, path, nil)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound(fmt.Sprintf("issue #%d", n))
		}
		return nil, err
	}
	var gi githubIssue
	if err := json.Unmarshal(data, &gi); err != nil {
		return nil, errors.NewRemoteFailed(fmt.Errorf("decode issue #%d: %w", n, err))
	}
	return gi.toIssue(), nil
}

// ListIssues implements GitService. Pull requests are skipped.
func (s *GitHubService) ListIssues(ctx context.Context) ([]*Issue, error) {
	seen := make(map[int]bool)
	var out []*Issue
	for _, c := range stage.Categories() {
		for page := 1; ; page++ {
			q := url.Values{}
			q.Set("state", "all")
			q.Set("labels", LabelFor(c))
			q.Set("per_page", fmt.Sprint(githubPageSize))
			q.Set("page", fmt.Sprint(page))

			data, err := s.get(ctx, fmt.Sprintf("/repos/%s/%s/issues", url.PathEscape(s.owner), url.PathEscape(s.repo)), q)
			if err != nil {
				return nil, err
			}
			var batch []githubIssue
			if err := json.Unmarshal(data, &batch); err != nil {
				return nil, errors.NewRemoteFailed(fmt.Errorf("decode issue list: %w", err))
			}
			for _, gi := range batch {
				if gi.PullRequest != nil || seen[gi.Number] {
					continue
				}
				seen[gi.Number] = true
				out = append(out, gi.toIssue())
			}
			if len(batch) < githubPageSize {
				break
			}
		}
	}
	return out, nil
}

// get performs one GET through the circuit breaker and returns the body.
func (s *GitHubService) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	data, err := s.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		start := time.Now()
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, errors.NewRemoteFailed(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.NewRemoteFailed(err)
		}
		s.logger.Debug("github request",
			slog.String("url", u),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, errors.NewNotFound(path)
		case resp.StatusCode >= 300:
			return nil, errors.NewRemoteFailed(fmt.Errorf("GET %s: %s", path, resp.Status))
		}
		return body, nil
	})
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		// Breaker rejections (open / too many requests).
		return nil, errors.NewRemoteFailed(err)
	}
	return data, nil
}
