package remote

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/qwtool/qw/internal/errors"
)

// Issue is the subset of a remote issue qw reads.
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
	URL    string   `json:"url,omitempty"`
}

// GitService is an issue tracker hosting the repository.
type GitService interface {
	// GetIssue returns issue number n, or a NOT_FOUND error.
	GetIssue(ctx context.Context, n int) (*Issue, error)
	// ListIssues returns every issue carrying a qw stage label.
	ListIssues(ctx context.Context) ([]*Issue, error)
}

// MemoryService is an in-memory GitService backing the "test" service.
type MemoryService struct {
	mu     sync.RWMutex
	issues map[int]*Issue
}

// NewMemoryService returns a MemoryService holding the given issues.
func NewMemoryService(issues ...*Issue) *MemoryService {
	m := &MemoryService{issues: make(map[int]*Issue)}
	for _, is := range issues {
		m.Put(is)
	}
	return m
}

// Put adds or replaces an issue.
func (m *MemoryService) Put(is *Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *is
	cp.Labels = slices.Clone(is.Labels)
	m.issues[is.Number] = &cp
}

// GetIssue implements GitService.
func (m *MemoryService) GetIssue(ctx context.Context, n int) (*Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewRemoteFailed(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	is, ok := m.issues[n]
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("issue #%d", n))
	}
	cp := *is
	return &cp, nil
}

// ListIssues implements GitService. Issues are returned by number.
func (m *MemoryService) ListIssues(ctx context.Context) ([]*Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewRemoteFailed(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Issue, 0, len(m.issues))
	for _, is := range m.issues {
		if _, ok := stageFromLabels(is.Labels); !ok {
			continue
		}
		cp := *is
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return a.Number - b.Number })
	return out, nil
}
