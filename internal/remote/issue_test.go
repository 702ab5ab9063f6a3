package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qwtool/qw/internal/errors"
)

func TestMemoryService(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryService(
		&Issue{Number: 3, Title: "c", Labels: []string{"qw-requirement"}},
		&Issue{Number: 1, Title: "a", Labels: []string{"qw-design-output"}},
		&Issue{Number: 2, Title: "b", Labels: []string{"bug"}},
	)

	is, err := m.GetIssue(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "b", is.Title)

	_, err = m.GetIssue(ctx, 4)
	require.True(t, errors.Is(err, errors.ErrNotFound))

	list, err := m.ListIssues(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 1, list[0].Number)
	require.Equal(t, 3, list[1].Number)
}

func TestMemoryService_CopiesIssues(t *testing.T) {
	orig := &Issue{Number: 1, Title: "a", Labels: []string{"qw-requirement"}}
	m := NewMemoryService(orig)
	orig.Title = "changed"
	orig.Labels[0] = "bug"

	is, err := m.GetIssue(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "a", is.Title)
	require.Equal(t, []string{"qw-requirement"}, is.Labels)
}

func TestMemoryService_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryService().ListIssues(ctx)
	require.True(t, errors.Is(err, errors.ErrRemoteFailed))
}
