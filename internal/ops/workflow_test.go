package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/remote"
	"github.com/qwtool/qw/internal/stage"
)

// TestFullWorkflow exercises the traceability chain:
// add requirement → add design output → pull verification → check → update → diff → export → delete
func TestFullWorkflow(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	// 1. Add a requirement and the design output that satisfies it
	req, err := Add(ctx, database, AddInput{
		Stage: "requirement",
		Fields: map[string]any{
			stage.FieldTitle:       "Log in",
			stage.FieldDescription: "Users log in with a password.\n\nSessions expire.",
		},
	})
	require.NoError(t, err)

	out, err := Add(ctx, database, AddInput{
		Stage: "design-output",
		Fields: map[string]any{
			stage.FieldTitle:       "Login form",
			stage.FieldDescription: "A form.",
			stage.FieldRequirement: req.InternalID,
		},
	})
	require.NoError(t, err)

	// 2. The verification lives on the tracker
	svc := remote.NewMemoryService(&remote.Issue{
		Number: 30,
		Title:  "[Design Verification] Login form renders",
		Body:   "### Description\n\nOpen the page.\n\n### Design Output\n\n#1\n\n### Result\n\n_No response_\n",
		Labels: []string{remote.LabelFor(stage.DesignVerification)},
	})
	pull, err := Pull(ctx, database, svc, PullInput{})
	require.NoError(t, err)
	require.Equal(t, []string{"design-verification/1"}, pull.Created)

	// 3. Everything is complete and in sync
	check, err := Check(ctx, database, svc, CheckInput{Remote: true})
	require.NoError(t, err)
	require.Equal(t, 3, check.Checked)
	require.True(t, check.OK)

	// 4. A local edit makes the record drift from its issue
	upd, err := Update(ctx, database, UpdateInput{
		Stage: "design-verification",
		ID:    1,
		Set:   map[string]any{stage.FieldResult: "passed"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{stage.FieldResult}, upd.Changes.Fields(stage.DesignVerification))

	diff, err := Diff(ctx, database, svc, DiffInput{Stage: "design-verification", ID: 1, Remote: true})
	require.NoError(t, err)
	require.Equal(t, stage.Diff{stage.FieldResult: {Self: "passed", Other: nil}}, diff.Changes)

	// 5. Export
	exp, err := Export(ctx, database, ExportInput{Path: filepath.Join(t.TempDir(), "all.jsonl")})
	require.NoError(t, err)
	require.Equal(t, 3, exp.Count)

	// 6. Delete the design output; show reports 404
	_, err = Delete(ctx, database, DeleteInput{Stage: "design-output", ID: out.InternalID})
	require.NoError(t, err)
	_, err = Show(ctx, database, ShowInput{Stage: "design-output", ID: out.InternalID})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
