package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/stage"
)

func TestAdd_AssignsIDs(t *testing.T) {
	database := openTestDB(t)

	require.Equal(t, 1, addRecord(t, database, stage.Requirement, nil))
	require.Equal(t, 2, addRecord(t, database, stage.Requirement, nil))
	require.Equal(t, 1, addRecord(t, database, stage.DesignOutput, nil))

	got, err := Show(context.Background(), database, ShowInput{Stage: "requirement", ID: 2})
	require.NoError(t, err)
	require.NotEmpty(t, got.UID)
	require.Equal(t, testDescription, got.Record.Description())
	require.NoError(t, got.Record.Validate())
}

func TestAdd_ValidationFailed(t *testing.T) {
	database := openTestDB(t)

	_, err := Add(context.Background(), database, AddInput{
		Stage:  "design-output",
		Fields: map[string]any{stage.FieldTitle: "t", stage.FieldDescription: "d"},
	})
	require.True(t, errors.Is(err, errors.ErrValidationFailed))

	qe, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, stage.FieldRequirement, qe.Details["field"])

	list, err := List(context.Background(), database, ListInput{})
	require.NoError(t, err)
	require.Empty(t, list.Items, "nothing stored on failure")
}

func TestAdd_BadInput(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	_, err := Add(ctx, database, AddInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Add(ctx, database, AddInput{Stage: "widget"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Add(ctx, database, AddInput{Stage: "requirement", Fields: map[string]any{"colour": "red"}})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestAdd_DuplicateRemoteID(t *testing.T) {
	database := openTestDB(t)
	addRecord(t, database, stage.Requirement, map[string]any{stage.FieldRemoteID: 5})

	_, err := Add(context.Background(), database, AddInput{
		Stage: "requirement",
		Fields: map[string]any{
			stage.FieldTitle:       "t",
			stage.FieldDescription: "d",
			stage.FieldRemoteID:    5,
		},
	})
	require.True(t, errors.Is(err, errors.ErrAlreadyExists))
}

func TestShow_NotFound(t *testing.T) {
	_, err := Show(context.Background(), openTestDB(t), ShowInput{Stage: "requirement", ID: 1})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
