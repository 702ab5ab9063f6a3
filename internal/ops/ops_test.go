package ops

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/stage"
)

const testDescription = "qw_description\n\nover\nlines"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// addRecord stores a valid record of stage c and returns its internal_id.
func addRecord(t *testing.T, database *sql.DB, c stage.Category, extra map[string]any) int {
	t.Helper()
	fields := map[string]any{
		stage.FieldTitle:       "qw_title",
		stage.FieldDescription: testDescription,
	}
	switch c {
	case stage.DesignOutput, stage.DesignValidation:
		fields[stage.FieldRequirement] = 1
	case stage.DesignVerification:
		fields[stage.FieldDesignOutput] = 1
	}
	for k, v := range extra {
		fields[k] = v
	}
	out, err := Add(context.Background(), database, AddInput{Stage: string(c), Fields: fields})
	require.NoError(t, err)
	return out.InternalID
}

func TestValidateAddress(t *testing.T) {
	addr, err := ValidateAddress("Design_Output", 3)
	require.NoError(t, err)
	require.Equal(t, stage.DesignOutput, addr.Stage)
	require.Equal(t, "design-output/3", addr.String())

	_, err = ValidateAddress("", 1)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = ValidateAddress("requirement", 0)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = ValidateAddress("widget", 1)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("requirement/12")
	require.NoError(t, err)
	require.Equal(t, Address{Stage: stage.Requirement, InternalID: 12}, addr)

	for _, s := range []string{"requirement", "requirement/x", "/1", "requirement/3abc", "requirement/ 3", "requirement/3.0"} {
		_, err := ParseAddress(s)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), s)
	}
}

func TestApplyFields_Coercion(t *testing.T) {
	r, err := stage.New(stage.DesignOutput)
	require.NoError(t, err)

	require.NoError(t, applyFields(r, map[string]any{
		stage.FieldRequirement: "#4",
		stage.FieldRemoteID:    float64(17),
	}))
	n, _ := r.Int(stage.FieldRequirement)
	require.Equal(t, 4, n)
	n, _ = r.RemoteID()
	require.Equal(t, 17, n)

	err = applyFields(r, map[string]any{stage.FieldRequirement: 1.5})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	err = applyFields(r, map[string]any{stage.FieldInternalID: 1})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "internal_id is assigned by the store")

	err = applyFields(r, map[string]any{stage.FieldTitle: 3})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
