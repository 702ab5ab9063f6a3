package ops

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/stage"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	// Addressing
	Stage string
	ID    int

	// Set assigns fields; a nil value unsets the field.
	Set map[string]any
	// Unset removes fields.
	Unset []string
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	Record RecordView `json:"record"`
	// Changes maps each changed field to its value before ("self") and
	// after ("other") the update.
	Changes stage.Diff `json:"changes"`
}

// Update modifies an existing record. The result must still validate.
func Update(ctx context.Context, database *sql.DB, input UpdateInput) (*UpdateOutput, error) {
	addr, err := ValidateAddress(input.Stage, input.ID)
	if err != nil {
		return nil, err
	}

	// Validate at least one editable field is provided
	if len(input.Set) == 0 && len(input.Unset) == 0 {
		return nil, errors.NewInvalidRequest("at least one field must be set or unset")
	}

	row, err := getRow(ctx, database, addr)
	if err != nil {
		return nil, err
	}
	before := row.Record
	after := before.Clone()

	if err := applyFields(after, input.Set); err != nil {
		return nil, err
	}
	for _, name := range input.Unset {
		if name == stage.FieldInternalID {
			return nil, errors.NewInvalidRequest("internal_id is assigned by qw and cannot be unset")
		}
		if _, ok := after.Schema().Field(name); !ok {
			return nil, errors.NewInvalidRequest("unknown field: " + name)
		}
		after.Unset(name)
	}
	if err := after.Validate(); err != nil {
		return nil, err
	}

	changes, err := before.Diff(after)
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if err := db.Replace(ctx, database, after); err != nil {
			return nil, err
		}
		logging.FromContext(ctx).Info("record updated",
			slog.String("record", addr.String()),
			slog.Any("fields", changes.Fields(addr.Stage)),
		)
	}

	// Re-read so timestamps reflect the stored row.
	row, err = getRow(ctx, database, addr)
	if err != nil {
		return nil, err
	}
	return &UpdateOutput{Record: viewOf(row), Changes: changes}, nil
}
