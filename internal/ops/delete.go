package ops

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/stage"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	Stage string
	ID    int
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted    bool           `json:"deleted"`
	Stage      stage.Category `json:"stage"`
	InternalID int            `json:"internal_id"`
}

// Delete permanently removes a record. Its internal_id is not reused
// unless it was the highest of its stage.
func Delete(ctx context.Context, database *sql.DB, input DeleteInput) (*DeleteOutput, error) {
	addr, err := ValidateAddress(input.Stage, input.ID)
	if err != nil {
		return nil, err
	}
	if err := db.Delete(ctx, database, addr.Stage, addr.InternalID); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("record deleted", slog.String("record", addr.String()))
	return &DeleteOutput{
		Deleted:    true,
		Stage:      addr.Stage,
		InternalID: addr.InternalID,
	}, nil
}
