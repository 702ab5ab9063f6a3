package ops

import (
	"context"
	"database/sql"
)

// ShowInput contains parameters for the Show operation.
type ShowInput struct {
	Stage string
	ID    int
}

// Show retrieves one record.
func Show(ctx context.Context, database *sql.DB, input ShowInput) (*RecordView, error) {
	addr, err := ValidateAddress(input.Stage, input.ID)
	if err != nil {
		return nil, err
	}
	row, err := getRow(ctx, database, addr)
	if err != nil {
		return nil, err
	}
	v := viewOf(row)
	return &v, nil
}
