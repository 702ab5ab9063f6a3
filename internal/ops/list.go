package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/stage"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Stage  string // optional filter
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []RecordView `json:"items"`
	Pagination Pagination   `json:"pagination"`
	Sort       string       `json:"sort"`
}

// List retrieves records with pagination, ordered by stage then internal_id.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	var filter db.ListFilter
	if strings.TrimSpace(input.Stage) != "" {
		c, err := stage.ParseCategory(input.Stage)
		if err != nil {
			return nil, err
		}
		filter.Stage = &c
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	// Ensure offset is non-negative
	offset := max(input.Offset, 0)
	filter.Limit, filter.Offset = limit, offset

	rows, err := db.List(ctx, database, filter)
	if err != nil {
		return nil, err
	}
	total, err := db.Count(ctx, database, filter)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	items := make([]RecordView, 0, len(rows))
	for _, row := range rows {
		items = append(items, viewOf(row))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "stage_internal_id_asc",
	}, nil
}
