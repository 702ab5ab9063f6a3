package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/stage"
)

// AddInput contains parameters for the Add operation.
type AddInput struct {
	Stage  string         // required
	Fields map[string]any // field name -> value; internal_id is assigned
}

// AddOutput contains the result of the Add operation.
type AddOutput struct {
	UID        string         `json:"uid"`
	Stage      stage.Category `json:"stage"`
	InternalID int            `json:"internal_id"`
}

// Add validates a new record and stores it under the next free internal_id
// of its stage.
func Add(ctx context.Context, database *sql.DB, input AddInput) (*AddOutput, error) {
	if strings.TrimSpace(input.Stage) == "" {
		return nil, errors.NewInvalidRequest("stage is required")
	}
	c, err := stage.ParseCategory(input.Stage)
	if err != nil {
		return nil, err
	}
	r, err := stage.New(c)
	if err != nil {
		return nil, err
	}
	if err := applyFields(r, input.Fields); err != nil {
		return nil, err
	}
	if err := r.ValidateContent(); err != nil {
		return nil, err
	}

	uid, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	id, err := db.InsertNext(ctx, database, &db.Row{UID: uid, Record: r, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("record added", slog.String("record", r.Label()), slog.String("uid", uid))
	return &AddOutput{UID: uid, Stage: c, InternalID: id}, nil
}
