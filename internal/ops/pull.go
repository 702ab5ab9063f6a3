package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/remote"
	"github.com/qwtool/qw/internal/stage"
)

// PullInput contains parameters for the Pull operation.
type PullInput struct {
	// DryRun reports what would change without writing.
	DryRun bool
}

// PullSkip records an issue that could not be pulled.
type PullSkip struct {
	Issue   int    `json:"issue"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PullOutput contains the result of the Pull operation.
type PullOutput struct {
	Created   []string   `json:"created"`
	Updated   []string   `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Skipped   []PullSkip `json:"skipped"`
	DryRun    bool       `json:"dry_run"`
}

// Pull harvests every qw issue of the repository into the store. An issue
// already linked to a record updates that record; any other issue becomes a
// new record. Issues that do not harvest into a valid record are skipped.
func Pull(ctx context.Context, database *sql.DB, svc remote.GitService, input PullInput) (*PullOutput, error) {
	if svc == nil {
		return nil, errors.NewNotInitialized("no issue service configured. Please run `qw init`")
	}
	logger := logging.FromContext(ctx)

	issues, err := svc.ListIssues(ctx)
	if err != nil {
		return nil, err
	}

	out := &PullOutput{Created: []string{}, Updated: []string{}, Skipped: []PullSkip{}, DryRun: input.DryRun}
	skip := func(n int, err error) {
		code, msg := describe(err)
		out.Skipped = append(out.Skipped, PullSkip{Issue: n, Code: code, Message: msg})
		logger.Warn("issue skipped", slog.Int("issue", n), slog.String("reason", msg))
	}

	for _, is := range issues {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}

		theirs, err := remote.Harvest(is)
		if err != nil {
			skip(is.Number, err)
			continue
		}
		if err := theirs.ValidateContent(); err != nil {
			skip(is.Number, err)
			continue
		}

		existing, err := db.GetByRemoteID(ctx, database, is.Number)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			label, err := pullCreate(ctx, database, theirs, input.DryRun)
			if err != nil {
				return nil, err
			}
			out.Created = append(out.Created, label)
		case err != nil:
			return nil, err
		default:
			if existing.Record.Stage() != theirs.Stage() {
				skip(is.Number, errors.NewCategoryMismatch(string(existing.Record.Stage()), string(theirs.Stage())))
				continue
			}
			// Local fields stay as stored.
			for _, name := range existing.Record.Schema().Local() {
				v, _ := existing.Record.Get(name)
				if err := theirs.Set(name, v); err != nil {
					return nil, err
				}
			}
			changes, err := existing.Record.Diff(theirs)
			if err != nil {
				return nil, err
			}
			if len(changes) == 0 {
				out.Unchanged++
				continue
			}
			if !input.DryRun {
				if err := db.Replace(ctx, database, theirs); err != nil {
					return nil, err
				}
			}
			out.Updated = append(out.Updated, theirs.Label())
		}
	}

	logger.Info("pull finished",
		slog.Int("created", len(out.Created)),
		slog.Int("updated", len(out.Updated)),
		slog.Int("unchanged", out.Unchanged),
		slog.Int("skipped", len(out.Skipped)),
		slog.Bool("dry_run", input.DryRun),
	)
	return out, nil
}

func pullCreate(ctx context.Context, database *sql.DB, r *stage.Record, dryRun bool) (string, error) {
	num, _ := r.RemoteID()
	if dryRun {
		return fmt.Sprintf("%s/new (issue #%d)", r.Stage(), num), nil
	}
	uid, err := generateULID()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	now := time.Now().Unix()
	if _, err := db.InsertNext(ctx, database, &db.Row{UID: uid, Record: r, CreatedAt: now, UpdatedAt: now}); err != nil {
		return "", err
	}
	return r.Label(), nil
}
